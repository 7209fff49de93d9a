package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindNotFound, KindOf(NotFound("product")))
	assert.Equal(t, KindEmptyCart, KindOf(EmptyCart()))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindInternal, KindOf(nil))
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("handler: %w", Unauthenticated("please log in first"))
	assert.Equal(t, KindUnauthenticated, KindOf(err))
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "product not found", NotFound("product").Error())
	assert.Equal(t, "insufficient stock for Pearl Choker", InsufficientStock("Pearl Choker").Error())
	assert.Equal(t, "your cart is empty", EmptyCart().Error())
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(KindInternal, "failed to query products", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to query products: connection reset", err.Error())
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Unauthenticated("please log in first"), http.StatusUnauthorized},
		{NotFound("order"), http.StatusNotFound},
		{InsufficientStock("Pendant"), http.StatusConflict},
		{Conflict("username taken"), http.StatusConflict},
		{EmptyCart(), http.StatusBadRequest},
		{Validation("price must be a non-negative number"), http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), tt.err)
	}
}
