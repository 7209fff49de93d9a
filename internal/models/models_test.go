package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCartTotalAndCount(t *testing.T) {
	cart := Cart{
		"1": {Name: "Pendant", Price: 100.50, Quantity: 2},
		"2": {Name: "Earrings", Price: 750.50, Quantity: 1},
	}

	assert.Equal(t, 951.50, cart.Total())
	assert.Equal(t, 3, cart.Count())
}

func TestEmptyCart(t *testing.T) {
	var cart Cart
	assert.Zero(t, cart.Total())
	assert.Zero(t, cart.Count())
}

func TestValidStatuses(t *testing.T) {
	assert.True(t, ValidStatuses[StatusPending])
	assert.True(t, ValidStatuses[StatusCompleted])
	assert.True(t, ValidStatuses[StatusCancelled])
	assert.False(t, ValidStatuses["Shipped"])
	assert.False(t, ValidStatuses["pending"])
}
