package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/musejewels/storefront/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key")

// roundTrip saves data into a response cookie, then loads it back from a
// fresh request carrying that cookie.
func roundTrip(t *testing.T, m *Manager, data *Data) *Data {
	t.Helper()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, m.Save(r, w, data))

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	next := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		next.AddCookie(c)
	}
	return m.Load(next)
}

func TestLoadFreshRequest(t *testing.T) {
	m := NewManager(testSecret)

	data := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, data.LoggedIn())
	assert.False(t, data.IsAdmin)
	assert.Empty(t, data.Cart)
	assert.NotNil(t, data.Cart)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := NewManager(testSecret)

	loaded := roundTrip(t, m, &Data{
		UserID:   7,
		Username: "alice",
		IsAdmin:  true,
		Cart: models.Cart{
			"1": {Name: "Pendant", Price: 1499.00, Image: "p.jpg", Quantity: 2},
		},
	})

	assert.True(t, loaded.LoggedIn())
	assert.Equal(t, int64(7), loaded.UserID)
	assert.Equal(t, "alice", loaded.Username)
	assert.True(t, loaded.IsAdmin)
	require.Contains(t, loaded.Cart, "1")
	assert.Equal(t, 2, loaded.Cart["1"].Quantity)
	assert.Equal(t, 1499.00, loaded.Cart["1"].Price)
}

func TestSaveClearsEmptyState(t *testing.T) {
	m := NewManager(testSecret)

	// Log out and empty the cart: the next load sees a clean session.
	loaded := roundTrip(t, m, &Data{UserID: 0, Username: "", IsAdmin: false, Cart: models.Cart{}})

	assert.False(t, loaded.LoggedIn())
	assert.False(t, loaded.IsAdmin)
	assert.Empty(t, loaded.Cart)
}

func TestCartSurvivesWithoutLogin(t *testing.T) {
	m := NewManager(testSecret)

	loaded := roundTrip(t, m, &Data{
		Cart: models.Cart{"3": {Name: "Studs", Price: 800, Quantity: 1}},
	})

	assert.False(t, loaded.LoggedIn())
	assert.Equal(t, 1, loaded.Cart["3"].Quantity)
}

func TestDestroyExpiresCookie(t *testing.T) {
	m := NewManager(testSecret)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, m.Save(r, w, &Data{UserID: 7, Username: "alice"}))

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w.Result().Cookies() {
		r2.AddCookie(c)
	}

	w2 := httptest.NewRecorder()
	require.NoError(t, m.Destroy(r2, w2))

	cookies := w2.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestLoadTamperedCookieStartsFresh(t *testing.T) {
	m := NewManager(testSecret)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "storefront_session", Value: "not-a-valid-session"})

	data := m.Load(r)
	assert.False(t, data.LoggedIn())
	assert.Empty(t, data.Cart)
}
