package session

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/musejewels/storefront/internal/logger"
	"github.com/musejewels/storefront/internal/models"
)

const sessionName = "storefront_session"

// Session value keys.
const (
	keyUserID   = "user_id"
	keyUsername = "username"
	keyIsAdmin  = "is_admin"
	keyCart     = "cart"
)

// Data is the per-browser session state. A zero UserID means no customer is
// logged in. The cart lives only here; it is never persisted to the
// database.
type Data struct {
	UserID   int64
	Username string
	IsAdmin  bool
	Cart     models.Cart
}

// LoggedIn reports whether a customer is authenticated.
func (d *Data) LoggedIn() bool {
	return d.UserID != 0
}

// Manager reads and writes session state through a signed cookie store.
type Manager struct {
	store *sessions.CookieStore
}

// NewManager creates a cookie-backed session manager. The secret signs (and
// encrypts, when 32+ bytes) the session cookie.
func NewManager(secret []byte) *Manager {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{store: store}
}

// Load decodes the session from the request. A missing or undecodable
// cookie yields an empty session rather than an error.
func (m *Manager) Load(r *http.Request) *Data {
	s, err := m.store.Get(r, sessionName)
	if err != nil {
		logger.Log.Sugar().Debugf("session decode failed, starting fresh: %v", err)
	}

	data := &Data{Cart: models.Cart{}}
	if v, ok := s.Values[keyUserID].(int64); ok {
		data.UserID = v
	}
	if v, ok := s.Values[keyUsername].(string); ok {
		data.Username = v
	}
	if v, ok := s.Values[keyIsAdmin].(bool); ok {
		data.IsAdmin = v
	}
	if raw, ok := s.Values[keyCart].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &data.Cart); err != nil {
			logger.Log.Sugar().Warnf("dropping unreadable session cart: %v", err)
			data.Cart = models.Cart{}
		}
	}
	return data
}

// Save writes the session state back to the response cookie. An empty cart
// clears the cart key entirely.
func (m *Manager) Save(r *http.Request, w http.ResponseWriter, data *Data) error {
	s, _ := m.store.Get(r, sessionName)

	if data.UserID != 0 {
		s.Values[keyUserID] = data.UserID
		s.Values[keyUsername] = data.Username
	} else {
		delete(s.Values, keyUserID)
		delete(s.Values, keyUsername)
	}

	if data.IsAdmin {
		s.Values[keyIsAdmin] = true
	} else {
		delete(s.Values, keyIsAdmin)
	}

	if len(data.Cart) > 0 {
		raw, err := json.Marshal(data.Cart)
		if err != nil {
			return err
		}
		s.Values[keyCart] = string(raw)
	} else {
		delete(s.Values, keyCart)
	}

	return s.Save(r, w)
}

// Destroy expires the session cookie, clearing every key.
func (m *Manager) Destroy(r *http.Request, w http.ResponseWriter) error {
	s, _ := m.store.Get(r, sessionName)
	s.Values = map[interface{}]interface{}{}
	s.Options.MaxAge = -1
	return s.Save(r, w)
}
