package api

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/musejewels/storefront/internal/apperr"
	"github.com/musejewels/storefront/internal/db"
	"github.com/musejewels/storefront/internal/logger"
	"github.com/musejewels/storefront/internal/metrics"
	"github.com/musejewels/storefront/internal/middleware"
	"github.com/musejewels/storefront/internal/services"
	"github.com/musejewels/storefront/internal/session"
	"github.com/musejewels/storefront/pkg/config"
	"go.uber.org/zap"
)

// App holds application dependencies
type App struct {
	config   *config.Config
	db       *db.DB
	metrics  *metrics.AppMetrics
	sessions *session.Manager
	catalog  *services.CatalogService
	carts    *services.CartService
	orders   *services.OrderService
	users    *services.UserService
}

// NewApp creates a new application instance
func NewApp(
	cfg *config.Config,
	database *db.DB,
	m *metrics.AppMetrics,
	sm *session.Manager,
	catalog *services.CatalogService,
	carts *services.CartService,
	orders *services.OrderService,
	users *services.UserService,
) *App {
	return &App{
		config:   cfg,
		db:       database,
		metrics:  m,
		sessions: sm,
		catalog:  catalog,
		carts:    carts,
		orders:   orders,
		users:    users,
	}
}

// SetupRoutes configures the HTTP routes
func (a *App) SetupRoutes(r *mux.Router) {
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.CORSMiddleware)
	r.Use(middleware.RecoverMiddleware)
	r.Use(middleware.MetricsMiddleware(a.metrics))

	api := r.PathPrefix("/api/v1").Subrouter()

	// Accounts
	api.HandleFunc("/register", a.RegisterHandler).Methods("POST")
	api.HandleFunc("/login", a.LoginHandler).Methods("POST")
	api.HandleFunc("/logout", a.LogoutHandler).Methods("GET")

	// Catalog
	api.HandleFunc("/featured", a.FeaturedHandler).Methods("GET")
	api.HandleFunc("/shop", a.ShopHandler).Methods("GET")
	api.HandleFunc("/products/{id}", a.GetProductHandler).Methods("GET")

	// Cart and orders, customer session required
	user := api.NewRoute().Subrouter()
	user.Use(middleware.RequireUser(a.sessions))
	user.HandleFunc("/cart/add/{id}", a.AddToCartHandler).Methods("POST")
	user.HandleFunc("/cart", a.CartHandler).Methods("GET")
	user.HandleFunc("/cart/update/{id}", a.UpdateCartHandler).Methods("POST")
	user.HandleFunc("/checkout", a.CheckoutHandler).Methods("POST")
	user.HandleFunc("/orders", a.OrdersHandler).Methods("GET")

	// Admin login/logout sit outside the admin gate; register them before
	// the prefixed subrouter so they match first.
	api.HandleFunc("/admin/login", a.AdminLoginHandler).Methods("POST")
	api.HandleFunc("/admin/logout", a.AdminLogoutHandler).Methods("GET")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin(a.sessions))
	admin.HandleFunc("/dashboard", a.DashboardHandler).Methods("GET")
	admin.HandleFunc("/products", a.AdminListProductsHandler).Methods("GET")
	admin.HandleFunc("/products", a.AdminCreateProductHandler).Methods("POST")
	admin.HandleFunc("/products/{id}", a.AdminUpdateProductHandler).Methods("PUT")
	admin.HandleFunc("/products/{id}", a.AdminDeleteProductHandler).Methods("DELETE")
	admin.HandleFunc("/orders", a.AdminOrdersHandler).Methods("GET")
	admin.HandleFunc("/orders/{id}/status", a.AdminUpdateOrderStatusHandler).Methods("PUT")

	// Health
	r.HandleFunc("/health", a.HealthHandler).Methods("GET")
}

// HealthHandler handles health check requests
func (a *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// RegisterHandler handles POST /api/v1/register
func (a *App) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	user, err := a.users.Register(r.Context(),
		r.FormValue("username"), r.FormValue("email"), r.FormValue("password"))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"notice": "registration successful, please log in",
		"user":   user,
	})
}

// LoginHandler handles POST /api/v1/login
func (a *App) LoginHandler(w http.ResponseWriter, r *http.Request) {
	user, err := a.users.Authenticate(r.Context(), r.FormValue("username"), r.FormValue("password"))
	if err != nil {
		respondError(w, err)
		return
	}

	data := a.sessions.Load(r)
	data.UserID = user.ID
	data.Username = user.Username
	if err := a.sessions.Save(r, w, data); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"notice": "login successful",
		"user":   user,
	})
}

// LogoutHandler handles GET /api/v1/logout. The whole session goes,
// including the cart.
func (a *App) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := a.sessions.Destroy(r, w); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"notice": "you have been logged out"})
}

// FeaturedHandler handles GET /api/v1/featured
func (a *App) FeaturedHandler(w http.ResponseWriter, r *http.Request) {
	products, err := a.catalog.ListFeatured(r.Context(), 3)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

// ShopHandler handles GET /api/v1/shop
func (a *App) ShopHandler(w http.ResponseWriter, r *http.Request) {
	products, err := a.catalog.ListAll(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	grouped, order := services.GroupByCategory(products)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"categories": order,
		"products":   grouped,
	})
}

// GetProductHandler handles GET /api/v1/products/{id}
func (a *App) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	product, err := a.catalog.GetProduct(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// AddToCartHandler handles POST /api/v1/cart/add/{id}
func (a *App) AddToCartHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	qty := 1
	if parsed, err := strconv.Atoi(r.FormValue("quantity")); err == nil {
		qty = parsed
	}

	data := a.sessions.Load(r)
	cart, err := a.carts.Add(r.Context(), data.Cart, id, qty)
	if err != nil {
		respondError(w, err)
		return
	}

	data.Cart = cart
	if err := a.sessions.Save(r, w, data); err != nil {
		respondError(w, err)
		return
	}

	line := cart[strconv.FormatInt(id, 10)]
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"notice": fmt.Sprintf("%d x %s added to cart", qty, line.Name),
		"cart":   cart,
	})
}

// CartHandler handles GET /api/v1/cart. Viewing the cart reconciles it
// against live stock and persists the result back to the session.
func (a *App) CartHandler(w http.ResponseWriter, r *http.Request) {
	data := a.sessions.Load(r)

	cart, total, adjustments, err := a.carts.Reconcile(r.Context(), data.Cart)
	if err != nil {
		respondError(w, err)
		return
	}

	data.Cart = cart
	if err := a.sessions.Save(r, w, data); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"cart":        cart,
		"total":       total,
		"adjustments": adjustments,
	})
}

// UpdateCartHandler handles POST /api/v1/cart/update/{id}
func (a *App) UpdateCartHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	data := a.sessions.Load(r)
	cart, adjustment, err := a.carts.Update(r.Context(), data.Cart, id, r.FormValue("action"))
	if err != nil {
		respondError(w, err)
		return
	}

	data.Cart = cart
	if err := a.sessions.Save(r, w, data); err != nil {
		respondError(w, err)
		return
	}

	resp := map[string]interface{}{"cart": cart}
	if adjustment != nil {
		resp["adjustment"] = adjustment
	}
	respondJSON(w, http.StatusOK, resp)
}

// CheckoutHandler handles POST /api/v1/checkout
func (a *App) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	data := a.sessions.Load(r)

	order, err := a.carts.Checkout(r.Context(), data.UserID, data.Cart)
	if err != nil {
		respondError(w, err)
		return
	}

	// The cart is spent; clear it from the session.
	data.Cart = nil
	if err := a.sessions.Save(r, w, data); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"notice": fmt.Sprintf("order #%d placed successfully, total %.2f", order.ID, order.TotalPrice),
		"order":  order,
	})
}

// OrdersHandler handles GET /api/v1/orders
func (a *App) OrdersHandler(w http.ResponseWriter, r *http.Request) {
	data := a.sessions.Load(r)

	orders, err := a.orders.ListUserOrders(r.Context(), data.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

// AdminLoginHandler handles POST /api/v1/admin/login. Credentials come
// from configuration, not the users table, and are compared in constant
// time.
func (a *App) AdminLoginHandler(w http.ResponseWriter, r *http.Request) {
	userOK := subtle.ConstantTimeCompare([]byte(r.FormValue("username")), []byte(a.config.AdminUsername))
	passOK := subtle.ConstantTimeCompare([]byte(r.FormValue("password")), []byte(a.config.AdminPassword))
	if userOK&passOK != 1 {
		respondError(w, apperr.Unauthenticated("invalid admin credentials"))
		return
	}

	data := a.sessions.Load(r)
	data.IsAdmin = true
	if err := a.sessions.Save(r, w, data); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"notice": "admin login successful"})
}

// AdminLogoutHandler handles GET /api/v1/admin/logout. Only the admin flag
// is dropped; any customer session survives.
func (a *App) AdminLogoutHandler(w http.ResponseWriter, r *http.Request) {
	data := a.sessions.Load(r)
	data.IsAdmin = false
	if err := a.sessions.Save(r, w, data); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"notice": "admin logged out"})
}

// DashboardHandler handles GET /api/v1/admin/dashboard
func (a *App) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := a.orders.DashboardStats(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// AdminListProductsHandler handles GET /api/v1/admin/products
func (a *App) AdminListProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := a.catalog.ListAll(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"products": products})
}

// AdminCreateProductHandler handles POST /api/v1/admin/products
func (a *App) AdminCreateProductHandler(w http.ResponseWriter, r *http.Request) {
	product, err := a.catalog.CreateProduct(r.Context(), productInput(r))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"notice":  fmt.Sprintf("product %q added successfully", product.Name),
		"product": product,
	})
}

// AdminUpdateProductHandler handles PUT /api/v1/admin/products/{id}
func (a *App) AdminUpdateProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	product, err := a.catalog.UpdateProduct(r.Context(), id, productInput(r))
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"notice":  fmt.Sprintf("product %q updated successfully", product.Name),
		"product": product,
	})
}

// AdminDeleteProductHandler handles DELETE /api/v1/admin/products/{id}
func (a *App) AdminDeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	if err := a.catalog.DeleteProduct(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"notice": "product deleted"})
}

// AdminOrdersHandler handles GET /api/v1/admin/orders
func (a *App) AdminOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := a.orders.ListAllOrders(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

// AdminUpdateOrderStatusHandler handles PUT /api/v1/admin/orders/{id}/status
func (a *App) AdminUpdateOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	status := r.FormValue("status")
	if err := a.orders.UpdateOrderStatus(r.Context(), id, status); err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"notice": fmt.Sprintf("order #%d status updated to %s", id, status),
	})
}

func productInput(r *http.Request) services.ProductInput {
	return services.ProductInput{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		Price:       r.FormValue("price"),
		Stock:       r.FormValue("stock"),
		Image:       r.FormValue("image"),
		Category:    r.FormValue("category"),
	}
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		return 0, apperr.Validation("invalid id")
	}
	return id, nil
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError maps application error kinds to HTTP statuses; anything
// unclassified is logged and reported as a generic 500.
func respondError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Log.Error("request failed", zap.Error(err))
		message = "internal server error"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
