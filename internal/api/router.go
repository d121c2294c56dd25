package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/ender-accounts/internal/api/handlers"
	"github.com/isdelr/ender-accounts/internal/auth"
	"github.com/isdelr/ender-accounts/internal/services"
	"github.com/isdelr/ender-accounts/internal/websocket"
)

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Issuer   *auth.TokenIssuer
	Hub      *websocket.Hub
	Accounts services.AccountServiceProvider
	Audit    services.AuditServiceProvider
	DB       handlers.Pinger

	AllowedOrigins  []string
	DefaultPageSize int
}

// NewRouter creates and configures a new Chi router.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	healthHandler := handlers.NewHealthHandler(d.DB)
	accountHandler := handlers.NewAccountHandler(d.Accounts, d.Issuer, d.DefaultPageSize)
	auditHandler := handlers.NewAuditHandler(d.Audit)
	wsHandler := handlers.NewWebSocketHandler(d.Hub, d.Accounts, d.AllowedOrigins)

	r.Get("/health", healthHandler.Check)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(d.Issuer.Middleware())

		r.Route("/users", func(r chi.Router) {
			r.Get("/", accountHandler.List)
			r.Post("/", accountHandler.SignUp)
			r.Get("/numPages", accountHandler.NumPages)
			r.Post("/login", accountHandler.Login)
			r.With(auth.RequireAuthenticated).Get("/me", accountHandler.GetMe)
			r.Put("/update_password/{id}", accountHandler.UpdatePassword)
			r.Get("/{id}", accountHandler.Get)
			r.Put("/{id}", accountHandler.UpdateProfile)
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", auditHandler.GetRecent)
			r.Get("/ws", wsHandler.Serve)
		})
	})

	return r
}
