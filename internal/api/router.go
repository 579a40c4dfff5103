package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/ender-accounts-be/internal/api/handlers"
	"github.com/isdelr/ender-accounts-be/internal/auth"
)

// Options collects what the router needs besides the handlers.
type Options struct {
	AllowedOrigins []string
	Metrics        http.Handler
	AccessLog      bool
}

// NewRouter creates and configures a new Chi router.
func NewRouter(accountHandler *handlers.AccountHandler, gate *auth.Gate, opts Options) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if opts.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
			ExposedHeaders:   []string{"Link"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", handlers.Health)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/", accountHandler.Register)
		r.With(gate.Authenticate, gate.AuthorizeAdmin).Get("/", accountHandler.List)

		r.Post("/login", accountHandler.Login)
		r.Post("/logout", accountHandler.Logout)

		r.Route("/profile", func(r chi.Router) {
			r.Use(gate.Authenticate)
			r.Get("/", accountHandler.GetProfile)
			r.Put("/", accountHandler.UpdateProfile)
		})

		r.Route("/{id}", func(r chi.Router) {
			r.Use(gate.Authenticate, gate.AuthorizeAdmin)
			r.Get("/", accountHandler.Get)
			r.Put("/", accountHandler.Update)
			r.Delete("/", accountHandler.Delete)
		})
	})

	return r
}
