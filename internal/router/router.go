package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"commentgen/internal/handlers"
	"commentgen/internal/middleware"
	"commentgen/internal/websocket"
)

// Options carries everything the router wires. JWTAuth and Limiter may be
// nil to disable API auth and rate limiting. The HTML form stays public
// either way; it is only rate limited.
type Options struct {
	JWTAuth           *middleware.JWTAuth
	Limiter           middleware.Limiter
	CommentHandler    *handlers.CommentHandler
	GenerationHandler *handlers.GenerationHandler
	UIHandler         *handlers.UIHandler
	Hub               *websocket.Hub
	FrontendURL       string
	TrustProxyHeaders bool
}

func New(opts Options) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	// Rate limits key on the client IP; forwarded headers are client
	// controlled unless a proxy rewrites them.
	if opts.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.CORS(opts.FrontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// ──── HTML form ────
	r.Group(func(r chi.Router) {
		r.Get("/", opts.UIHandler.Index)
		r.Group(func(r chi.Router) {
			if opts.Limiter != nil {
				r.Use(middleware.RateLimit(opts.Limiter))
			}
			r.Post("/", opts.UIHandler.Submit)
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket authenticates through its own token query param
		r.Get("/ws", opts.Hub.HandleWebSocket)

		r.Group(func(r chi.Router) {
			if opts.JWTAuth != nil {
				r.Use(opts.JWTAuth.Middleware)
			}

			r.Get("/styles", opts.CommentHandler.Styles)
			r.Get("/generations", opts.GenerationHandler.List)

			r.Group(func(r chi.Router) {
				if opts.Limiter != nil {
					r.Use(middleware.RateLimit(opts.Limiter))
				}
				r.Post("/comments", opts.CommentHandler.Generate)
			})
		})
	})

	return r
}
