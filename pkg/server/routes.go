package server

import (
	"fmt"
	"net/http"
	"time"

	httpLogger "github.com/chi-middleware/logrus-logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"

	"github.com/studyloop/recall/pkg/auth"
	"github.com/studyloop/recall/pkg/models"
)

const ReadHeaderTimeout = 5 * time.Second

// Create creates a new HTTP server with the given app state
func Create(appState *models.AppState) *http.Server {
	router := setupRouter(appState)
	return &http.Server{
		Addr: fmt.Sprintf(
			"%s:%d",
			appState.Config.Server.Host,
			appState.Config.Server.Port,
		),
		Handler:           router,
		ReadHeaderTimeout: ReadHeaderTimeout,
	}
}

func setupRouter(appState *models.AppState) *chi.Mux {
	router := chi.NewRouter()
	router.Use(httpLogger.Logger("router", log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(SendVersion)
	router.Use(middleware.Heartbeat("/healthz"))

	if appState.Config.Auth.Required {
		log.Info("JWT authentication required")
		router.Use(auth.JWTVerifier(appState.Config))
		router.Use(jwtauth.Authenticator)
	}

	router.Route("/api/v1", func(r chi.Router) {
		// Knowledge base routes, scoped per user
		r.Route("/users/{userId}/knowledge", func(r chi.Router) {
			r.Post("/", CreateResourceHandler(appState))
			r.Get("/", ListResourcesHandler(appState))
			r.Post("/search", SearchKnowledgeHandler(appState))
			r.Route("/{resourceUUID}", func(r chi.Router) {
				r.Get("/", GetResourceHandler(appState))
				r.Delete("/", DeleteResourceHandler(appState))
			})
		})
	})

	return router
}
