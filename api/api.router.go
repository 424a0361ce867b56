package api

import (
	"net/http"

	"github.com/aircast/hub/api/middleware"
	"github.com/aircast/hub/api/resources"
	"github.com/aircast/hub/internal/hubservice"
	"github.com/gorilla/mux"
)

type Router struct {
	router    *mux.Router
	auth      *middleware.KeycloakMiddleware
	resources *resources.Resources
}

func NewRouter(svc *hubservice.HubService, keycloakConfig middleware.KeycloakConfig) *Router {
	r := &Router{
		router:    mux.NewRouter(),
		auth:      middleware.NewKeycloakMiddleware(keycloakConfig),
		resources: resources.NewResources(svc),
	}

	r.setupRoutes()
	return r
}

func (r *Router) setupRoutes() {
	// API version prefix
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Public routes
	api.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		if r.resources.HealthCheck == nil {
			w.WriteHeader(http.StatusOK)
			return
		}
		r.resources.HealthCheck(w, req)
	}).Methods(http.MethodGet)
	api.HandleFunc("/sessions", r.resources.Sessions.ListSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", r.resources.Sessions.GetSession).Methods(http.MethodGet)

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(r.auth.Authenticate)

	protected.HandleFunc("/sessions/{id}", r.resources.Sessions.UpdateSession).Methods(http.MethodPut)
	protected.Handle("/sessions/{id}",
		r.auth.RequireRoles([]string{"superadmin"})(http.HandlerFunc(r.resources.Sessions.DeleteSession)),
	).Methods(http.MethodDelete)

	protected.HandleFunc("/realtime/measurements", r.resources.Measurements.CreateRealtime).Methods(http.MethodPost)
}

// SetHealthCheck sets the handler served on /health.
func (r *Router) SetHealthCheck(h func(w http.ResponseWriter, req *http.Request)) {
	r.resources.SetHealthCheck(h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
