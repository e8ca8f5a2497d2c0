package server

import (
	"net/http"

	"github.com/watzon/clickloop/internal/metrics"
)

type Router struct {
	server      *Server
	mux         *http.ServeMux
	middlewares []Middleware
}

type Middleware func(http.Handler) http.Handler

func NewRouter(srv *Server) *Router {
	r := &Router{
		server: srv,
		mux:    http.NewServeMux(),
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

func (r *Router) setupMiddleware() {
	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
}

func (r *Router) Use(mw Middleware) {
	r.middlewares = append(r.middlewares, mw)
}

func (r *Router) setupRoutes() {
	h := &handlers{source: r.server.source, history: r.server.history}

	r.mux.HandleFunc("GET /healthz", h.Health)
	r.mux.HandleFunc("GET /status", h.Status)
	r.mux.Handle("GET /metrics", metrics.Handler())

	if r.server.history != nil {
		r.mux.HandleFunc("GET /history", h.History)
	}

	if r.server.broker != nil {
		ws := http.Handler(&wsHandler{broker: r.server.broker, origins: r.server.cfg.AllowedOrigins})
		if r.server.limiter != nil {
			ws = r.server.limiter.Middleware(ws)
		}
		r.mux.Handle("GET /ws", ws)
	}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	handler := http.Handler(r.mux)

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}

	handler.ServeHTTP(w, req)
}

func QueryParam(r *http.Request, name string) string {
	return r.URL.Query().Get(name)
}
