package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/loykin/mlexec/internal/metrics"
	"github.com/loykin/mlexec/internal/source"
)

// StatusProvider is the view of a source the HTTP layer needs.
type StatusProvider interface {
	Status() source.Status
}

// Router provides embeddable HTTP handlers for one source.
// Endpoints:
//
//	GET {basePath}/status   source status snapshot
//	GET {basePath}/healthz  200 while the source is not stopped, else 503
//	GET {basePath}/metrics  Prometheus metrics
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	src      StatusProvider
	basePath string
}

// NewRouter constructs a new Router with configurable basePath.
func NewRouter(src StatusProvider, basePath string) *Router {
	return &Router{src: src, basePath: sanitizeBase(basePath)}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/status", r.handleStatus)
	group.GET("/healthz", r.handleHealth)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer returns an unstarted HTTP server on addr using this router.
func NewServer(addr, basePath string, src StatusProvider) *http.Server {
	r := NewRouter(src, basePath)
	return &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type healthResp struct {
	OK    bool   `json:"ok"`
	State string `json:"state"`
}

func (r *Router) handleStatus(c *gin.Context) {
	if r.src == nil {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: "no source"})
		return
	}
	writeJSON(c, http.StatusOK, r.src.Status())
}

func (r *Router) handleHealth(c *gin.Context) {
	if r.src == nil {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: "no source"})
		return
	}
	st := r.src.Status().State
	if st == source.Stopped {
		writeJSON(c, http.StatusServiceUnavailable, healthResp{OK: false, State: st.String()})
		return
	}
	writeJSON(c, http.StatusOK, healthResp{OK: true, State: st.String()})
}
