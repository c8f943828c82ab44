// Package server exposes the control API, the overlay websocket and the gRPC health service.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"stream-lab/auth"
	"stream-lab/domain"
	"stream-lab/services"
	"strconv"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Deps are the collaborators of the HTTP surface. Inspector is optional.
type Deps struct {
	Auth         services.IAuthService
	Stream       services.IStreamService
	Tokens       *auth.Tokens
	Overlay      http.HandlerFunc
	Inspector    http.HandlerFunc
	BackendToken string
	Log          *slog.Logger
}

type HTTPHandler struct {
	auth   services.IAuthService
	stream services.IStreamService
	log    *slog.Logger
}

// NewRouter builds the gin engine serving every route.
func NewRouter(deps Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(deps.Log))

	h := &HTTPHandler{auth: deps.Auth, stream: deps.Stream, log: deps.Log}
	r.GET("/health", h.HealthCheck)
	if deps.Overlay != nil {
		r.GET("/ws", gin.WrapF(deps.Overlay))
	}

	api := r.Group("/api/v1", gzip.Gzip(gzip.DefaultCompression))
	{
		api.POST("/auth/login", h.Login)
		api.POST("/auth/register", h.Register)
		api.POST("/completions/:id", BackendToken(deps.BackendToken), h.Complete)
	}

	protected := api.Group("", auth.Middleware(deps.Tokens))
	{
		protected.GET("/stats", h.Stats)
		protected.GET("/bus", h.BusStats)
		protected.GET("/queues/:kind", h.Queue)
		protected.GET("/goals", h.Goals)
		protected.GET("/viewers/top", h.TopViewers)
		protected.GET("/viewers/:id", h.Viewer)
		protected.GET("/channels/:channel/messages", h.Messages)
		protected.GET("/channels/:channel/search", h.Search)
		protected.POST("/events", h.Ingest)
	}

	if deps.Inspector != nil {
		r.GET("/debug/inspect", auth.Middleware(deps.Tokens), auth.RequireRole("admin"), gin.WrapF(deps.Inspector))
	}
	return r
}

// Serve runs srv until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info("Shutting down HTTP server")
	return srv.Shutdown(shutdownCtx)
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h *HTTPHandler) Login(c *gin.Context) {
	var in credentials
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	token, err := h.auth.Login(in.Email, in.Password)
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, http.StatusOK, tokenResponse{Token: token.String()})
}

func (h *HTTPHandler) Register(c *gin.Context) {
	var in credentials
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	token, err := h.auth.Register(in.Email, in.Password)
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, http.StatusCreated, tokenResponse{Token: token.String()})
}

func (h *HTTPHandler) Stats(c *gin.Context) {
	success(c, http.StatusOK, h.stream.Stats())
}

func (h *HTTPHandler) BusStats(c *gin.Context) {
	success(c, http.StatusOK, h.stream.BusStats())
}

func (h *HTTPHandler) Queue(c *gin.Context) {
	snap, err := h.stream.Queue(domain.QueueKind(c.Param("kind")))
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, http.StatusOK, snap)
}

func (h *HTTPHandler) Goals(c *gin.Context) {
	success(c, http.StatusOK, h.stream.Goals())
}

func (h *HTTPHandler) Viewer(c *gin.Context) {
	v, err := h.stream.Viewer(domain.ViewerID(c.Param("id")))
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, http.StatusOK, v)
}

func (h *HTTPHandler) TopViewers(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	success(c, http.StatusOK, h.stream.TopViewers(limit))
}

type messagesResponse struct {
	Messages []domain.ChatLine `json:"messages"`
	Cursor   *string           `json:"cursor,omitempty"`
}

func (h *HTTPHandler) Messages(c *gin.Context) {
	var cursor *string
	if v := c.Query("cursor"); v != "" {
		cursor = &v
	}
	lines, next, err := h.stream.Messages(c.Param("channel"), cursor)
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, http.StatusOK, messagesResponse{Messages: lines, Cursor: next})
}

func (h *HTTPHandler) Search(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	lines, err := h.stream.Search(c.Request.Context(), c.Param("channel"), c.Query("q"), limit)
	if err != nil {
		failWith(c, err)
		return
	}
	success(c, http.StatusOK, lines)
}

// Ingest lets an operator inject raw events, used by tests and simulators.
func (h *HTTPHandler) Ingest(c *gin.Context) {
	var raw domain.RawEvent
	if err := c.ShouldBindJSON(&raw); err != nil {
		fail(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if err := h.stream.Ingest(c.Request.Context(), raw); err != nil {
		failWith(c, err)
		return
	}
	success(c, http.StatusAccepted, nil)
}

type completionRequest struct {
	Result string `json:"result"`
	Error  string `json:"error"`
}

// Complete is called by music and TTS players once an item is over.
func (h *HTTPHandler) Complete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "BAD_REQUEST", fmt.Sprintf("invalid request id %q", c.Param("id")))
		return
	}
	var in completionRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	if err := h.stream.Complete(c.Request.Context(), id, in.Result, in.Error); err != nil {
		failWith(c, err)
		return
	}
	success(c, http.StatusAccepted, nil)
}

func parseLimit(c *gin.Context) (int, bool) {
	limit := defaultLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			fail(c, http.StatusBadRequest, "BAD_REQUEST", "limit must be a positive integer")
			return 0, false
		}
		limit = min(n, maxLimit)
	}
	return limit, true
}
