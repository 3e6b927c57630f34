package server

import (
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/simplegantt/planner/internal/auth"
	"github.com/simplegantt/planner/internal/planner"
)

const subjectContextKey = "gantt_subject"

var errMissingPlannerService = errors.New("planner service dependency required")

// DefaultCORSOrigins lists the local development front-end origins.
var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://127.0.0.1:3000",
	"http://localhost:4173",
	"http://127.0.0.1:4173",
	"http://localhost:5173",
	"http://127.0.0.1:5173",
}

// RequestValidator authenticates an incoming request and returns its subject.
type RequestValidator interface {
	ValidateRequest(r *http.Request) (string, error)
}

// Dependencies wires the HTTP handler. A nil Validator leaves the API open.
type Dependencies struct {
	Service     *planner.Service
	Validator   RequestValidator
	Logger      *zap.Logger
	CORSOrigins []string
}

// NewHTTPHandler builds the gin engine serving the planner API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Service == nil {
		return nil, errMissingPlannerService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	origins := deps.CORSOrigins
	if len(origins) == 0 {
		origins = DefaultCORSOrigins
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(corsMiddleware(origins))
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not Found"})
	})

	handler := &httpHandler{
		service:   deps.Service,
		validator: deps.Validator,
		logger:    logger,
	}

	api := router.Group("/api")
	api.GET("/health", handler.handleHealth)

	protected := api.Group("")
	if handler.validator != nil {
		protected.Use(handler.authorizeRequest)
	}

	protected.GET("/projects", handler.handleListProjects)
	protected.GET("/projects/summary", handler.handleListProjectSummaries)
	protected.POST("/projects", handler.handleCreateProject)
	protected.POST("/projects/reorder", handler.handleReorderProjects)
	protected.PATCH("/projects/:id", handler.handleUpdateProject)
	protected.DELETE("/projects/:id", handler.handleDeleteProject)

	protected.GET("/users", handler.handleListUsers)
	protected.GET("/users/summary", handler.handleListUserSummaries)
	protected.POST("/users", handler.handleCreateUser)
	protected.PATCH("/users/:id", handler.handleUpdateUser)
	protected.DELETE("/users/:id", handler.handleDeleteUser)

	protected.GET("/tasks", handler.handleListTasks)
	protected.POST("/tasks", handler.handleCreateTask)
	protected.POST("/tasks/reorder", handler.handleReorderTasks)
	protected.PATCH("/tasks/:id", handler.handleUpdateTask)
	protected.DELETE("/tasks/:id", handler.handleDeleteTask)
	protected.GET("/tasks/:id/history", handler.handleListTaskHistory)

	return router, nil
}

type httpHandler struct {
	service   *planner.Service
	validator RequestValidator
	logger    *zap.Logger
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startedAt := time.Now()
		c.Next()
		logger.Info("http request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(startedAt)),
		)
	}
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	subject, err := h.validator.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrMissingToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(subjectContextKey, subject)
	c.Next()
}
