// Package httpapi exposes the task tracker over a JSON HTTP API with Basic
// authentication and a server-sent events stream for notifications.
package httpapi

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"task-tracker/internal/model"
	"task-tracker/internal/notify"
	"task-tracker/internal/policy"
	"task-tracker/internal/service"
)

const (
	callerKey = "caller"
	userKey   = "user"
	realm     = `Basic realm="task-tracker"`
)

// Server routes API requests to the task and user services.
type Server struct {
	users     *service.UserService
	tasks     *service.TaskService
	hub       *notify.Hub
	router    *gin.Engine
	keepAlive time.Duration
}

// NewServer builds the router. hub may be nil, which disables the
// notification stream.
func NewServer(users *service.UserService, tasks *service.TaskService, hub *notify.Hub) *Server {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	s := &Server{
		users:     users,
		tasks:     tasks,
		hub:       hub,
		router:    router,
		keepAlive: 25 * time.Second,
	}

	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := router.Group("/api")
	api.POST("/register", s.handleRegister)

	authed := api.Group("", s.authenticate)
	{
		authed.GET("/me", s.handleMe)
		authed.PUT("/me/password", s.handleChangePassword)
		authed.PUT("/me/telegram", s.handleLinkTelegram)

		authed.GET("/tasks", s.handleListTasks)
		authed.POST("/tasks", s.handleCreateTask)
		authed.GET("/tasks/:id", s.handleGetTask)
		authed.PUT("/tasks/:id", s.handleUpdateTask)
		authed.DELETE("/tasks/:id", s.handleDeleteTask)
		authed.PUT("/tasks/:id/status", s.handleChangeStatus)
		authed.PUT("/tasks/:id/priority", s.handleUpdatePriority)
		authed.PUT("/tasks/:id/due", s.handleUpdateDueDate)
		authed.PUT("/tasks/:id/assignee", s.handleAssign)
		authed.DELETE("/tasks/:id/assignee", s.handleUnassign)
		authed.GET("/tasks/:id/comments", s.handleListComments)
		authed.POST("/tasks/:id/comments", s.handleAddComment)

		authed.GET("/stats", s.handleStats)

		authed.GET("/users", s.handleListUsers)
		authed.POST("/users", s.handleCreateUser)
		authed.GET("/users/:id", s.handleGetUser)
		authed.PUT("/users/:id", s.handleUpdateUser)
		authed.DELETE("/users/:id", s.handleDeleteUser)
		authed.GET("/users/:id/tasks", s.handleAssignedTasks)

		authed.GET("/notifications/stream", s.handleStream)
		authed.PUT("/notifications/streams/:stream/tasks/:id", s.handleJoinTask)
		authed.DELETE("/notifications/streams/:stream/tasks/:id", s.handleLeaveTask)
	}

	return s
}

// Handler returns the router for use in an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// authenticate checks Basic credentials and stores the caller on the context.
func (s *Server) authenticate(c *gin.Context) {
	login, password, ok := c.Request.BasicAuth()
	if !ok {
		c.Header("WWW-Authenticate", realm)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	user, err := s.users.Verify(c.Request.Context(), login, password)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			c.Header("WWW-Authenticate", realm)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		log.Printf("api authenticate: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Set(userKey, user)
	c.Set(callerKey, policy.Caller{UserID: user.ID, Role: user.Role})
	c.Next()
}

func callerOf(c *gin.Context) policy.Caller {
	caller, _ := c.MustGet(callerKey).(policy.Caller)
	return caller
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err. Not-found bodies never carry the id so a hidden
// record and a missing one look the same.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	switch status {
	case http.StatusNotFound:
		msg = "not found"
	case http.StatusInternalServerError:
		log.Printf("api %s %s: %v", c.Request.Method, c.FullPath(), err)
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
