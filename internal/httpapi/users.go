package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"task-tracker/internal/model"
	"task-tracker/internal/service"
)

type userRequest struct {
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

func (s *Server) handleRegister(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	user, err := s.users.Register(c.Request.Context(), service.UserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) handleMe(c *gin.Context) {
	user, _ := c.MustGet(userKey).(*model.User)
	c.JSON(http.StatusOK, user)
}

func (s *Server) handleChangePassword(c *gin.Context) {
	var req struct {
		Current string `json:"current_password"`
		New     string `json:"new_password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	changed, err := s.users.ChangePassword(c.Request.Context(), callerOf(c), req.Current, req.New)
	if err != nil {
		writeError(c, err)
		return
	}
	if !changed {
		badRequest(c, "current password does not match")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleLinkTelegram(c *gin.Context) {
	var req struct {
		ChatID int64 `json:"chat_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := s.users.LinkTelegram(c.Request.Context(), callerOf(c).UserID, req.ChatID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// handleListUsers lists users by username, or the newest accounts first
// when limit is given.
func (s *Server) handleListUsers(c *gin.Context) {
	var (
		users []model.User
		err   error
	)
	if raw := c.Query("limit"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n < 0 {
			badRequest(c, "limit must be a non-negative number")
			return
		}
		users, err = s.users.Recent(c.Request.Context(), callerOf(c), n)
	} else {
		users, err = s.users.List(c.Request.Context(), callerOf(c))
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	user, err := s.users.Create(c.Request.Context(), callerOf(c), service.UserInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) handleGetUser(c *gin.Context) {
	user, err := s.users.Get(c.Request.Context(), callerOf(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) handleUpdateUser(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	user, err := s.users.Update(c.Request.Context(), callerOf(c), c.Param("id"), service.UserUpdate{
		Username: req.Username,
		Email:    req.Email,
		Role:     req.Role,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) handleDeleteUser(c *gin.Context) {
	removed, err := s.users.Delete(c.Request.Context(), callerOf(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAssignedTasks(c *gin.Context) {
	tasks, err := s.users.AssignedTasks(c.Request.Context(), callerOf(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}
