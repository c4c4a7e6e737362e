package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"task-tracker/internal/model"
	"task-tracker/internal/service"
)

type taskRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Priority    model.Priority   `json:"priority"`
	Status      model.TaskStatus `json:"status"`
	SystemName  string           `json:"system_name"`
	DueDate     *time.Time       `json:"due_date"`
	AssigneeID  *string          `json:"assignee_id"`
}

func (r taskRequest) input() service.TaskInput {
	return service.TaskInput{
		Title:       r.Title,
		Description: r.Description,
		Priority:    r.Priority,
		Status:      r.Status,
		SystemName:  r.SystemName,
		DueDate:     r.DueDate,
		AssigneeID:  r.AssigneeID,
	}
}

// handleListTasks serves the caller's tasks. Filters, in order of precedence:
// status, priority, overdue=true, due_within=<days>, limit=<n>.
func (s *Server) handleListTasks(c *gin.Context) {
	ctx := c.Request.Context()
	caller := callerOf(c)
	now := time.Now().UTC()

	var (
		tasks []model.Task
		err   error
	)
	switch {
	case c.Query("status") != "":
		tasks, err = s.tasks.ListByStatus(ctx, caller, model.TaskStatus(c.Query("status")))
	case c.Query("priority") != "":
		tasks, err = s.tasks.ListByPriority(ctx, caller, model.Priority(c.Query("priority")))
	case c.Query("overdue") == "true":
		tasks, err = s.tasks.Overdue(ctx, caller, now)
	case c.Query("due_within") != "":
		days, convErr := strconv.Atoi(c.Query("due_within"))
		if convErr != nil || days < 0 {
			badRequest(c, "due_within must be a non-negative number of days")
			return
		}
		tasks, err = s.tasks.DueSoon(ctx, caller, now, days)
	case c.Query("limit") != "":
		n, convErr := strconv.Atoi(c.Query("limit"))
		if convErr != nil || n < 0 {
			badRequest(c, "limit must be a non-negative number")
			return
		}
		tasks, err = s.tasks.Recent(ctx, caller, n)
	default:
		tasks, err = s.tasks.List(ctx, caller)
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	task, err := s.tasks.Create(c.Request.Context(), callerOf(c), req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.tasks.Get(c.Request.Context(), callerOf(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	task, err := s.tasks.Update(c.Request.Context(), callerOf(c), c.Param("id"), req.input())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	removed, err := s.tasks.Delete(c.Request.Context(), callerOf(c), c.Param("id"))
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

func (s *Server) handleChangeStatus(c *gin.Context) {
	var req struct {
		Status model.TaskStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	task, err := s.tasks.ChangeStatus(c.Request.Context(), callerOf(c), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleUpdatePriority(c *gin.Context) {
	var req struct {
		Priority model.Priority `json:"priority" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	task, err := s.tasks.UpdatePriority(c.Request.Context(), callerOf(c), c.Param("id"), req.Priority)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// handleUpdateDueDate sets the due date; a null or missing due_date clears it.
func (s *Server) handleUpdateDueDate(c *gin.Context) {
	var req struct {
		DueDate *time.Time `json:"due_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	task, err := s.tasks.UpdateDueDate(c.Request.Context(), callerOf(c), c.Param("id"), req.DueDate)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleAssign(c *gin.Context) {
	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	task, err := s.tasks.AssignTask(c.Request.Context(), callerOf(c), c.Param("id"), req.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleUnassign(c *gin.Context) {
	task, err := s.tasks.Unassign(c.Request.Context(), callerOf(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleListComments(c *gin.Context) {
	comments, err := s.tasks.ListComments(c.Request.Context(), callerOf(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (s *Server) handleAddComment(c *gin.Context) {
	var req struct {
		Content string `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	comment, err := s.tasks.AddComment(c.Request.Context(), callerOf(c), c.Param("id"), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

// handleStats aggregates the caller's tasks, optionally narrowed by system
// and an inclusive creation-date range.
func (s *Server) handleStats(c *gin.Context) {
	filter := service.StatsFilter{SystemName: c.Query("system")}
	var err error
	if filter.From, err = ParseBound(c.Query("from"), false); err != nil {
		badRequest(c, err.Error())
		return
	}
	if filter.To, err = ParseBound(c.Query("to"), true); err != nil {
		badRequest(c, err.Error())
		return
	}
	stats, err := s.tasks.Aggregate(c.Request.Context(), callerOf(c), filter)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ParseBound reads a date bound for statistics queries. With endOfDay a bare
// date is moved to its last instant.
func ParseBound(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	day, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC 3339", raw)
	}
	if endOfDay {
		day = day.Add(24*time.Hour - time.Nanosecond)
	}
	return &day, nil
}
