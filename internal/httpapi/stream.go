package httpapi

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"task-tracker/internal/notify"
)

type streamEvent struct {
	notify.Event
	Message string `json:"message"`
}

// handleStream pushes the caller's notifications as server-sent events.
// Each task query parameter joins that task's broadcast channel; the caller
// must be able to see the task.
func (s *Server) handleStream(c *gin.Context) {
	if s.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifications are disabled"})
		return
	}
	ctx := c.Request.Context()
	caller := callerOf(c)

	channels := make([]string, 0, len(c.QueryArray("task")))
	for _, taskID := range c.QueryArray("task") {
		if _, err := s.tasks.Get(ctx, caller, taskID); err != nil {
			writeError(c, err)
			return
		}
		channels = append(channels, notify.TaskChannel(taskID))
	}

	sub := s.hub.Subscribe(caller.UserID, channels...)
	defer sub.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"stream_id": sub.ID(), "user_id": caller.UserID, "channels": channels})
	c.Writer.Flush()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-sub.Events():
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Kind), streamEvent{Event: ev, Message: ev.Message()})
			return true
		case <-ticker.C:
			c.SSEvent("ping", time.Now().UTC().Format(time.RFC3339))
			return true
		}
	})
}

// handleJoinTask adds a visible task's broadcast channel to one of the
// caller's open streams.
func (s *Server) handleJoinTask(c *gin.Context) {
	sub, ok := s.ownStream(c)
	if !ok {
		return
	}
	task, err := s.tasks.Get(c.Request.Context(), callerOf(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	sub.Join(notify.TaskChannel(task.ID))
	c.Status(http.StatusNoContent)
}

func (s *Server) handleLeaveTask(c *gin.Context) {
	sub, ok := s.ownStream(c)
	if !ok {
		return
	}
	sub.Leave(notify.TaskChannel(c.Param("id")))
	c.Status(http.StatusNoContent)
}

// ownStream resolves the stream path parameter to a live subscription of
// the caller. Anything else is not found.
func (s *Server) ownStream(c *gin.Context) (*notify.Subscription, bool) {
	if s.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifications are disabled"})
		return nil, false
	}
	id, err := strconv.Atoi(c.Param("stream"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return nil, false
	}
	sub, ok := s.hub.Lookup(id, callerOf(c).UserID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return nil, false
	}
	return sub, true
}
