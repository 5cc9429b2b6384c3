// ABOUTME: HTTP routes for reading and deleting a session's recorded history
// ABOUTME: Backed by the supervisor's session store

package gateway

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/2389/coven-supervisor/internal/store"
)

// SessionMessage is one recorded turn in a session response.
type SessionMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionResponse is the body of GET /sessions/:id.
type SessionResponse struct {
	ID           string           `json:"id"`
	MessageCount int              `json:"message_count"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	Messages     []SessionMessage `json:"messages"`
}

func (g *Gateway) registerSessionRoutes(grp *echo.Group) {
	grp.GET("/:id", g.handleGetSession)
	grp.DELETE("/:id", g.handleDeleteSession)
}

// handleGetSession returns session metadata and its messages. An optional
// ?limit=N returns only the most recent N.
func (g *Gateway) handleGetSession(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return sendJSONError(c, http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}

	sess, err := g.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return sendJSONError(c, http.StatusNotFound, "session not found")
	}
	if err != nil {
		g.logger.Error("failed to load session", "session_id", id, "error", err)
		return sendJSONError(c, http.StatusInternalServerError, "failed to load session")
	}

	msgs, err := g.store.GetSessionMessages(ctx, id, limit)
	if err != nil {
		g.logger.Error("failed to load session messages", "session_id", id, "error", err)
		return sendJSONError(c, http.StatusInternalServerError, "failed to load session")
	}

	resp := SessionResponse{
		ID:           sess.ID,
		MessageCount: sess.MessageCount,
		CreatedAt:    sess.CreatedAt,
		UpdatedAt:    sess.UpdatedAt,
		Messages:     make([]SessionMessage, 0, len(msgs)),
	}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, SessionMessage{
			ID:        m.ID,
			Role:      m.Role,
			Author:    m.Author,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (g *Gateway) handleDeleteSession(c echo.Context) error {
	id := c.Param("id")
	err := g.store.DeleteSession(c.Request().Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		return sendJSONError(c, http.StatusNotFound, "session not found")
	}
	if err != nil {
		g.logger.Error("failed to delete session", "session_id", id, "error", err)
		return sendJSONError(c, http.StatusInternalServerError, "failed to delete session")
	}
	return c.NoContent(http.StatusNoContent)
}
