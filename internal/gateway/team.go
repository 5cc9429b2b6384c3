// ABOUTME: HTTP routes for team management: add, remove, list, info, reconnect, status and batches
// ABOUTME: Request bodies reject unknown fields; failures are reported as {"error": ...}

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/2389/coven-supervisor/internal/team"
)

// AddMemberRequest is the body of POST /team/add and one item of a batch add.
type AddMemberRequest struct {
	AgentURL  string `json:"agent_url"`
	AgentName string `json:"agent_name,omitempty"`
}

// MemberNameRequest is the body of remove and reconnect, and one item of a
// batch remove.
type MemberNameRequest struct {
	AgentName string `json:"agent_name"`
}

func (g *Gateway) registerTeamRoutes(grp *echo.Group) {
	grp.POST("/add", g.handleTeamAdd)
	grp.DELETE("/remove", g.handleTeamRemove)
	grp.GET("/list", g.handleTeamList)
	grp.GET("/info/:name", g.handleTeamInfo)
	grp.POST("/reconnect", g.handleTeamReconnect)
	grp.GET("/status", g.handleTeamStatus)
	grp.POST("/batch/add", g.handleTeamBatchAdd)
	grp.POST("/batch/remove", g.handleTeamBatchRemove)
}

// decodeStrict decodes the request body into v, rejecting unknown fields.
func decodeStrict(c echo.Context, v any) error {
	dec := json.NewDecoder(c.Request().Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// handleTeamAdd connects a new agent. The structured result is returned
// whether or not the add succeeded.
func (g *Gateway) handleTeamAdd(c echo.Context) error {
	var req AddMemberRequest
	if err := decodeStrict(c, &req); err != nil {
		return sendJSONError(c, http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.AgentURL) == "" {
		return sendJSONError(c, http.StatusBadRequest, "agent_url is required")
	}
	return c.JSON(http.StatusOK, g.team.Add(c.Request().Context(), req.AgentURL, req.AgentName))
}

func (g *Gateway) handleTeamRemove(c echo.Context) error {
	var req MemberNameRequest
	if err := decodeStrict(c, &req); err != nil {
		return sendJSONError(c, http.StatusBadRequest, err.Error())
	}
	if req.AgentName == "" {
		return sendJSONError(c, http.StatusBadRequest, "agent_name is required")
	}
	res := g.team.Remove(c.Request().Context(), req.AgentName)
	if !res.Success {
		return sendJSONError(c, http.StatusBadRequest, res.Error)
	}
	return c.JSON(http.StatusOK, res)
}

func (g *Gateway) handleTeamList(c echo.Context) error {
	return c.JSON(http.StatusOK, g.team.List(c.Request().Context()))
}

func (g *Gateway) handleTeamInfo(c echo.Context) error {
	name := c.Param("name")
	detail, ok := g.team.Info(c.Request().Context(), name)
	if !ok {
		return sendJSONError(c, http.StatusNotFound, fmt.Sprintf("Agent '%s' not found", name))
	}
	return c.JSON(http.StatusOK, detail)
}

func (g *Gateway) handleTeamReconnect(c echo.Context) error {
	var req MemberNameRequest
	if err := decodeStrict(c, &req); err != nil {
		return sendJSONError(c, http.StatusBadRequest, err.Error())
	}
	if req.AgentName == "" {
		return sendJSONError(c, http.StatusBadRequest, "agent_name is required")
	}
	res := g.team.Reconnect(c.Request().Context(), req.AgentName)
	if !res.Success {
		return sendJSONError(c, http.StatusBadRequest, res.Error)
	}
	return c.JSON(http.StatusOK, res)
}

func (g *Gateway) handleTeamStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, g.team.Status(c.Request().Context()))
}

// handleTeamBatchAdd takes a JSON array of add requests.
func (g *Gateway) handleTeamBatchAdd(c echo.Context) error {
	var reqs []AddMemberRequest
	if err := decodeStrict(c, &reqs); err != nil {
		return sendJSONError(c, http.StatusBadRequest, err.Error())
	}
	items := make([]team.AddItem, len(reqs))
	for i, r := range reqs {
		items[i] = team.AddItem{URL: r.AgentURL, Name: r.AgentName}
	}
	out, err := g.team.BatchAdd(c.Request().Context(), items)
	if err != nil {
		return sendBatchError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// handleTeamBatchRemove takes a JSON array of {"agent_name": ...} objects.
func (g *Gateway) handleTeamBatchRemove(c echo.Context) error {
	var reqs []MemberNameRequest
	if err := decodeStrict(c, &reqs); err != nil {
		return sendJSONError(c, http.StatusBadRequest, err.Error())
	}
	names := make([]string, len(reqs))
	for i, r := range reqs {
		names[i] = r.AgentName
	}
	out, err := g.team.BatchRemove(c.Request().Context(), names)
	if err != nil {
		return sendBatchError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func sendBatchError(c echo.Context, err error) error {
	if errors.Is(err, team.ErrBatchTooLarge) {
		return sendJSONError(c, http.StatusBadRequest, fmt.Sprintf("Batch size limited to %d agents", team.MaxBatchSize))
	}
	return sendJSONError(c, http.StatusBadRequest, err.Error())
}
