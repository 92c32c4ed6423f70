package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"terminal-core/internal/engine"
	"terminal-core/internal/position"
	"terminal-core/internal/symbols"
	"terminal-core/internal/terminal"
	"terminal-core/pkg/db"
)

type openSessionRequest struct {
	Symbol     string  `json:"symbol"`
	PositionID string  `json:"position_id"`
	Leverage   float64 `json:"leverage" binding:"gte=0"`
}

type editFieldRequest struct {
	Key   string `json:"key" binding:"required,min=1"`
	Value string `json:"value"`
}

type listPayloadsQuery struct {
	Limit int `form:"limit"`
}

func (q *listPayloadsQuery) normalize() {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Limit > 200 {
		q.Limit = 200
	}
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, gin.H{
		"code":  code,
		"error": msg,
	})
}

// errorStatuses maps engine and session errors onto HTTP responses.
var errorStatuses = []struct {
	err    error
	status int
	code   string
}{
	{engine.ErrSessionNotFound, http.StatusNotFound, "SESSION_NOT_FOUND"},
	{engine.ErrPositionNotFound, http.StatusNotFound, "POSITION_NOT_FOUND"},
	{symbols.ErrUnknownSymbol, http.StatusNotFound, "UNKNOWN_SYMBOL"},
	{engine.ErrSymbolMismatch, http.StatusBadRequest, "SYMBOL_MISMATCH"},
	{engine.ErrNoPosition, http.StatusConflict, "NO_POSITION"},
	{terminal.ErrUnknownField, http.StatusBadRequest, "UNKNOWN_FIELD"},
	{terminal.ErrUnknownTarget, http.StatusBadRequest, "UNKNOWN_TARGET"},
	{terminal.ErrUnknownPanel, http.StatusBadRequest, "UNKNOWN_PANEL"},
	{terminal.ErrPanelUnavailable, http.StatusConflict, "PANEL_UNAVAILABLE"},
	{terminal.ErrPanelCollapsed, http.StatusConflict, "PANEL_COLLAPSED"},
	{terminal.ErrReadOnly, http.StatusConflict, "READ_ONLY"},
	{terminal.ErrTargetLocked, http.StatusConflict, "TARGET_LOCKED"},
	{terminal.ErrNotRemovable, http.StatusConflict, "NOT_REMOVABLE"},
	{terminal.ErrGroupFull, http.StatusConflict, "GROUP_FULL"},
	{terminal.ErrFieldLocked, http.StatusConflict, "FIELD_LOCKED"},
	{terminal.ErrStaleSnapshot, http.StatusConflict, "STALE_SNAPSHOT"},
	{terminal.ErrInvalidDraft, http.StatusUnprocessableEntity, "INVALID_DRAFT"},
	{db.ErrPositionIDRequired, http.StatusBadRequest, "INVALID_REQUEST"},
	{db.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT"},
}

func respondErr(c *gin.Context, err error) {
	for _, m := range errorStatuses {
		if errors.Is(err, m.err) {
			respondError(c, m.status, m.code, err.Error())
			return
		}
	}
	_ = c.Error(err)
	respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
}

// openSession starts an edit session for a new or an existing position.
func (s *Server) openSession(c *gin.Context) {
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	if req.Symbol == "" && req.PositionID == "" {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "symbol or position_id is required")
		return
	}

	view, err := s.Engine.OpenSession(c.Request.Context(), engine.OpenRequest{
		Symbol:     req.Symbol,
		PositionID: req.PositionID,
		Leverage:   req.Leverage,
	})
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (s *Server) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.ListSessions(c.Request.Context()))
}

func (s *Server) getSession(c *gin.Context) {
	view, err := s.Engine.Session(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) closeSession(c *gin.Context) {
	if err := s.Engine.CloseSession(c.Request.Context(), c.Param("id")); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "closed"})
}

// editField sets one field. Validation failures are part of the 200 response;
// only structural problems (unknown key, collapsed panel, read-only) are errors.
func (s *Server) editField(c *gin.Context) {
	var req editFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	res, err := s.Engine.Edit(c.Request.Context(), c.Param("id"), req.Key, req.Value)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) togglePanel(c *gin.Context) {
	panel, err := terminal.ParsePanelName(c.Param("panel"))
	if err != nil {
		respondErr(c, err)
		return
	}
	view, err := s.Engine.TogglePanel(c.Request.Context(), c.Param("id"), panel)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (s *Server) addTarget(c *gin.Context) {
	view, err := s.Engine.AddTarget(c.Request.Context(), c.Param("id"), c.Param("group"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// removeTarget drops the boundary target, or the numbered one when :target is given.
func (s *Server) removeTarget(c *gin.Context) {
	var target *int
	if raw := c.Param("target"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_TARGET", "target must be a number")
			return
		}
		target = &n
	}
	view, err := s.Engine.RemoveTarget(c.Request.Context(), c.Param("id"), c.Param("group"), target)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// assemblePayload returns the submission payload, or the failing view with 422.
func (s *Server) assemblePayload(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	payload, err := s.Engine.Assemble(ctx, id)
	if err != nil {
		if errors.Is(err, terminal.ErrInvalidDraft) {
			view, _ := s.Engine.Session(ctx, id)
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"code":  "INVALID_DRAFT",
				"error": err.Error(),
				"view":  view,
			})
			return
		}
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (s *Server) listPayloads(c *gin.Context) {
	var q listPayloadsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_QUERY", "invalid query parameters")
		return
	}
	q.normalize()

	out, err := s.Engine.Payloads(c.Request.Context(), c.Param("id"), q.Limit)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.Header("X-Result-Limit", strconv.Itoa(q.Limit))
	c.JSON(http.StatusOK, out)
}

func (s *Server) refreshPosition(c *gin.Context) {
	view, err := s.Engine.RefreshPosition(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// putPosition ingests a snapshot pushed by the position service. Older
// versions are acknowledged but not applied.
func (s *Server) putPosition(c *gin.Context) {
	var p position.Entity
	if err := c.ShouldBindJSON(&p); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request payload")
		return
	}
	p.ID = c.Param("id")
	side, ok := position.ParseSide(string(p.Side))
	if !ok {
		respondError(c, http.StatusBadRequest, "INVALID_SIDE", "side must be LONG or SHORT")
		return
	}
	p.Side = side

	applied, err := s.Engine.ApplyPosition(c.Request.Context(), p)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":      p.ID,
		"version": p.Version,
		"applied": applied,
	})
}

func (s *Server) getSymbols(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.Symbols(c.Request.Context()))
}

// getSystemStatus returns runtime information for the UI.
func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.Engine.GetSystemStatus(c.Request.Context()))
}

func (s *Server) getMetricsSummary(c *gin.Context) {
	c.JSON(http.StatusOK, s.Metrics.Snapshot())
}
