package apihttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"vigil/internal/store/gormstore"
)

func (s *Server) handleStatus(c *gin.Context) {
	resp := gin.H{"engine": s.cfg.Engine.Status()}
	if s.cfg.Flags != nil {
		if st, err := s.cfg.Flags.KillSwitchStatus(c.Request.Context()); err == nil {
			resp["kill_switch"] = st
		} else {
			resp["kill_switch_error"] = err.Error()
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleLatestProposal(c *gin.Context) {
	symbol := strings.TrimSpace(c.Query("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol query parameter is required"})
		return
	}
	result, ok := s.cfg.Engine.Latest(symbol)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cycle has run for " + strings.ToUpper(symbol)})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleRunCycle(c *gin.Context) {
	var req struct {
		Symbol string `json:"symbol" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.cfg.Engine.RunCycle(c.Request.Context(), req.Symbol); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	result, _ := s.cfg.Engine.Latest(req.Symbol)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListDecisions(c *gin.Context) {
	symbol := c.Query("symbol")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	ctx := c.Request.Context()
	records, err := s.cfg.Store.ListDecisions(ctx, symbol, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	total, err := s.cfg.Store.CountDecisions(ctx, symbol)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"decisions": records, "total": total})
}

func (s *Server) handleGetDecision(c *gin.Context) {
	rec, found, err := s.cfg.Store.GetDecision(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "decision not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleUserAction(c *gin.Context) {
	var req struct {
		Action  string         `json:"action" binding:"required"`
		Details map[string]any `json:"details"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := s.cfg.Store.RecordUserAction(c.Request.Context(), c.Param("id"), req.Action, req.Details)
	switch {
	case errors.Is(err, gormstore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "decision not found"})
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "recorded", "action": strings.ToLower(req.Action)})
	}
}

func (s *Server) handleOutcome(c *gin.Context) {
	var req struct {
		RealizedPnL float64    `json:"realized_pnl"`
		ClosedAt    *time.Time `json:"closed_at"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	closedAt := time.Now()
	if req.ClosedAt != nil {
		closedAt = *req.ClosedAt
	}
	err := s.cfg.Store.RecordOutcome(c.Request.Context(), c.Param("id"), req.RealizedPnL, closedAt)
	switch {
	case errors.Is(err, gormstore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "decision not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "recorded"})
	}
}

// handleExecute runs the safety gate against a fresh snapshot and, only if
// every check passes, hands the proposal to the executor. The gate's
// verdict is returned either way so a refusal is fully explained.
func (s *Server) handleExecute(c *gin.Context) {
	if s.cfg.Gate == nil || s.cfg.Builder == nil || s.cfg.Executor == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "execution is not wired in this mode"})
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")

	rec, found, err := s.cfg.Store.GetDecision(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found || rec.Proposal == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "decision not found"})
		return
	}

	// Freshness and daily limits are re-evaluated against a snapshot built
	// now, not the one the proposal was coordinated from.
	snap, err := s.cfg.Builder.Build(ctx, rec.Symbol, s.cfg.Timeframe)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	verdict := s.cfg.Gate.Check(ctx, rec.Proposal, snap)
	if !verdict.Allowed {
		c.JSON(http.StatusConflict, gin.H{"safety": verdict})
		return
	}

	receipt, err := s.cfg.Executor.Execute(ctx, rec.Proposal)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"safety": verdict, "error": err.Error()})
		return
	}
	if err := s.cfg.Store.MarkExecuted(ctx, id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"safety": verdict, "receipt": receipt, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"safety": verdict, "receipt": receipt})
}

func (s *Server) handleKillSwitchStatus(c *gin.Context) {
	if s.cfg.Flags == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "kill switch is not wired"})
		return
	}
	st, err := s.cfg.Flags.KillSwitchStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleKillSwitchToggle(c *gin.Context) {
	if s.cfg.Flags == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "kill switch is not wired"})
		return
	}
	var req struct {
		Engaged *bool  `json:"engaged" binding:"required"`
		Reason  string `json:"reason"`
		SetBy   string `json:"set_by"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	var err error
	if *req.Engaged {
		err = s.cfg.Flags.Engage(ctx, req.Reason, req.SetBy)
	} else {
		err = s.cfg.Flags.Disengage(ctx)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	st, err := s.cfg.Flags.KillSwitchStatus(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}
