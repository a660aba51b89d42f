package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	applog "rkas/internal/log"
	"rkas/internal/services"
)

func (s *Server) handleAudit(c *gin.Context) {
	res, err := s.deps.Audit.Audit(c.Request.Context())
	if err != nil {
		s.writeError(c, "audit", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleChecklist(c *gin.Context) {
	rec, err := s.deps.SPJ.Checklist(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, applog.OpCreate, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleRecommendation(c *gin.Context) {
	rec, err := s.deps.SPJ.Recommendation(c.Param("id"))
	if err != nil {
		s.writeError(c, applog.OpRead, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleToggleEvidence(c *gin.Context) {
	rec, err := s.deps.SPJ.ToggleEvidence(c.Request.Context(), c.Param("id"), c.Param("evidenceId"))
	if err != nil {
		s.writeError(c, applog.OpUpdate, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) handleProposeReallocation(c *gin.Context) {
	if _, err := s.deps.Reallocation.Propose(c.Request.Context(), c.Param("id")); err != nil {
		s.writeError(c, applog.OpCreate, err)
		return
	}
	c.JSON(http.StatusOK, s.deps.Reallocation.Current())
}

func (s *Server) handleReallocation(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Reallocation.Current())
}

func (s *Server) handleAbandonReallocation(c *gin.Context) {
	s.deps.Reallocation.Abandon(c.Request.Context())
	c.JSON(http.StatusOK, s.deps.Reallocation.Current())
}

// handleSubmitReallocation accepts the planner form the user completed from
// the draft.
func (s *Server) handleSubmitReallocation(c *gin.Context) {
	var form services.PlanForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, "invalid planner form")
		return
	}

	items, err := s.deps.Reallocation.Submit(c.Request.Context(), form)
	if err != nil {
		s.writeError(c, applog.OpCreate, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"items": items})
}
