package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"rkas/internal/budget"
	"rkas/internal/core"
	applog "rkas/internal/log"
	"rkas/internal/services"
)

// itemFilters reads the optional month and category query filters. It writes
// a 400 and returns false when either names an unknown value.
func itemFilters(c *gin.Context) (core.Month, core.Category, bool) {
	month := core.Month(strings.TrimSpace(c.Query("month")))
	category := core.Category(strings.TrimSpace(c.Query("category")))
	if month != "" && !month.Valid() {
		badRequest(c, fmt.Sprintf("%v: %q", core.ErrInvalidMonth, month))
		return "", "", false
	}
	if category != "" && !category.Valid() {
		badRequest(c, fmt.Sprintf("%v: %q", core.ErrInvalidCategory, category))
		return "", "", false
	}
	return month, category, true
}

func (s *Server) handleListItems(c *gin.Context) {
	month, category, ok := itemFilters(c)
	if !ok {
		return
	}
	items := budget.Filter(s.deps.Store.Items(), month, category)
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (s *Server) handleCreateItems(c *gin.Context) {
	var form services.PlanForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, "invalid planner form")
		return
	}
	items, err := s.deps.Planner.Plan(c.Request.Context(), form)
	if err != nil {
		s.writeError(c, applog.OpCreate, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"items": items})
}

func (s *Server) handleUpdateItem(c *gin.Context) {
	var form services.ItemForm
	if err := c.ShouldBindJSON(&form); err != nil {
		badRequest(c, "invalid item body")
		return
	}
	item, err := s.deps.Planner.Edit(c.Request.Context(), c.Param("id"), form)
	if err != nil {
		s.writeError(c, applog.OpUpdate, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (s *Server) handleDeleteItem(c *gin.Context) {
	if confirmed, _ := strconv.ParseBool(c.Query("confirm")); !confirmed {
		s.writeError(c, applog.OpDelete, errConfirmationRequired)
		return
	}
	id := c.Param("id")
	if err := s.deps.Store.DeleteItem(c.Request.Context(), id); err != nil {
		s.writeError(c, applog.OpDelete, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}
