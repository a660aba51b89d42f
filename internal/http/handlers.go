package http

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocarina/gocsv"

	"rkas/internal/budget"
	"rkas/internal/core"
	applog "rkas/internal/log"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	aiEnabled := s.deps.Advisor != nil && s.deps.Advisor.Enabled()
	resp := gin.H{
		"status":           s.deps.Status.Get(),
		"aiEnabled":        aiEnabled,
		"remoteConfigured": s.deps.Store.RemoteEnabled(),
	}
	if s.deps.Sync != nil {
		resp["sync"] = s.deps.Sync.Stats()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Store.Snapshot())
}

func (s *Server) handleReload(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Store.LoadAll(c.Request.Context()))
}

func (s *Server) handleGetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Store.Settings())
}

func (s *Server) handleSaveSettings(c *gin.Context) {
	var settings core.SchoolSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		badRequest(c, "invalid settings body")
		return
	}
	saved, err := s.deps.Store.SaveSettings(c.Request.Context(), settings)
	if err != nil {
		s.writeError(c, applog.OpUpdate, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (s *Server) handleSummary(c *gin.Context) {
	st := s.deps.Store.Snapshot()
	c.JSON(http.StatusOK, budget.Summarize(st.Items, st.SchoolData))
}

func (s *Server) handleAccounts(c *gin.Context) {
	accounts, err := core.SearchAccounts(c.Query("q"))
	if err != nil {
		s.writeError(c, applog.OpRead, err)
		return
	}
	if accounts == nil {
		accounts = []core.Account{}
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

// itemRow is the CSV layout of an exported item.
type itemRow struct {
	ID          string `csv:"id"`
	Month       string `csv:"bulan"`
	Category    string `csv:"standar"`
	AccountCode string `csv:"kode_rekening"`
	Name        string `csv:"uraian"`
	Quantity    string `csv:"volume"`
	Unit        string `csv:"satuan"`
	Price       string `csv:"harga_satuan"`
	Total       string `csv:"jumlah"`
	Realization string `csv:"realisasi"`
	Source      string `csv:"sumber_dana"`
}

func toRows(items []core.BudgetItem) []*itemRow {
	rows := make([]*itemRow, 0, len(items))
	for _, it := range items {
		r := &itemRow{
			ID:          it.ID,
			Month:       string(it.Month),
			Category:    string(it.Category),
			AccountCode: it.AccountCode,
			Name:        it.Name,
			Quantity:    it.Quantity.String(),
			Unit:        it.Unit,
			Price:       it.Price.String(),
			Total:       it.Total.String(),
			Source:      it.Source,
		}
		if it.Realization != nil {
			r.Realization = it.Realization.String()
		}
		rows = append(rows, r)
	}
	return rows
}

func (s *Server) handleExportItems(c *gin.Context) {
	month, category, ok := itemFilters(c)
	if !ok {
		return
	}
	items := budget.Filter(s.deps.Store.Items(), month, category)

	var body bytes.Buffer
	if err := gocsv.Marshal(toRows(items), &body); err != nil {
		s.writeError(c, applog.OpList, fmt.Errorf("export items: %w", err))
		return
	}
	name := fmt.Sprintf("rkas-%s.csv", time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", body.Bytes())
}

// handleMetrics reports counters in Prometheus text format.
func (s *Server) handleMetrics(c *gin.Context) {
	traceMetrics := s.trace.GetMetrics()
	rateMetrics := s.limiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()
	st := s.deps.Store.Snapshot()

	w := c.Writer
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Status(http.StatusOK)

	metric := func(name, help, kind string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("http_requests_failed_total", "HTTP requests answered with 5xx", "counter", traceMetrics.FailedRequests)
	metric("rate_limit_hits_total", "Requests rejected by the rate limiter", "counter", rateMetrics.TotalHits)
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", rateMetrics.ClientCount)
	metric("suspicious_requests_total", "Suspicious requests detected", "counter", securityMetrics.SuspiciousRequests)
	metric("budget_items", "Budget items in the store", "gauge", len(st.Items))
	metric("status_websocket_sessions", "Open status websocket sessions", "gauge", s.hub.sessions())
	if s.deps.Sync != nil {
		stats := s.deps.Sync.Stats()
		metric("sync_pending_ops", "Remote writes waiting to be flushed", "gauge", stats.Pending)
		metric("sync_applied_total", "Remote writes applied", "counter", stats.Applied)
		metric("sync_dropped_total", "Remote writes dropped after failure", "counter", stats.Dropped)
	}
	metric("uptime_seconds", "Application uptime in seconds", "gauge", int64(time.Since(s.startedAt).Seconds()))
}
