// internal/handlers/admin.go
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"go.uber.org/zap"

	"kbtrial/internal/repository"
)

const defaultSessionListLimit = 50

type AdminHandler struct {
	log  *zap.Logger
	repo *repository.Repository
}

func NewAdminHandler(log *zap.Logger, repo *repository.Repository) *AdminHandler {
	return &AdminHandler{log: log, repo: repo}
}

// ListSessions returns stored sessions, most recent first.
func (h *AdminHandler) ListSessions(c *gin.Context) {
	limit := defaultSessionListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	sessions, err := h.repo.ListSessions(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("Failed to list sessions", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sessions"})
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// SessionResults returns the stored trial records of a session.
func (h *AdminHandler) SessionResults(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.repo.GetSession(c.Request.Context(), id); err != nil {
		h.sessionError(c, id, err)
		return
	}

	records, err := h.repo.GetTrialRecords(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to get trial records", zap.String("session_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load results"})
		return
	}
	c.JSON(http.StatusOK, records)
}

// ReactionTimeChart returns echarts options plotting the reaction time of
// every responded trial of a session.
func (h *AdminHandler) ReactionTimeChart(c *gin.Context) {
	id := c.Param("id")
	session, err := h.repo.GetSession(c.Request.Context(), id)
	if err != nil {
		h.sessionError(c, id, err)
		return
	}

	points, err := h.repo.GetReactionTimes(c.Request.Context(), id)
	if err != nil {
		h.log.Error("Failed to get reaction times", zap.String("session_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load chart data"})
		return
	}

	chart := generateReactionTimeChart(points, fmt.Sprintf("%s / %s", session.Protocol, session.ID))
	c.JSON(http.StatusOK, chart.JSON())
}

func (h *AdminHandler) sessionError(c *gin.Context, id string, err error) {
	if errors.Is(err, repository.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	h.log.Error("Failed to get session", zap.String("session_id", id), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get session"})
}

func generateReactionTimeChart(data []repository.ReactionTimePoint, subtitle string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Reaction Time by Trial",
			Subtitle: subtitle,
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Type: "category",
			Name: "trial",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type:  "value",
			Name:  "rt (ms)",
			Scale: opts.Bool(true),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	labels := make([]string, 0, len(data))
	rts := make([]opts.LineData, 0, len(data))
	invalid := make([]opts.LineData, 0, len(data))
	for _, point := range data {
		labels = append(labels, fmt.Sprintf("%d:%s", point.TrialIndex, point.TrialID))
		rts = append(rts, opts.LineData{Value: point.RT})
		invalid = append(invalid, opts.LineData{Value: point.InvalidCount})
	}

	line.SetXAxis(labels).
		AddSeries("rt", rts).
		AddSeries("invalid presses", invalid).
		SetSeriesOptions(charts.WithLineStyleOpts(opts.LineStyle{Width: 2}))
	return line
}
