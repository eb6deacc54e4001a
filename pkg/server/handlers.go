package server

import (
	"context"
	"net/http"

	"offer-clv/pkg/chart"
	"offer-clv/pkg/dashboard"
	"offer-clv/pkg/models"

	"go.uber.org/zap"
)

type chartsPayload struct {
	Repeaters chart.RadialChart `json:"repeaters"`
	CLV       chart.BarChart    `json:"clv"`
}

type dashboardResponse struct {
	dashboard.Snapshot
	Charts *chartsPayload `json:"charts,omitempty"`
}

func chartsFor(s models.MetricSummary) *chartsPayload {
	return &chartsPayload{Repeaters: chart.Repeaters(s), CLV: chart.CLV(s)}
}

// getDashboard always answers 200: the client renders whatever state it gets.
func (h *Handler) getDashboard(w http.ResponseWriter, _ *http.Request) {
	snap := h.dash.Snapshot()
	resp := dashboardResponse{Snapshot: snap}
	if snap.Result != nil {
		resp.Charts = chartsFor(snap.Result.Summary)
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *Handler) getSummary(w http.ResponseWriter, _ *http.Request) {
	res, err := h.dash.Result()
	if err != nil {
		status, code, msg := mapLoadError(err)
		writeError(w, status, code, msg)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) getRepeatersChart(w http.ResponseWriter, r *http.Request) {
	res, err := h.dash.Result()
	if err != nil {
		status, code, msg := mapLoadError(err)
		writeError(w, status, code, msg)
		return
	}
	h.writeChart(w, r, chart.Repeaters(res.Summary))
}

func (h *Handler) getCLVChart(w http.ResponseWriter, r *http.Request) {
	res, err := h.dash.Result()
	if err != nil {
		status, code, msg := mapLoadError(err)
		writeError(w, status, code, msg)
		return
	}
	h.writeChart(w, r, chart.CLV(res.Summary))
}

func (h *Handler) writeChart(w http.ResponseWriter, r *http.Request, c any) {
	switch r.URL.Query().Get("format") {
	case "", "json":
		writeSuccess(w, http.StatusOK, c)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		if err := chart.WriteCSV(w, c); err != nil {
			h.logger.Warn("write chart csv", zap.Error(err))
		}
	default:
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "format must be json or csv")
	}
}

// reload outlives the request: a client hanging up must not fail the load
// for everyone else. Only the configured timeout bounds it.
func (h *Handler) reload(w http.ResponseWriter, r *http.Request) {
	ctx := context.WithoutCancel(r.Context())
	if h.reloadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.reloadTimeout)
		defer cancel()
	}
	if err := h.dash.Refresh(ctx); err != nil {
		writeError(w, http.StatusServiceUnavailable, "LOAD_FAILED", err.Error())
		return
	}
	snap := h.dash.Snapshot()
	resp := dashboardResponse{Snapshot: snap}
	if snap.Result != nil {
		resp.Charts = chartsFor(snap.Result.Summary)
	}
	writeSuccess(w, http.StatusOK, resp)
}
