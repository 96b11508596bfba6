package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/ostrauk/mailboard/internal/analytics"
	"github.com/ostrauk/mailboard/internal/session"
)

// Snapshot aliases keep handler signatures readable
type (
	OverviewSnapshot   = session.Snapshot[[]analytics.OverviewRow]
	SubscriberSnapshot = session.Snapshot[[]analytics.SubscriberRow]
)

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

// OverviewResponse is the response for GET /api/v1/overview
type OverviewResponse struct {
	SnapshotID string                  `json:"snapshot_id,omitempty"`
	FetchedAt  time.Time               `json:"fetched_at,omitempty"`
	Summary    analytics.Summary       `json:"summary"`
	Rows       []analytics.OverviewRow `json:"rows"`
	Message    string                  `json:"message,omitempty"`
}

// MonthlyResponse is the response for GET /api/v1/overview/monthly
type MonthlyResponse struct {
	SnapshotID string                 `json:"snapshot_id,omitempty"`
	FetchedAt  time.Time              `json:"fetched_at,omitempty"`
	Rows       []analytics.MonthlyRow `json:"rows"`
	Message    string                 `json:"message,omitempty"`
}

// DetailResponse is the response for GET /api/v1/campaigns/{id}
type DetailResponse struct {
	SnapshotID string                    `json:"snapshot_id"`
	FetchedAt  time.Time                 `json:"fetched_at"`
	Detail     *analytics.CampaignDetail `json:"detail"`
	Message    string                    `json:"message,omitempty"`
}

// SubscribersResponse is the response for GET /api/v1/campaigns/{id}/subscribers
type SubscribersResponse struct {
	SnapshotID string                    `json:"snapshot_id"`
	FetchedAt  time.Time                 `json:"fetched_at"`
	Summary    analytics.ActivitySummary `json:"summary"`
	Rows       []analytics.SubscriberRow `json:"rows"`
	Message    string                    `json:"message,omitempty"`
}

// GrowthResponse is the response for GET /api/v1/lists/{id}/growth
type GrowthResponse struct {
	Rows    []analytics.GrowthRow `json:"rows"`
	Message string                `json:"message,omitempty"`
}

// ErrorResponse is the error response for bad requests
type ErrorResponse struct {
	Error string `json:"error"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, HealthResponse{
		Status: "ok",
		Uptime: time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleOverview handles GET /api/v1/overview. An upstream failure is not
// an API failure: the dashboard gets an empty table plus a message.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	rows, snap, msg := s.overviewRows(r)
	if msg != "" {
		render.JSON(w, r, OverviewResponse{Rows: []analytics.OverviewRow{}, Message: msg})
		return
	}

	rows = analytics.FilterByDate(rows, queryDate(r, "from"), queryDateEnd(r, "to"))
	analytics.SortRows(rows, r.URL.Query().Get("sort"), r.URL.Query().Get("dir"))

	resp := OverviewResponse{
		SnapshotID: snap.ID,
		FetchedAt:  snap.FetchedAt,
		Summary:    analytics.Summarize(rows),
		Rows:       rows,
	}
	if len(rows) == 0 {
		resp.Message = "no campaigns in the selected range"
	}
	render.JSON(w, r, resp)
}

// handleOverviewCSV handles GET /api/v1/overview.csv
func (s *Server) handleOverviewCSV(w http.ResponseWriter, r *http.Request) {
	rows, _, msg := s.overviewRows(r)
	if msg != "" {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, ErrorResponse{Error: msg})
		return
	}

	rows = analytics.FilterByDate(rows, queryDate(r, "from"), queryDateEnd(r, "to"))
	analytics.SortRows(rows, r.URL.Query().Get("sort"), r.URL.Query().Get("dir"))
	writeOverviewCSV(w, rows)
}

// handleMonthly handles GET /api/v1/overview/monthly: campaigns grouped by
// send month with averaged rates, for the monthly performance chart
func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	rows, snap, msg := s.overviewRows(r)
	if msg != "" {
		render.JSON(w, r, MonthlyResponse{Rows: []analytics.MonthlyRow{}, Message: msg})
		return
	}

	rows = analytics.FilterByDate(rows, queryDate(r, "from"), queryDateEnd(r, "to"))
	resp := MonthlyResponse{
		SnapshotID: snap.ID,
		FetchedAt:  snap.FetchedAt,
		Rows:       analytics.Monthly(rows),
	}
	if len(resp.Rows) == 0 {
		resp.Message = "no campaigns in the selected range"
	}
	render.JSON(w, r, resp)
}

// overviewRows serves the session snapshot unless a refresh is requested
func (s *Server) overviewRows(r *http.Request) ([]analytics.OverviewRow, *OverviewSnapshot, string) {
	if !wantRefresh(r) {
		if snap, ok := s.sessions.Overview(); ok {
			s.metrics.CacheHit("overview")
			return cloneRows(snap.Data), snap, ""
		}
	}
	s.metrics.CacheMiss("overview")

	rows, err := s.svc.Overview(r.Context())
	if err != nil {
		s.logger.Error("overview fetch failed", "error", err)
		return nil, nil, "no data: campaign fetch failed"
	}
	snap := s.sessions.SetOverview(rows)
	return cloneRows(rows), snap, ""
}

// handleCampaignDetail handles GET /api/v1/campaigns/{id}
func (s *Server) handleCampaignDetail(w http.ResponseWriter, r *http.Request) {
	campaignID := chi.URLParam(r, "id")
	s.sessions.Select(campaignID)

	if !wantRefresh(r) {
		if snap, ok := s.sessions.Detail(campaignID); ok {
			s.metrics.CacheHit("detail")
			render.JSON(w, r, detailResponse(snap.ID, snap.FetchedAt, snap.Data))
			return
		}
	}
	s.metrics.CacheMiss("detail")

	d, err := s.svc.Detail(r.Context(), campaignID)
	if err != nil {
		// Detail degrades internally; an error here means the aggregation
		// itself broke, which is still not fatal for the dashboard.
		s.logger.Error("detail aggregation failed", "campaign_id", campaignID, "error", err)
		render.JSON(w, r, DetailResponse{Message: "no data: detail aggregation failed"})
		return
	}

	snap := s.sessions.SetDetail(campaignID, d)
	// The detail aggregation already joined the audience rows; seed the
	// subscriber snapshot so the usual detail-then-audience flow does not
	// refetch the same activity and member pages.
	if d.Subscribers != nil {
		s.sessions.SetSubscribers(campaignID, d.Subscribers)
	}
	render.JSON(w, r, detailResponse(snap.ID, snap.FetchedAt, d))
}

func detailResponse(snapID string, fetchedAt time.Time, d *analytics.CampaignDetail) DetailResponse {
	resp := DetailResponse{SnapshotID: snapID, FetchedAt: fetchedAt, Detail: d}
	if d != nil && len(d.Missing) > 0 {
		resp.Message = "some sections have no data"
	}
	return resp
}

// handleSubscribers handles GET /api/v1/campaigns/{id}/subscribers
func (s *Server) handleSubscribers(w http.ResponseWriter, r *http.Request) {
	rows, snap, msg := s.subscriberRows(r)
	if msg != "" {
		render.JSON(w, r, SubscribersResponse{Rows: []analytics.SubscriberRow{}, Message: msg})
		return
	}

	resp := SubscribersResponse{
		SnapshotID: snap.ID,
		FetchedAt:  snap.FetchedAt,
		Summary:    analytics.ActivityCounts(rows),
		Rows:       rows,
	}
	if len(rows) == 0 {
		resp.Message = "no audience data available for this campaign"
	}
	render.JSON(w, r, resp)
}

// handleSubscribersCSV handles GET /api/v1/campaigns/{id}/subscribers.csv
func (s *Server) handleSubscribersCSV(w http.ResponseWriter, r *http.Request) {
	rows, _, msg := s.subscriberRows(r)
	if msg != "" {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, ErrorResponse{Error: msg})
		return
	}
	writeSubscribersCSV(w, rows)
}

// subscriberRows serves the session snapshot unless a refresh is requested
func (s *Server) subscriberRows(r *http.Request) ([]analytics.SubscriberRow, *SubscriberSnapshot, string) {
	campaignID := chi.URLParam(r, "id")
	s.sessions.Select(campaignID)

	if !wantRefresh(r) {
		if snap, ok := s.sessions.Subscribers(campaignID); ok {
			s.metrics.CacheHit("subscribers")
			return snap.Data, snap, ""
		}
	}
	s.metrics.CacheMiss("subscribers")

	listID := r.URL.Query().Get("list_id")
	if listID == "" {
		listID = s.defaultListID
	}

	rows, err := s.svc.Subscribers(r.Context(), campaignID, listID)
	if err != nil {
		s.logger.Error("subscriber aggregation failed", "campaign_id", campaignID, "error", err)
		return nil, nil, "no data: subscriber fetch failed"
	}
	snap := s.sessions.SetSubscribers(campaignID, rows)
	return rows, snap, ""
}

// handleAudience handles GET /api/v1/lists/{id}
func (s *Server) handleAudience(w http.ResponseWriter, r *http.Request) {
	listID := s.resolveListID(chi.URLParam(r, "id"))

	audience, err := s.svc.AudienceInfo(r.Context(), listID)
	if err != nil {
		s.logger.Error("audience fetch failed", "list_id", listID, "error", err)
		render.JSON(w, r, ErrorResponse{Error: "no data: audience fetch failed"})
		return
	}
	render.JSON(w, r, audience)
}

// handleGrowth handles GET /api/v1/lists/{id}/growth
func (s *Server) handleGrowth(w http.ResponseWriter, r *http.Request) {
	listID := s.resolveListID(chi.URLParam(r, "id"))

	rows, err := s.svc.Growth(r.Context(), listID)
	if err != nil {
		s.logger.Error("growth fetch failed", "list_id", listID, "error", err)
		render.JSON(w, r, GrowthResponse{Rows: []analytics.GrowthRow{}, Message: "no data: growth history fetch failed"})
		return
	}
	render.JSON(w, r, GrowthResponse{Rows: rows})
}

// resolveListID maps the "default" placeholder to the configured audience
func (s *Server) resolveListID(id string) string {
	if id == "default" && s.defaultListID != "" {
		return s.defaultListID
	}
	return id
}

func wantRefresh(r *http.Request) bool {
	v := r.URL.Query().Get("refresh")
	return v == "1" || v == "true"
}

func queryDate(r *http.Request, key string) time.Time {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// queryDateEnd parses a date bound inclusively: the whole day counts
func queryDateEnd(r *http.Request, key string) time.Time {
	t := queryDate(r, key)
	if t.IsZero() {
		return t
	}
	return t.Add(24*time.Hour - time.Nanosecond)
}

// cloneRows copies the cached slice so per-request sorting and filtering
// never mutate the session snapshot
func cloneRows(rows []analytics.OverviewRow) []analytics.OverviewRow {
	out := make([]analytics.OverviewRow, len(rows))
	copy(out, rows)
	return out
}
