package analytics

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ostrauk/mailboard/internal/mailchimp"
)

// fakeClient implements Client for tests
type fakeClient struct {
	mu sync.Mutex

	campaigns    []mailchimp.Campaign
	campaignsErr error
	reports      map[string]*mailchimp.Report
	reportErr    error
	clicks       []mailchimp.ClickDetail
	clicksErr    error
	content      *mailchimp.Content
	contentErr   error
	activity     []mailchimp.EmailActivity
	activityErr  error
	members      []mailchimp.Member
	membersErr   error
	list         *mailchimp.List
	listErr      error
	history      []mailchimp.GrowthHistory
	historyErr   error

	reportDelay map[string]time.Duration
	inflight    int
	maxInflight int
}

func (f *fakeClient) Campaigns(ctx context.Context, count int) ([]mailchimp.Campaign, error) {
	return f.campaigns, f.campaignsErr
}

func (f *fakeClient) Report(ctx context.Context, id string) (*mailchimp.Report, error) {
	f.mu.Lock()
	f.inflight++
	if f.inflight > f.maxInflight {
		f.maxInflight = f.inflight
	}
	delay := f.reportDelay[id]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	f.inflight--
	f.mu.Unlock()

	if f.reportErr != nil {
		return nil, f.reportErr
	}
	rep, ok := f.reports[id]
	if !ok {
		return nil, &mailchimp.APIError{Status: 404, Title: "Resource Not Found"}
	}
	return rep, nil
}

func (f *fakeClient) ClickDetails(ctx context.Context, id string, count int) ([]mailchimp.ClickDetail, error) {
	return f.clicks, f.clicksErr
}

func (f *fakeClient) Content(ctx context.Context, id string) (*mailchimp.Content, error) {
	return f.content, f.contentErr
}

func (f *fakeClient) EmailActivity(ctx context.Context, id string, count int) ([]mailchimp.EmailActivity, error) {
	return f.activity, f.activityErr
}

func (f *fakeClient) ListMembers(ctx context.Context, listID string, count int) ([]mailchimp.Member, error) {
	return f.members, f.membersErr
}

func (f *fakeClient) List(ctx context.Context, listID string) (*mailchimp.List, error) {
	return f.list, f.listErr
}

func (f *fakeClient) GrowthHistory(ctx context.Context, listID string) ([]mailchimp.GrowthHistory, error) {
	return f.history, f.historyErr
}

func newTestService(f *fakeClient, cfg Config) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(f, logger, cfg)
}

func TestOverviewRates(t *testing.T) {
	f := &fakeClient{
		campaigns: []mailchimp.Campaign{
			{ID: "c1", SendTime: "2026-01-10T09:00:00+00:00", Settings: mailchimp.CampaignSettings{Title: "January news"}},
		},
		reports: map[string]*mailchimp.Report{
			"c1": {
				ID:         "c1",
				EmailsSent: 200,
				Opens:      mailchimp.ReportOpens{OpensTotal: 50, UniqueOpens: 20, OpenRate: 0.4},
				Clicks:     mailchimp.ReportClicks{ClicksTotal: 10, UniqueClicks: 5, ClickRate: 0.1},
			},
		},
	}

	rows, err := newTestService(f, Config{}).Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}

	r := rows[0]
	if r.OpenRate != 40.0 {
		t.Errorf("OpenRate = %v, want 40.0", r.OpenRate)
	}
	if r.ClickRate != 10.0 {
		t.Errorf("ClickRate = %v, want 10.0", r.ClickRate)
	}
	if r.ClickToOpenRate != 25.0 {
		t.Errorf("ClickToOpenRate = %v, want 25.0", r.ClickToOpenRate)
	}
	if !r.HasReport {
		t.Error("HasReport = false, want true")
	}
}

func TestOverviewZeroTotals(t *testing.T) {
	f := &fakeClient{
		campaigns: []mailchimp.Campaign{{ID: "c1"}},
		reports: map[string]*mailchimp.Report{
			"c1": {ID: "c1", EmailsSent: 0},
		},
	}

	rows, err := newTestService(f, Config{}).Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}

	r := rows[0]
	for name, v := range map[string]float64{
		"OpenRate":        r.OpenRate,
		"ClickRate":       r.ClickRate,
		"ClickToOpenRate": r.ClickToOpenRate,
		"BounceRate":      r.BounceRate,
		"UnsubscribeRate": r.UnsubscribeRate,
	} {
		if v != 0 {
			t.Errorf("%s = %v, want 0 for empty report", name, v)
		}
	}
}

func TestOverviewRateBounds(t *testing.T) {
	// Even a nonsensical upstream fraction above 1 must stay within [0,100]
	f := &fakeClient{
		campaigns: []mailchimp.Campaign{{ID: "c1"}},
		reports: map[string]*mailchimp.Report{
			"c1": {
				ID:         "c1",
				EmailsSent: 10,
				Opens:      mailchimp.ReportOpens{UniqueOpens: 3, OpenRate: 1.8},
				Clicks:     mailchimp.ReportClicks{UniqueClicks: 7, ClickRate: -0.2},
			},
		},
	}

	rows, _ := newTestService(f, Config{}).Overview(context.Background())
	r := rows[0]
	if r.OpenRate > 100 || r.OpenRate < 0 {
		t.Errorf("OpenRate = %v, out of [0,100]", r.OpenRate)
	}
	if r.ClickRate > 100 || r.ClickRate < 0 {
		t.Errorf("ClickRate = %v, out of [0,100]", r.ClickRate)
	}
	if r.ClickToOpenRate > 100 {
		t.Errorf("ClickToOpenRate = %v, want clamped to 100", r.ClickToOpenRate)
	}
}

func TestOverviewDegradesToSummary(t *testing.T) {
	f := &fakeClient{
		campaigns: []mailchimp.Campaign{
			{
				ID:         "c1",
				EmailsSent: 100,
				ReportSummary: &mailchimp.ReportSummary{
					OpenRate: 0.25, ClickRate: 0.05, UniqueOpens: 25, SubscriberClicks: 5,
				},
			},
		},
		reports: map[string]*mailchimp.Report{}, // every report fetch 404s
	}

	rows, err := newTestService(f, Config{}).Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}

	r := rows[0]
	if r.HasReport {
		t.Error("HasReport = true, want false after report 404")
	}
	if r.OpenRate != 25.0 || r.ClickRate != 5.0 {
		t.Errorf("rates = %v/%v, want 25/5 from report_summary", r.OpenRate, r.ClickRate)
	}
	if r.EmailsSent != 100 {
		t.Errorf("EmailsSent = %d, want 100 from campaign", r.EmailsSent)
	}
}

func TestOverviewOrderPreserved(t *testing.T) {
	// Delays are inverted relative to position: the first campaign's report
	// finishes last. Row order must still follow the campaign list.
	var campaigns []mailchimp.Campaign
	reports := map[string]*mailchimp.Report{}
	delays := map[string]time.Duration{}
	ids := []string{"c1", "c2", "c3", "c4", "c5", "c6"}
	for i, id := range ids {
		campaigns = append(campaigns, mailchimp.Campaign{ID: id})
		reports[id] = &mailchimp.Report{ID: id, EmailsSent: i + 1}
		delays[id] = time.Duration(len(ids)-i) * 10 * time.Millisecond
	}

	f := &fakeClient{campaigns: campaigns, reports: reports, reportDelay: delays}
	rows, err := newTestService(f, Config{Concurrency: 3}).Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview() error = %v", err)
	}

	for i, id := range ids {
		if rows[i].CampaignID != id {
			t.Errorf("rows[%d] = %q, want %q", i, rows[i].CampaignID, id)
		}
	}
	if f.maxInflight > 3 {
		t.Errorf("maxInflight = %d, want <= 3", f.maxInflight)
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		opens, clicks int
		want          string
	}{
		{0, 0, ActivityNone},
		{3, 0, ActivityOpenedOnly},
		{0, 2, ActivityClicked},
		{3, 2, ActivityClicked},
	}
	for _, tt := range tests {
		if got := classify(tt.opens, tt.clicks); got != tt.want {
			t.Errorf("classify(%d, %d) = %q, want %q", tt.opens, tt.clicks, got, tt.want)
		}
	}
}

func TestSubscribersJoinAndClassify(t *testing.T) {
	f := &fakeClient{
		activity: []mailchimp.EmailActivity{
			{
				EmailAddress: "Ada@Example.com",
				Activity: []mailchimp.ActivityEvent{
					{Action: "open"}, {Action: "open"}, {Action: "open"},
					{Action: "click"}, {Action: "click"},
				},
			},
			{EmailAddress: "bob@example.com"},
		},
		members: []mailchimp.Member{
			{EmailAddress: "ada@example.com", MergeFields: map[string]any{"FNAME": "Ada", "LNAME": "Lovelace"}},
		},
	}

	rows, err := newTestService(f, Config{}).Subscribers(context.Background(), "c1", "l1")
	if err != nil {
		t.Fatalf("Subscribers() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2 (left join preserves all subscribers)", len(rows))
	}

	ada := rows[0]
	if ada.Name != "Ada Lovelace" {
		t.Errorf("Name = %q, want Ada Lovelace", ada.Name)
	}
	if ada.Opens != 3 || ada.Clicks != 2 {
		t.Errorf("counts = %d/%d, want 3/2", ada.Opens, ada.Clicks)
	}
	if ada.Activity != ActivityClicked {
		t.Errorf("Activity = %q, want %q", ada.Activity, ActivityClicked)
	}

	bob := rows[1]
	if bob.Name != "Unknown" {
		t.Errorf("Name = %q, want Unknown for unmatched email", bob.Name)
	}
	if bob.Opens != 0 || bob.Clicks != 0 {
		t.Errorf("counts = %d/%d, want 0/0 (never fabricated)", bob.Opens, bob.Clicks)
	}
	if bob.Activity != ActivityNone {
		t.Errorf("Activity = %q, want %q", bob.Activity, ActivityNone)
	}

	summary := ActivityCounts(rows)
	if summary.Clicked != 1 || summary.NoActivity != 1 || summary.OpenedOnly != 0 {
		t.Errorf("summary = %+v, want {Clicked:1 NoActivity:1}", summary)
	}
}

func TestSubscribersFallbackCounts(t *testing.T) {
	// No raw events, but the projected count fields are present
	f := &fakeClient{
		activity: []mailchimp.EmailActivity{
			{EmailAddress: "x@example.com", OpensCount: 4, ClicksCount: 1},
		},
	}

	rows, err := newTestService(f, Config{}).Subscribers(context.Background(), "c1", "l1")
	if err != nil {
		t.Fatalf("Subscribers() error = %v", err)
	}
	if rows[0].Opens != 4 || rows[0].Clicks != 1 {
		t.Errorf("counts = %d/%d, want 4/1", rows[0].Opens, rows[0].Clicks)
	}
	if rows[0].Activity != ActivityClicked {
		t.Errorf("Activity = %q, want %q", rows[0].Activity, ActivityClicked)
	}
}

func TestDetailDegradesPerSection(t *testing.T) {
	apiErr := &mailchimp.APIError{Status: 404, Title: "Resource Not Found"}
	f := &fakeClient{
		reports: map[string]*mailchimp.Report{
			"c1": {ID: "c1", CampaignTitle: "Launch", ListID: "l1", EmailsSent: 10,
				Timeseries: []mailchimp.TimeseriesPoint{{EmailsSent: 10}}},
		},
		clicksErr:   apiErr,
		contentErr:  apiErr,
		activityErr: apiErr,
	}

	d, err := newTestService(f, Config{}).Detail(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Detail() error = %v", err)
	}

	if d.Row.Title != "Launch" {
		t.Errorf("Title = %q, want Launch", d.Row.Title)
	}
	if len(d.Timeseries) != 1 {
		t.Errorf("len(Timeseries) = %d, want 1", len(d.Timeseries))
	}
	if len(d.Clicks) != 0 {
		t.Errorf("Clicks = %+v, want empty", d.Clicks)
	}
	if d.Content != nil {
		t.Error("Content != nil, want nil after fetch failure")
	}

	want := map[string]bool{"click_details": true, "content": true, "email_activity": true}
	for _, m := range d.Missing {
		if !want[m] {
			t.Errorf("unexpected missing section %q", m)
		}
		delete(want, m)
	}
	for m := range want {
		t.Errorf("missing section %q not reported", m)
	}
}

func TestDetailAllFetchesFail(t *testing.T) {
	apiErr := &mailchimp.APIError{Status: 503}
	f := &fakeClient{
		reportErr:   apiErr,
		clicksErr:   apiErr,
		contentErr:  apiErr,
		activityErr: apiErr,
	}

	d, err := newTestService(f, Config{}).Detail(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Detail() error = %v, want graceful degradation", err)
	}
	if len(d.Missing) == 0 {
		t.Error("Missing is empty, want all sections reported")
	}
}

func TestSummarize(t *testing.T) {
	rows := []OverviewRow{
		{EmailsSent: 100, OpenRate: 40, ClickRate: 10},
		{EmailsSent: 300, OpenRate: 20, ClickRate: 30},
	}
	s := Summarize(rows)
	if s.Campaigns != 2 || s.EmailsSent != 400 {
		t.Errorf("summary = %+v", s)
	}
	if s.AvgOpenRate != 30 || s.AvgClickRate != 20 {
		t.Errorf("averages = %v/%v, want 30/20", s.AvgOpenRate, s.AvgClickRate)
	}

	empty := Summarize(nil)
	if empty.AvgOpenRate != 0 {
		t.Errorf("AvgOpenRate = %v for no rows, want 0", empty.AvgOpenRate)
	}
}

func TestSortRows(t *testing.T) {
	rows := []OverviewRow{
		{CampaignID: "a", OpenRate: 10, SendTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{CampaignID: "b", OpenRate: 30, SendTime: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{CampaignID: "c", OpenRate: 20, SendTime: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
	}

	SortRows(rows, "open_rate", "desc")
	if rows[0].CampaignID != "b" || rows[2].CampaignID != "a" {
		t.Errorf("desc by open_rate = %v %v %v", rows[0].CampaignID, rows[1].CampaignID, rows[2].CampaignID)
	}

	SortRows(rows, "", "asc")
	if rows[0].CampaignID != "a" || rows[2].CampaignID != "b" {
		t.Errorf("asc by send_time = %v %v %v", rows[0].CampaignID, rows[1].CampaignID, rows[2].CampaignID)
	}
}

func TestFilterByDate(t *testing.T) {
	feb := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	rows := []OverviewRow{
		{CampaignID: "old", SendTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		{CampaignID: "in", SendTime: feb},
		{CampaignID: "unsent"},
	}

	got := FilterByDate(rows, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), time.Time{})
	if len(got) != 1 || got[0].CampaignID != "in" {
		t.Errorf("filtered = %+v, want only 'in'", got)
	}

	all := FilterByDate(rows, time.Time{}, time.Time{})
	if len(all) != 3 {
		t.Errorf("open bounds filtered %d rows, want passthrough", len(all))
	}
}

func TestMonthly(t *testing.T) {
	jan := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	rows := []OverviewRow{
		{CampaignID: "c1", SendTime: jan, EmailsSent: 100, OpenRate: 40, ClickRate: 10},
		{CampaignID: "c2", SendTime: jan.AddDate(0, 0, 15), EmailsSent: 300, OpenRate: 20, ClickRate: 30},
		{CampaignID: "c3", SendTime: time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), EmailsSent: 50, OpenRate: 60, ClickRate: 5},
		{CampaignID: "draft"}, // no send time, not attributable to a month
	}

	got := Monthly(rows)
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2 months", len(got))
	}
	if got[0].Month != "2025-12" || got[1].Month != "2026-01" {
		t.Errorf("months = %q %q, want oldest first", got[0].Month, got[1].Month)
	}

	dec := got[0]
	if dec.Campaigns != 1 || dec.EmailsSent != 50 || dec.AvgOpenRate != 60 {
		t.Errorf("dec = %+v", dec)
	}

	jan26 := got[1]
	if jan26.Campaigns != 2 {
		t.Errorf("Campaigns = %d, want 2", jan26.Campaigns)
	}
	if jan26.EmailsSent != 400 {
		t.Errorf("EmailsSent = %d, want 400", jan26.EmailsSent)
	}
	if jan26.AvgOpenRate != 30 || jan26.AvgClickRate != 20 {
		t.Errorf("averages = %v/%v, want 30/20", jan26.AvgOpenRate, jan26.AvgClickRate)
	}

	if got := Monthly(nil); len(got) != 0 {
		t.Errorf("Monthly(nil) = %+v, want empty", got)
	}
}

func TestDetailCarriesSubscribers(t *testing.T) {
	f := &fakeClient{
		reports: map[string]*mailchimp.Report{
			"c1": {ID: "c1", ListID: "l1", EmailsSent: 2},
		},
		activity: []mailchimp.EmailActivity{
			{EmailAddress: "a@example.com", OpensCount: 1},
		},
		members: []mailchimp.Member{
			{EmailAddress: "a@example.com", MergeFields: map[string]any{"FNAME": "Ada"}},
		},
	}

	d, err := newTestService(f, Config{}).Detail(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Detail() error = %v", err)
	}
	if len(d.Subscribers) != 1 || d.Subscribers[0].Name != "Ada" {
		t.Errorf("Subscribers = %+v, want the joined rows", d.Subscribers)
	}

	// A partial join must not be handed out for reuse
	f.membersErr = &mailchimp.APIError{Status: 503}
	d, err = newTestService(f, Config{}).Detail(context.Background(), "c1")
	if err != nil {
		t.Fatalf("Detail() error = %v", err)
	}
	if d.Subscribers != nil {
		t.Errorf("Subscribers = %+v, want nil when the member fetch failed", d.Subscribers)
	}
}

func TestGrowth(t *testing.T) {
	f := &fakeClient{
		history: []mailchimp.GrowthHistory{
			{Month: "2026-02", Existing: 120, Imports: 5, Optins: 10, Unsubscribed: 3},
			{Month: "2026-01", Existing: 100, Imports: 0, Optins: 8, Unsubscribed: 1},
		},
	}

	rows, err := newTestService(f, Config{}).Growth(context.Background(), "l1")
	if err != nil {
		t.Fatalf("Growth() error = %v", err)
	}
	if rows[0].Month != "2026-01" {
		t.Errorf("first month = %q, want oldest first", rows[0].Month)
	}
	if rows[1].NewSubscribers != 15 || rows[1].NetGrowth != 12 {
		t.Errorf("feb = %+v, want new=15 net=12", rows[1])
	}
}

func TestGrowthSortsUnsortedHistory(t *testing.T) {
	// The upstream pages carry no order guarantee
	f := &fakeClient{
		history: []mailchimp.GrowthHistory{
			{Month: "2026-01"},
			{Month: "2025-11"},
			{Month: "2025-12"},
		},
	}

	rows, err := newTestService(f, Config{}).Growth(context.Background(), "l1")
	if err != nil {
		t.Fatalf("Growth() error = %v", err)
	}
	for i, want := range []string{"2025-11", "2025-12", "2026-01"} {
		if rows[i].Month != want {
			t.Errorf("rows[%d].Month = %q, want %q", i, rows[i].Month, want)
		}
	}
}
