package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/ostrauk/mailboard/internal/mailchimp"
)

// Client is the slice of the Marketing API the aggregator consumes
type Client interface {
	Campaigns(ctx context.Context, count int) ([]mailchimp.Campaign, error)
	Report(ctx context.Context, campaignID string) (*mailchimp.Report, error)
	ClickDetails(ctx context.Context, campaignID string, count int) ([]mailchimp.ClickDetail, error)
	Content(ctx context.Context, campaignID string) (*mailchimp.Content, error)
	EmailActivity(ctx context.Context, campaignID string, count int) ([]mailchimp.EmailActivity, error)
	ListMembers(ctx context.Context, listID string, count int) ([]mailchimp.Member, error)
	List(ctx context.Context, listID string) (*mailchimp.List, error)
	GrowthHistory(ctx context.Context, listID string) ([]mailchimp.GrowthHistory, error)
}

// Config holds fetch limits and fan-out width
type Config struct {
	Concurrency   int
	CampaignCount int
	ActivityCount int
	MemberCount   int
}

// DefaultConfig returns default aggregation limits
func DefaultConfig() Config {
	return Config{
		Concurrency: 5,
	}
}

// Service aggregates upstream campaign data into dashboard rows
type Service struct {
	client Client
	logger *slog.Logger
	cfg    Config
}

// New creates an aggregation service
func New(client Client, logger *slog.Logger, cfg Config) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	return &Service{
		client: client,
		logger: logger.With("component", "analytics"),
		cfg:    cfg,
	}
}

// Overview builds one row per campaign, newest first. Report fetches fan
// out over a bounded pool; each result lands at its campaign's index so the
// output order matches the campaign list regardless of completion order. A
// failed report fetch degrades that row to the campaign summary numbers.
func (s *Service) Overview(ctx context.Context) ([]OverviewRow, error) {
	campaigns, err := s.client.Campaigns(ctx, s.cfg.CampaignCount)
	if err != nil {
		return nil, fmt.Errorf("fetch campaigns: %w", err)
	}

	reports := make([]*mailchimp.Report, len(campaigns))
	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, c := range campaigns {
		sem <- struct{}{}
		wg.Add(1)

		go func(i int, id string) {
			defer func() {
				<-sem
				wg.Done()
			}()

			rep, err := s.client.Report(ctx, id)
			if err != nil {
				s.logger.Warn("report fetch failed", "campaign_id", id, "error", err)
				return
			}
			reports[i] = rep
		}(i, c.ID)
	}

	wg.Wait()

	rows := make([]OverviewRow, len(campaigns))
	for i := range campaigns {
		rows[i] = buildRow(&campaigns[i], reports[i])
	}
	return rows, nil
}

// buildRow merges a campaign with its report. A nil report falls back to
// the report_summary block embedded in the campaign.
func buildRow(c *mailchimp.Campaign, rep *mailchimp.Report) OverviewRow {
	row := OverviewRow{
		CampaignID:  c.ID,
		Title:       c.Settings.Title,
		SubjectLine: c.Settings.SubjectLine,
		SendTime:    parseTime(c.SendTime),
		Status:      c.Status,
		ListID:      c.Recipients.ListID,
		EmailsSent:  c.EmailsSent,
	}
	if row.Title == "" {
		row.Title = "Untitled"
	}

	if rep != nil {
		row.HasReport = true
		row.EmailsSent = rep.EmailsSent
		row.OpensTotal = rep.Opens.OpensTotal
		row.UniqueOpens = rep.Opens.UniqueOpens
		row.ClicksTotal = rep.Clicks.ClicksTotal
		row.UniqueClicks = rep.Clicks.UniqueClicks
		row.Bounces = rep.Bounces.HardBounces + rep.Bounces.SoftBounces
		row.Unsubscribes = rep.Unsubscribed
		row.OpenRate = pct(rep.Opens.OpenRate)
		row.ClickRate = pct(rep.Clicks.ClickRate)
		row.ClickToOpenRate = ratio(rep.Clicks.UniqueClicks, rep.Opens.UniqueOpens)
		row.BounceRate = ratio(row.Bounces, rep.EmailsSent)
		row.UnsubscribeRate = ratio(rep.Unsubscribed, rep.EmailsSent)
		if row.ListID == "" {
			row.ListID = rep.ListID
		}
		return row
	}

	if rs := c.ReportSummary; rs != nil {
		row.OpensTotal = rs.Opens
		row.UniqueOpens = rs.UniqueOpens
		row.ClicksTotal = rs.Clicks
		row.UniqueClicks = rs.SubscriberClicks
		row.OpenRate = pct(rs.OpenRate)
		row.ClickRate = pct(rs.ClickRate)
		row.ClickToOpenRate = ratio(rs.SubscriberClicks, rs.UniqueOpens)
	}
	return row
}

// buildRowFromReport builds a row when only the report is available
func buildRowFromReport(rep *mailchimp.Report) OverviewRow {
	c := mailchimp.Campaign{
		ID:       rep.ID,
		SendTime: rep.SendTime,
		Settings: mailchimp.CampaignSettings{
			Title:       rep.CampaignTitle,
			SubjectLine: rep.SubjectLine,
		},
		Recipients: mailchimp.CampaignRecipients{ListID: rep.ListID},
	}
	return buildRow(&c, rep)
}

// Detail aggregates everything the dashboard shows for one campaign. Each
// failed sub-fetch leaves its section empty and is named in Missing; no
// upstream failure aborts the whole view.
func (s *Service) Detail(ctx context.Context, campaignID string) (*CampaignDetail, error) {
	d := &CampaignDetail{
		Timeseries:    []mailchimp.TimeseriesPoint{},
		OpensByClient: []mailchimp.ClientStat{},
		Clicks:        []ClickRow{},
	}

	listID := ""
	rep, err := s.client.Report(ctx, campaignID)
	if err != nil {
		s.logger.Warn("report fetch failed", "campaign_id", campaignID, "error", err)
		d.Missing = append(d.Missing, "report")
		d.Row = OverviewRow{CampaignID: campaignID, Title: "Untitled"}
	} else {
		d.Row = buildRowFromReport(rep)
		if rep.Timeseries != nil {
			d.Timeseries = rep.Timeseries
		}
		if rep.OpensByClient != nil {
			d.OpensByClient = rep.OpensByClient
		}
		listID = rep.ListID
	}

	clicks, err := s.client.ClickDetails(ctx, campaignID, 0)
	if err != nil {
		s.logger.Warn("click details fetch failed", "campaign_id", campaignID, "error", err)
		d.Missing = append(d.Missing, "click_details")
	} else {
		for _, cd := range clicks {
			d.Clicks = append(d.Clicks, ClickRow{
				URL:             cd.URL,
				TotalClicks:     cd.TotalClicks,
				UniqueClicks:    cd.UniqueClicks,
				ClickPercentage: pct(cd.ClickPercentage),
			})
		}
	}

	content, err := s.client.Content(ctx, campaignID)
	if err != nil {
		s.logger.Warn("content fetch failed", "campaign_id", campaignID, "error", err)
		d.Missing = append(d.Missing, "content")
	} else {
		d.Content = content
	}

	subs, missing := s.subscriberRows(ctx, campaignID, listID)
	d.Activity = ActivityCounts(subs)
	d.Missing = append(d.Missing, missing...)
	if len(missing) == 0 {
		d.Subscribers = subs
	}

	return d, nil
}

// Subscribers builds the per-recipient audience table for a campaign.
// listID may be empty; it is then discovered from the campaign report.
func (s *Service) Subscribers(ctx context.Context, campaignID, listID string) ([]SubscriberRow, error) {
	if listID == "" {
		if rep, err := s.client.Report(ctx, campaignID); err == nil {
			listID = rep.ListID
		} else {
			s.logger.Warn("report fetch failed", "campaign_id", campaignID, "error", err)
		}
	}

	rows, missing := s.subscriberRows(ctx, campaignID, listID)
	if len(missing) > 0 && len(rows) == 0 {
		return []SubscriberRow{}, nil
	}
	return rows, nil
}

// subscriberRows fetches email activity, derives open/click counts from the
// raw event stream (missing counts stay 0, never fabricated), classifies
// every recipient, and left-joins member profiles by case-folded email.
func (s *Service) subscriberRows(ctx context.Context, campaignID, listID string) ([]SubscriberRow, []string) {
	var missing []string

	activity, err := s.client.EmailActivity(ctx, campaignID, s.cfg.ActivityCount)
	if err != nil {
		s.logger.Warn("email activity fetch failed", "campaign_id", campaignID, "error", err)
		return nil, append(missing, "email_activity")
	}

	members := map[string]*mailchimp.Member{}
	if listID != "" {
		list, err := s.client.ListMembers(ctx, listID, s.cfg.MemberCount)
		if err != nil {
			s.logger.Warn("list members fetch failed", "list_id", listID, "error", err)
			missing = append(missing, "list_members")
		} else {
			for i := range list {
				members[foldEmail(list[i].EmailAddress)] = &list[i]
			}
		}
	} else {
		missing = append(missing, "list_members")
	}

	rows := make([]SubscriberRow, 0, len(activity))
	for _, a := range activity {
		opens, clicks := activityCounts(&a)
		rows = append(rows, SubscriberRow{
			EmailAddress: a.EmailAddress,
			Name:         displayName(members[foldEmail(a.EmailAddress)]),
			Opens:        opens,
			Clicks:       clicks,
			Activity:     classify(opens, clicks),
			LastOpen:     a.LastOpen,
		})
	}
	return rows, missing
}

// activityCounts prefers counts derived from the raw event stream and falls
// back to the projected count fields when no events came through
func activityCounts(a *mailchimp.EmailActivity) (opens, clicks int) {
	for _, ev := range a.Activity {
		switch ev.Action {
		case "open":
			opens++
		case "click":
			clicks++
		}
	}
	if opens == 0 {
		opens = a.OpensCount
	}
	if clicks == 0 {
		clicks = a.ClicksCount
	}
	return opens, clicks
}

// Growth builds the monthly audience growth table, oldest month first
func (s *Service) Growth(ctx context.Context, listID string) ([]GrowthRow, error) {
	history, err := s.client.GrowthHistory(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("fetch growth history: %w", err)
	}

	rows := make([]GrowthRow, 0, len(history))
	for _, h := range history {
		added := h.Imports + h.Optins
		rows = append(rows, GrowthRow{
			Month:          h.Month,
			Existing:       h.Existing,
			NewSubscribers: added,
			Unsubscribes:   h.Unsubscribed,
			NetGrowth:      added - h.Unsubscribed,
		})
	}

	// upstream order is not guaranteed; the chart wants oldest first,
	// and YYYY-MM keys sort correctly as strings
	sort.Slice(rows, func(i, j int) bool { return rows[i].Month < rows[j].Month })
	return rows, nil
}

// AudienceInfo fetches list metadata with rates as percentages
func (s *Service) AudienceInfo(ctx context.Context, listID string) (*Audience, error) {
	list, err := s.client.List(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("fetch list: %w", err)
	}
	return &Audience{
		ID:           list.ID,
		Name:         list.Name,
		MemberCount:  list.Stats.MemberCount,
		Unsubscribes: list.Stats.UnsubscribeCount,
		OpenRate:     clampPct(list.Stats.OpenRate),
		ClickRate:    clampPct(list.Stats.ClickRate),
		DateCreated:  list.DateCreated,
	}, nil
}

// foldEmail normalizes an address for join keys
func foldEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
