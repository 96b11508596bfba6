package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/ostrauk/mailboard/internal/mailchimp"
)

// Subscriber activity classes. Every subscriber row carries exactly one.
const (
	ActivityClicked    = "Clicked"
	ActivityOpenedOnly = "Opened Only"
	ActivityNone       = "No Activity"
)

// OverviewRow is one campaign in the overview table. All rates are
// percentages in [0,100].
type OverviewRow struct {
	CampaignID      string    `json:"campaign_id"`
	Title           string    `json:"title"`
	SubjectLine     string    `json:"subject_line"`
	SendTime        time.Time `json:"send_time"`
	Status          string    `json:"status"`
	ListID          string    `json:"list_id"`
	EmailsSent      int       `json:"emails_sent"`
	OpensTotal      int       `json:"opens_total"`
	UniqueOpens     int       `json:"unique_opens"`
	ClicksTotal     int       `json:"clicks_total"`
	UniqueClicks    int       `json:"unique_clicks"`
	Bounces         int       `json:"bounces"`
	Unsubscribes    int       `json:"unsubscribes"`
	OpenRate        float64   `json:"open_rate"`
	ClickRate       float64   `json:"click_rate"`
	ClickToOpenRate float64   `json:"click_to_open_rate"`
	BounceRate      float64   `json:"bounce_rate"`
	UnsubscribeRate float64   `json:"unsubscribe_rate"`
	// HasReport is false when the report fetch failed and the row fell
	// back to the campaign's own summary numbers.
	HasReport bool `json:"has_report"`
}

// Summary is the overview header strip
type Summary struct {
	Campaigns    int     `json:"campaigns"`
	EmailsSent   int     `json:"emails_sent"`
	AvgOpenRate  float64 `json:"avg_open_rate"`
	AvgClickRate float64 `json:"avg_click_rate"`
}

// ClickRow is one tracked URL in the detail view
type ClickRow struct {
	URL             string  `json:"url"`
	TotalClicks     int     `json:"total_clicks"`
	UniqueClicks    int     `json:"unique_clicks"`
	ClickPercentage float64 `json:"click_percentage"`
}

// SubscriberRow is one recipient in the audience view
type SubscriberRow struct {
	EmailAddress string `json:"email_address"`
	Name         string `json:"name"`
	Opens        int    `json:"opens"`
	Clicks       int    `json:"clicks"`
	Activity     string `json:"activity"`
	LastOpen     string `json:"last_open,omitempty"`
}

// ActivitySummary is the engagement distribution of a campaign's audience
type ActivitySummary struct {
	Clicked    int `json:"clicked"`
	OpenedOnly int `json:"opened_only"`
	NoActivity int `json:"no_activity"`
}

// CampaignDetail is the aggregate for a single selected campaign
type CampaignDetail struct {
	Row           OverviewRow                 `json:"row"`
	Timeseries    []mailchimp.TimeseriesPoint `json:"timeseries"`
	OpensByClient []mailchimp.ClientStat      `json:"opens_by_client"`
	Clicks        []ClickRow                  `json:"clicks"`
	Content       *mailchimp.Content          `json:"content,omitempty"`
	Activity      ActivitySummary             `json:"activity"`
	// Subscribers carries the joined audience rows so callers can reuse
	// them without refetching. Only set when the join was complete; not
	// part of the detail payload.
	Subscribers []SubscriberRow `json:"-"`
	// Missing names the data slices whose upstream fetch failed; the
	// corresponding sections are empty rather than fabricated.
	Missing []string `json:"missing,omitempty"`
}

// MonthlyRow is one month of aggregated campaign performance
type MonthlyRow struct {
	Month        string  `json:"month"`
	Campaigns    int     `json:"campaigns"`
	EmailsSent   int     `json:"emails_sent"`
	AvgOpenRate  float64 `json:"avg_open_rate"`
	AvgClickRate float64 `json:"avg_click_rate"`
}

// Monthly groups overview rows by send month, oldest month first. Rows
// without a send time cannot be attributed to a month and are skipped.
func Monthly(rows []OverviewRow) []MonthlyRow {
	byMonth := map[string]*MonthlyRow{}
	for _, r := range rows {
		if r.SendTime.IsZero() {
			continue
		}
		key := r.SendTime.Format("2006-01")
		m, ok := byMonth[key]
		if !ok {
			m = &MonthlyRow{Month: key}
			byMonth[key] = m
		}
		m.Campaigns++
		m.EmailsSent += r.EmailsSent
		m.AvgOpenRate += r.OpenRate
		m.AvgClickRate += r.ClickRate
	}

	out := make([]MonthlyRow, 0, len(byMonth))
	for _, m := range byMonth {
		m.AvgOpenRate /= float64(m.Campaigns)
		m.AvgClickRate /= float64(m.Campaigns)
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// GrowthRow is one month of audience growth
type GrowthRow struct {
	Month          string `json:"month"`
	Existing       int    `json:"existing"`
	NewSubscribers int    `json:"new_subscribers"`
	Unsubscribes   int    `json:"unsubscribes"`
	NetGrowth      int    `json:"net_growth"`
}

// Audience is list metadata with rates scaled to percentages
type Audience struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	MemberCount  int     `json:"member_count"`
	Unsubscribes int     `json:"unsubscribes"`
	OpenRate     float64 `json:"open_rate"`
	ClickRate    float64 `json:"click_rate"`
	DateCreated  string  `json:"date_created"`
}

// pct scales an upstream fractional rate to a percentage, clamped to [0,100]
func pct(fraction float64) float64 {
	return clampPct(fraction * 100)
}

// ratio computes count/total as a percentage. A zero total yields 0.
func ratio(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return clampPct(float64(count) / float64(total) * 100)
}

func clampPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// classify maps open/click counts to an activity class. Total by
// construction: every count pair lands in exactly one branch.
func classify(opens, clicks int) string {
	switch {
	case clicks > 0:
		return ActivityClicked
	case opens > 0:
		return ActivityOpenedOnly
	default:
		return ActivityNone
	}
}

// parseTime parses an upstream timestamp, returning the zero time for
// unset or unparseable values.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Summarize computes the overview header strip from a set of rows
func Summarize(rows []OverviewRow) Summary {
	s := Summary{Campaigns: len(rows)}
	if len(rows) == 0 {
		return s
	}
	var openSum, clickSum float64
	for _, r := range rows {
		s.EmailsSent += r.EmailsSent
		openSum += r.OpenRate
		clickSum += r.ClickRate
	}
	s.AvgOpenRate = openSum / float64(len(rows))
	s.AvgClickRate = clickSum / float64(len(rows))
	return s
}

// ActivityCounts computes the engagement distribution of subscriber rows
func ActivityCounts(rows []SubscriberRow) ActivitySummary {
	var s ActivitySummary
	for _, r := range rows {
		switch r.Activity {
		case ActivityClicked:
			s.Clicked++
		case ActivityOpenedOnly:
			s.OpenedOnly++
		default:
			s.NoActivity++
		}
	}
	return s
}

// SortRows orders overview rows by the named metric. Unknown fields fall
// back to send time. dir is "asc" or "desc" (default).
func SortRows(rows []OverviewRow, field, dir string) {
	asc := dir == "asc"
	less := func(a, b OverviewRow) bool {
		switch field {
		case "title":
			return a.Title < b.Title
		case "emails_sent":
			return a.EmailsSent < b.EmailsSent
		case "open_rate":
			return a.OpenRate < b.OpenRate
		case "click_rate":
			return a.ClickRate < b.ClickRate
		case "click_to_open_rate":
			return a.ClickToOpenRate < b.ClickToOpenRate
		case "bounce_rate":
			return a.BounceRate < b.BounceRate
		case "unsubscribe_rate":
			return a.UnsubscribeRate < b.UnsubscribeRate
		default:
			return a.SendTime.Before(b.SendTime)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if asc {
			return less(rows[i], rows[j])
		}
		return less(rows[j], rows[i])
	})
}

// FilterByDate keeps rows whose send time falls within [from, to]. A zero
// bound leaves that end open; rows without a send time pass only when both
// bounds are open.
func FilterByDate(rows []OverviewRow, from, to time.Time) []OverviewRow {
	if from.IsZero() && to.IsZero() {
		return rows
	}
	out := make([]OverviewRow, 0, len(rows))
	for _, r := range rows {
		if r.SendTime.IsZero() {
			continue
		}
		if !from.IsZero() && r.SendTime.Before(from) {
			continue
		}
		if !to.IsZero() && r.SendTime.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// displayName builds a subscriber display name from merge fields
func displayName(m *mailchimp.Member) string {
	if m == nil {
		return "Unknown"
	}
	name := strings.TrimSpace(strings.TrimSpace(m.FirstName()) + " " + strings.TrimSpace(m.LastName()))
	if name == "" {
		return "Unknown"
	}
	return name
}
