package mailchimp

import "fmt"

// APIError is the problem document returned by the Marketing API for
// non-2xx responses.
type APIError struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Title != "" {
		return fmt.Sprintf("mailchimp: HTTP %d: %s", e.Status, e.Title)
	}
	return fmt.Sprintf("mailchimp: HTTP %d", e.Status)
}

// PingResponse is the response for GET /ping
type PingResponse struct {
	HealthStatus string `json:"health_status"`
}

// Campaign is a single campaign from GET /campaigns
type Campaign struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Status     string             `json:"status"`
	EmailsSent int                `json:"emails_sent"`
	SendTime   string             `json:"send_time"`
	Settings   CampaignSettings   `json:"settings"`
	Recipients CampaignRecipients `json:"recipients"`
	// ReportSummary is only present once the campaign has been sent.
	ReportSummary *ReportSummary `json:"report_summary,omitempty"`
}

// CampaignSettings holds the subject/title block of a campaign
type CampaignSettings struct {
	Title       string `json:"title"`
	SubjectLine string `json:"subject_line"`
	FromName    string `json:"from_name"`
	ReplyTo     string `json:"reply_to"`
}

// CampaignRecipients identifies the audience a campaign was sent to
type CampaignRecipients struct {
	ListID         string `json:"list_id"`
	ListName       string `json:"list_name"`
	RecipientCount int    `json:"recipient_count"`
}

// ReportSummary is the condensed stats block embedded in a campaign.
// Rates are fractions in [0,1].
type ReportSummary struct {
	Opens            int     `json:"opens"`
	UniqueOpens      int     `json:"unique_opens"`
	OpenRate         float64 `json:"open_rate"`
	Clicks           int     `json:"clicks"`
	SubscriberClicks int     `json:"subscriber_clicks"`
	ClickRate        float64 `json:"click_rate"`
}

// campaignsResponse is the envelope for GET /campaigns
type campaignsResponse struct {
	Campaigns  []Campaign `json:"campaigns"`
	TotalItems int        `json:"total_items"`
}

// Report is the full campaign report from GET /reports/{id}.
// Rates are fractions in [0,1].
type Report struct {
	ID            string            `json:"id"`
	CampaignTitle string            `json:"campaign_title"`
	ListID        string            `json:"list_id"`
	ListName      string            `json:"list_name"`
	SubjectLine   string            `json:"subject_line"`
	EmailsSent    int               `json:"emails_sent"`
	AbuseReports  int               `json:"abuse_reports"`
	Unsubscribed  int               `json:"unsubscribed"`
	SendTime      string            `json:"send_time"`
	Bounces       ReportBounces     `json:"bounces"`
	Opens         ReportOpens       `json:"opens"`
	Clicks        ReportClicks      `json:"clicks"`
	Timeseries    []TimeseriesPoint `json:"timeseries"`
	OpensByClient []ClientStat      `json:"opens_by_client"`
}

// ReportBounces groups bounce counts by kind
type ReportBounces struct {
	HardBounces  int `json:"hard_bounces"`
	SoftBounces  int `json:"soft_bounces"`
	SyntaxErrors int `json:"syntax_errors"`
}

// ReportOpens holds open statistics for a report
type ReportOpens struct {
	OpensTotal  int     `json:"opens_total"`
	UniqueOpens int     `json:"unique_opens"`
	OpenRate    float64 `json:"open_rate"`
	LastOpen    string  `json:"last_open"`
}

// ReportClicks holds click statistics for a report
type ReportClicks struct {
	ClicksTotal            int     `json:"clicks_total"`
	UniqueClicks           int     `json:"unique_clicks"`
	UniqueSubscriberClicks int     `json:"unique_subscriber_clicks"`
	ClickRate              float64 `json:"click_rate"`
	LastClick              string  `json:"last_click"`
}

// TimeseriesPoint is one hour of send activity in a report
type TimeseriesPoint struct {
	Timestamp        string `json:"timestamp"`
	EmailsSent       int    `json:"emails_sent"`
	UniqueOpens      int    `json:"unique_opens"`
	RecipientsClicks int    `json:"recipients_clicks"`
}

// ClientStat is one entry of the opens-by-client breakdown
type ClientStat struct {
	Client string `json:"client"`
	Unique int    `json:"unique"`
	Total  int    `json:"total"`
}

// ClickDetail is one tracked URL from GET /reports/{id}/click-details
type ClickDetail struct {
	ID                    string  `json:"id"`
	URL                   string  `json:"url"`
	TotalClicks           int     `json:"total_clicks"`
	UniqueClicks          int     `json:"unique_clicks"`
	ClickPercentage       float64 `json:"click_percentage"`
	UniqueClickPercentage float64 `json:"unique_click_percentage"`
	CampaignID            string  `json:"campaign_id"`
}

// clickDetailsResponse is the envelope for GET /reports/{id}/click-details
type clickDetailsResponse struct {
	URLsClicked []ClickDetail `json:"urls_clicked"`
	TotalItems  int           `json:"total_items"`
}

// Content is the rendered campaign body from GET /campaigns/{id}/content
type Content struct {
	PlainText string `json:"plain_text"`
	HTML      string `json:"html"`
}

// EmailActivity is one recipient's record from GET /reports/{id}/email-activity.
// OpensCount and ClicksCount are only populated when the endpoint is asked
// for them via field projection; Activity always carries the raw events.
type EmailActivity struct {
	CampaignID   string          `json:"campaign_id"`
	ListID       string          `json:"list_id"`
	EmailID      string          `json:"email_id"`
	EmailAddress string          `json:"email_address"`
	OpensCount   int             `json:"opens_count"`
	ClicksCount  int             `json:"clicks_count"`
	LastOpen     string          `json:"last_open"`
	Activity     []ActivityEvent `json:"activity"`
}

// ActivityEvent is a single open/click/bounce event
type ActivityEvent struct {
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
	URL       string `json:"url,omitempty"`
	IP        string `json:"ip,omitempty"`
}

// emailActivityResponse is the envelope for GET /reports/{id}/email-activity
type emailActivityResponse struct {
	Emails     []EmailActivity `json:"emails"`
	TotalItems int             `json:"total_items"`
}

// Member is a subscriber from GET /lists/{id}/members. Merge fields are
// decoded loosely because their types vary per audience schema (ADDRESS is
// an object, birthday a string, and so on).
type Member struct {
	ID           string         `json:"id"`
	EmailAddress string         `json:"email_address"`
	Status       string         `json:"status"`
	MergeFields  map[string]any `json:"merge_fields"`
}

// MergeString returns a merge field as a string, or "" when the field is
// absent or not a string.
func (m *Member) MergeString(key string) string {
	s, _ := m.MergeFields[key].(string)
	return s
}

// FirstName returns the FNAME merge field, if set
func (m *Member) FirstName() string { return m.MergeString("FNAME") }

// LastName returns the LNAME merge field, if set
func (m *Member) LastName() string { return m.MergeString("LNAME") }

// membersResponse is the envelope for GET /lists/{id}/members
type membersResponse struct {
	Members    []Member `json:"members"`
	TotalItems int      `json:"total_items"`
}

// List is audience metadata from GET /lists/{id}
type List struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DateCreated string    `json:"date_created"`
	Stats       ListStats `json:"stats"`
}

// ListStats holds the audience-level aggregate counters
type ListStats struct {
	MemberCount      int     `json:"member_count"`
	UnsubscribeCount int     `json:"unsubscribe_count"`
	CleanedCount     int     `json:"cleaned_count"`
	OpenRate         float64 `json:"open_rate"`
	ClickRate        float64 `json:"click_rate"`
}

// GrowthHistory is one month of audience growth from
// GET /lists/{id}/growth-history
type GrowthHistory struct {
	ListID       string `json:"list_id"`
	Month        string `json:"month"`
	Existing     int    `json:"existing"`
	Imports      int    `json:"imports"`
	Optins       int    `json:"optins"`
	Subscribed   int    `json:"subscribed"`
	Unsubscribed int    `json:"unsubscribed"`
}

// growthHistoryResponse is the envelope for GET /lists/{id}/growth-history
type growthHistoryResponse struct {
	History    []GrowthHistory `json:"history"`
	TotalItems int             `json:"total_items"`
}
