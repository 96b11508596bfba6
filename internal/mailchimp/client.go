package mailchimp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// maxPageSize is the largest page the Marketing API will return
const maxPageSize = 1000

// Recorder receives timing information about upstream calls
type Recorder interface {
	ObserveUpstream(endpoint, status string, seconds float64)
}

// Client is a Mailchimp Marketing API client
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	recorder   Recorder
}

// BaseURL builds the regional API base URL for a server prefix
func BaseURL(prefix string) string {
	return fmt.Sprintf("https://%s.api.mailchimp.com/3.0", prefix)
}

// NewClient creates a new Marketing API client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetRecorder attaches a metrics recorder to the client
func (c *Client) SetRecorder(r Recorder) {
	c.recorder = r
}

// SetTimeout overrides the default request timeout
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.httpClient.Timeout = d
	}
}

// get performs an authenticated GET against the API and decodes the body.
// Non-2xx responses come back as *APIError.
func (c *Client) get(ctx context.Context, endpoint, path string, params url.Values, result any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(endpoint, "error", start)
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	c.observe(endpoint, strconv.Itoa(resp.StatusCode), start)

	if resp.StatusCode >= 400 {
		apiErr := &APIError{}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
			return &APIError{Status: resp.StatusCode}
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}

func (c *Client) observe(endpoint, status string, start time.Time) {
	if c.recorder != nil {
		c.recorder.ObserveUpstream(endpoint, status, time.Since(start).Seconds())
	}
}

// pageSize returns how many items the next page should request. A limit of
// zero or less means fetch everything.
func pageSize(limit, have int) int {
	if limit <= 0 {
		return maxPageSize
	}
	remaining := limit - have
	if remaining <= 0 {
		return 0
	}
	if remaining > maxPageSize {
		return maxPageSize
	}
	return remaining
}

// Ping checks API connectivity and key validity
func (c *Client) Ping(ctx context.Context) (*PingResponse, error) {
	var resp PingResponse
	if err := c.get(ctx, "ping", "/ping", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Campaigns fetches up to count campaigns, newest first. count <= 0 fetches
// all of them, paging by the API maximum.
func (c *Client) Campaigns(ctx context.Context, count int) ([]Campaign, error) {
	var all []Campaign
	for offset := 0; ; {
		page := pageSize(count, len(all))
		if page == 0 {
			break
		}

		params := url.Values{}
		params.Set("count", strconv.Itoa(page))
		params.Set("offset", strconv.Itoa(offset))
		params.Set("sort_field", "send_time")
		params.Set("sort_dir", "DESC")

		var resp campaignsResponse
		if err := c.get(ctx, "campaigns", "/campaigns", params, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Campaigns...)

		if len(resp.Campaigns) < page {
			break
		}
		offset += page
	}
	return all, nil
}

// Report fetches the full report for a campaign
func (c *Client) Report(ctx context.Context, campaignID string) (*Report, error) {
	var resp Report
	if err := c.get(ctx, "report", "/reports/"+campaignID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClickDetails fetches per-URL click stats for a campaign
func (c *Client) ClickDetails(ctx context.Context, campaignID string, count int) ([]ClickDetail, error) {
	var all []ClickDetail
	for offset := 0; ; {
		page := pageSize(count, len(all))
		if page == 0 {
			break
		}

		params := url.Values{}
		params.Set("count", strconv.Itoa(page))
		params.Set("offset", strconv.Itoa(offset))

		var resp clickDetailsResponse
		if err := c.get(ctx, "click_details", "/reports/"+campaignID+"/click-details", params, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.URLsClicked...)

		if len(resp.URLsClicked) < page {
			break
		}
		offset += page
	}
	return all, nil
}

// Content fetches the rendered content of a campaign
func (c *Client) Content(ctx context.Context, campaignID string) (*Content, error) {
	var resp Content
	if err := c.get(ctx, "content", "/campaigns/"+campaignID+"/content", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EmailActivity fetches per-recipient activity for a campaign. The field
// projection keeps response sizes manageable for large sends.
func (c *Client) EmailActivity(ctx context.Context, campaignID string, count int) ([]EmailActivity, error) {
	var all []EmailActivity
	for offset := 0; ; {
		page := pageSize(count, len(all))
		if page == 0 {
			break
		}

		params := url.Values{}
		params.Set("count", strconv.Itoa(page))
		params.Set("offset", strconv.Itoa(offset))
		params.Set("fields", "emails.email_id,emails.email_address,emails.activity,emails.last_open,emails.opens_count,emails.clicks_count")

		var resp emailActivityResponse
		if err := c.get(ctx, "email_activity", "/reports/"+campaignID+"/email-activity", params, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Emails...)

		if len(resp.Emails) < page {
			break
		}
		offset += page
	}
	return all, nil
}

// EmailActivityDetail fetches the activity record of a single recipient
func (c *Client) EmailActivityDetail(ctx context.Context, campaignID, emailID string) (*EmailActivity, error) {
	var resp EmailActivity
	if err := c.get(ctx, "email_activity_detail", "/reports/"+campaignID+"/email-activity/"+emailID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListMembers fetches subscribers of an audience
func (c *Client) ListMembers(ctx context.Context, listID string, count int) ([]Member, error) {
	var all []Member
	for offset := 0; ; {
		page := pageSize(count, len(all))
		if page == 0 {
			break
		}

		params := url.Values{}
		params.Set("count", strconv.Itoa(page))
		params.Set("offset", strconv.Itoa(offset))

		var resp membersResponse
		if err := c.get(ctx, "list_members", "/lists/"+listID+"/members", params, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Members...)

		if len(resp.Members) < page {
			break
		}
		offset += page
	}
	return all, nil
}

// List fetches audience metadata
func (c *Client) List(ctx context.Context, listID string) (*List, error) {
	var resp List
	if err := c.get(ctx, "list", "/lists/"+listID, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GrowthHistory fetches monthly audience growth records
func (c *Client) GrowthHistory(ctx context.Context, listID string) ([]GrowthHistory, error) {
	var resp growthHistoryResponse
	if err := c.get(ctx, "growth_history", "/lists/"+listID+"/growth-history", nil, &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}
