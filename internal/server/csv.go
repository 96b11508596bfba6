package server

import (
	"encoding/csv"
	"net/http"
	"strconv"

	"github.com/ostrauk/mailboard/internal/analytics"
)

// writeOverviewCSV streams the overview table as a CSV download
func writeOverviewCSV(w http.ResponseWriter, rows []analytics.OverviewRow) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="mailboard_report.csv"`)

	cw := csv.NewWriter(w)
	defer cw.Flush()

	cw.Write([]string{
		"campaign_id", "title", "subject_line", "send_time", "status",
		"emails_sent", "open_rate", "click_rate", "click_to_open_rate",
		"bounce_rate", "unsubscribe_rate",
	})
	for _, r := range rows {
		sendTime := ""
		if !r.SendTime.IsZero() {
			sendTime = r.SendTime.Format("02-01-2006")
		}
		cw.Write([]string{
			r.CampaignID,
			r.Title,
			r.SubjectLine,
			sendTime,
			r.Status,
			strconv.Itoa(r.EmailsSent),
			formatRate(r.OpenRate),
			formatRate(r.ClickRate),
			formatRate(r.ClickToOpenRate),
			formatRate(r.BounceRate),
			formatRate(r.UnsubscribeRate),
		})
	}
}

// writeSubscribersCSV streams the audience table as a CSV download
func writeSubscribersCSV(w http.ResponseWriter, rows []analytics.SubscriberRow) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="audience_data.csv"`)

	cw := csv.NewWriter(w)
	defer cw.Flush()

	cw.Write([]string{"email_address", "name", "opens", "clicks", "activity", "last_open"})
	for _, r := range rows {
		cw.Write([]string{
			r.EmailAddress,
			r.Name,
			strconv.Itoa(r.Opens),
			strconv.Itoa(r.Clicks),
			r.Activity,
			r.LastOpen,
		})
	}
}

func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
