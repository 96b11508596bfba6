package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ostrauk/mailboard/internal/app"
	"github.com/ostrauk/mailboard/internal/config"
)

var (
	cfgFile   string
	asCSV     bool
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "mailboard",
	Short: "Mailboard - Mailchimp analytics dashboard",
	Long:  `Mailboard serves campaign and audience analytics from the Mailchimp Marketing API.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long:  `Start the Mailboard HTTP API and, if enabled, the metrics server.`,
	RunE:  runServe,
}

var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Print the campaign overview",
	RunE:  runOverview,
}

var campaignCmd = &cobra.Command{
	Use:   "campaign <id> [email-id]",
	Short: "Print metrics for a single campaign, or one recipient's activity",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runCampaign,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify configuration and API connectivity",
	RunE:  runCheck,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	RunE:  runConfigValidate,
}

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print an example configuration file",
	RunE:  runConfigExample,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mailboard version %s\n", version)
		if commit != "unknown" {
			fmt.Printf("  commit: %s\n", commit)
		}
		if buildTime != "unknown" {
			fmt.Printf("  built:  %s\n", buildTime)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (optional, environment is enough)")
	overviewCmd.Flags().BoolVar(&asCSV, "csv", false, "print as CSV instead of a table")

	configCmd.AddCommand(configValidateCmd, configExampleCmd)
	rootCmd.AddCommand(serveCmd, overviewCmd, campaignCmd, checkCmd, configCmd, versionCmd)
}

func loadApp() (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create application: %w", err)
	}
	return application, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	application, err := loadApp()
	if err != nil {
		return err
	}
	return application.Run(context.Background())
}

func runOverview(cmd *cobra.Command, args []string) error {
	application, err := loadApp()
	if err != nil {
		return err
	}

	rows, err := application.Service().Overview(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch overview: %w", err)
	}

	if asCSV {
		w := csv.NewWriter(os.Stdout)
		if err := w.Write([]string{"id", "title", "send_time", "emails_sent", "open_rate", "click_rate", "click_to_open_rate"}); err != nil {
			return err
		}
		for _, r := range rows {
			sendTime := ""
			if !r.SendTime.IsZero() {
				sendTime = r.SendTime.Format("2006-01-02")
			}
			record := []string{
				r.CampaignID,
				r.Title,
				sendTime,
				strconv.Itoa(r.EmailsSent),
				fmt.Sprintf("%.2f", r.OpenRate),
				fmt.Sprintf("%.2f", r.ClickRate),
				fmt.Sprintf("%.2f", r.ClickToOpenRate),
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
		w.Flush()
		return w.Error()
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TITLE\tSENT\tOPEN%\tCLICK%\tCTOR%\tSEND TIME")
	for _, r := range rows {
		sendTime := ""
		if !r.SendTime.IsZero() {
			sendTime = r.SendTime.Format("2006-01-02")
		}
		fmt.Fprintf(tw, "%s\t%d\t%.1f\t%.1f\t%.1f\t%s\n",
			r.Title, r.EmailsSent, r.OpenRate, r.ClickRate, r.ClickToOpenRate, sendTime)
	}
	return tw.Flush()
}

func runCampaign(cmd *cobra.Command, args []string) error {
	application, err := loadApp()
	if err != nil {
		return err
	}

	if len(args) == 2 {
		return printRecipient(cmd.Context(), application, args[0], args[1])
	}

	detail, err := application.Service().Detail(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to fetch campaign: %w", err)
	}

	fmt.Printf("Campaign %s (%s)\n", detail.Row.Title, args[0])
	fmt.Printf("  List:          %s\n", detail.Row.ListID)
	fmt.Printf("  Emails sent:   %d\n", detail.Row.EmailsSent)
	fmt.Printf("  Open rate:     %.1f%%\n", detail.Row.OpenRate)
	fmt.Printf("  Click rate:    %.1f%%\n", detail.Row.ClickRate)
	fmt.Printf("  Clicked:       %d\n", detail.Activity.Clicked)
	fmt.Printf("  Opened only:   %d\n", detail.Activity.OpenedOnly)
	fmt.Printf("  No activity:   %d\n", detail.Activity.NoActivity)
	fmt.Printf("  Clicked URLs:  %d\n", len(detail.Clicks))
	if len(detail.Missing) > 0 {
		fmt.Printf("  Unavailable:   %v\n", detail.Missing)
	}
	return nil
}

func printRecipient(ctx context.Context, application *app.App, campaignID, emailID string) error {
	act, err := application.Client().EmailActivityDetail(ctx, campaignID, emailID)
	if err != nil {
		return fmt.Errorf("failed to fetch recipient activity: %w", err)
	}

	fmt.Printf("Recipient %s\n", act.EmailAddress)
	fmt.Printf("  Opens:   %d\n", act.OpensCount)
	fmt.Printf("  Clicks:  %d\n", act.ClicksCount)
	if act.LastOpen != "" {
		fmt.Printf("  Last open: %s\n", act.LastOpen)
	}
	for _, ev := range act.Activity {
		if ev.URL != "" {
			fmt.Printf("  %s  %s  %s\n", ev.Timestamp, ev.Action, ev.URL)
		} else {
			fmt.Printf("  %s  %s\n", ev.Timestamp, ev.Action)
		}
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	application, err := loadApp()
	if err != nil {
		return err
	}

	pong, err := application.Client().Ping(cmd.Context())
	if err != nil {
		return fmt.Errorf("API check failed: %w", err)
	}

	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  API: %s\n", pong.HealthStatus)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  Server prefix: %s\n", cfg.Mailchimp.ServerPrefix)
	fmt.Printf("  HTTP:          %s\n", cfg.HTTP.ListenAddr)
	fmt.Printf("  Metrics:       %s (enabled: %t)\n", cfg.Metrics.ListenAddr, cfg.Metrics.Enabled)
	fmt.Printf("  Log:           %s/%s\n", cfg.Logging.Level, cfg.Logging.Format)

	return nil
}

func runConfigExample(cmd *cobra.Command, args []string) error {
	out, err := yaml.Marshal(config.Default())
	if err != nil {
		return fmt.Errorf("failed to render example: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
