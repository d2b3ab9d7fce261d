// Package main implements graylogctl, a command line tool exercising
// the Graylog adapter: webhook provisioning, alert fetching, log search,
// and credential scope checks.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alertbridge/graylog2alert-agent/internal/graylog"
	"github.com/alertbridge/graylog2alert-agent/internal/logging"
)

type options struct {
	username      string
	accessToken   string
	deploymentURL string
	insecure      bool
}

func (o *options) client(cmd *cobra.Command) (*graylog.Client, error) {
	logger := logging.WithComponent(logging.NewLogger(), "graylogctl")
	return graylog.New(cmd.Context(), graylog.AuthConfig{
		Username:      o.username,
		AccessToken:   o.accessToken,
		DeploymentURL: o.deploymentURL,
		VerifyTLS:     !o.insecure,
	}, logger)
}

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "graylogctl",
		Short:         "Exercise the Graylog alert adapter from the command line",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.username, "username", os.Getenv("GRAYLOG_USERNAME"), "Graylog username")
	flags.StringVar(&opts.accessToken, "access-token", os.Getenv("GRAYLOG_ACCESS_TOKEN"), "Graylog access token")
	flags.StringVar(&opts.deploymentURL, "deployment-url", os.Getenv("GRAYLOG_DEPLOYMENT_URL"), "Graylog deployment URL")
	flags.BoolVar(&opts.insecure, "insecure", false, "skip TLS certificate verification")

	root.AddCommand(
		newSetupCmd(opts),
		newAlertsCmd(opts),
		newSearchCmd(opts),
		newScopesCmd(opts),
	)
	root.CompletionOptions.DisableDefaultCmd = true

	return root
}

func newSetupCmd(opts *options) *cobra.Command {
	var callbackURL, apiKey string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Provision the webhook notification channel in Graylog",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			if err := client.SetupWebhook(cmd.Context(), callbackURL, apiKey); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "webhook provisioned")
			return nil
		},
	}

	cmd.Flags().StringVar(&callbackURL, "callback-url", os.Getenv("WEBHOOK_CALLBACK_URL"), "webhook callback URL (must carry a provider_id query parameter)")
	cmd.Flags().StringVar(&apiKey, "api-key", os.Getenv("WEBHOOK_API_KEY"), "API key the webhook authenticates with")

	return cmd
}

func newAlertsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "alerts",
		Short: "Fetch all recent alerts as canonical alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			alerts, err := client.FetchAlerts(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, alerts)
		},
	}
}

func newSearchCmd(opts *options) *cobra.Command {
	searchOpts := graylog.SearchOptions{}

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Run a structured log search and print the raw messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			result, err := client.Query(cmd.Context(), graylog.QueryRequest{
				Kind:   graylog.QueryMessages,
				Search: searchOpts,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, result.Messages)
		},
	}

	cmd.Flags().StringVar(&searchOpts.Query, "query", "", "search query string")
	cmd.Flags().StringVar(&searchOpts.QueryType, "query-type", "", "query type (default elastic)")
	cmd.Flags().IntVar(&searchOpts.TimerangeSeconds, "timerange", 0, "relative time range in seconds (default 300)")
	cmd.Flags().StringVar(&searchOpts.TimerangeType, "timerange-type", "", "time range type (default relative)")
	cmd.Flags().IntVar(&searchOpts.Page, "page", 0, "result page, starting from 0")
	cmd.Flags().IntVar(&searchOpts.PerPage, "per-page", 0, "results per page (default 150)")
	_ = cmd.MarkFlagRequired("query")

	return cmd
}

func newScopesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "scopes",
		Short: "Validate the configured user's authentication and Admin role",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client(cmd)
			if err != nil {
				return err
			}
			return printJSON(cmd, client.ValidateScopes(cmd.Context()))
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
