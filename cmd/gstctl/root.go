package main

import (
	"encoding/json"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/davidleathers/gstbooks/internal/infrastructure/config"
	"github.com/davidleathers/gstbooks/internal/infrastructure/gstapi"
	"github.com/davidleathers/gstbooks/internal/infrastructure/telemetry"
)

var version = "dev"

type rootOptions struct {
	baseURL string
	timeout time.Duration
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "gstctl",
		Short: "Operator CLI for gstbooks",
		Long: `gstctl previews document totals locally and drives the GST credential
flow against the remote backend.

The backend URL is read from gst_api.base_url in the configuration
(GSTBOOKS_GST_API_BASE_URL) unless --base-url is given.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "GST backend base URL")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Remote request timeout")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log remote requests")

	cmd.AddCommand(newTotalsCmd())
	cmd.AddCommand(newCredentialCmd(opts))
	return cmd
}

// client builds a backend client from configuration and flags.
func (o *rootOptions) client() (*gstapi.Client, error) {
	baseURL := o.baseURL
	if baseURL == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		baseURL = cfg.GSTAPI.BaseURL
	}

	logger := zap.NewNop()
	if o.verbose {
		var err error
		if logger, err = telemetry.NewLogger("debug", "console"); err != nil {
			return nil, err
		}
	}
	return gstapi.NewClient(baseURL, logger, gstapi.WithTimeout(o.timeout))
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
