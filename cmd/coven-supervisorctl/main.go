// ABOUTME: Operator CLI for a running coven-supervisor
// ABOUTME: Manages the team, sends tasks and inspects session history over HTTP

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389/coven-supervisor/internal/client"
)

// version is overridden at build time with -ldflags "-X main.version=<tag>".
var version = "dev"

// EnvURL overrides the default supervisor address.
const EnvURL = "COVEN_SUPERVISOR_URL"

type options struct {
	url     string
	timeout time.Duration
}

func (o *options) client() *client.Client {
	return client.New(client.Params{
		BaseURL:     o.url,
		Timeout:     o.timeout,
		TaskTimeout: o.timeout,
	})
}

func defaultURL() string {
	if u := os.Getenv(EnvURL); u != "" {
		return u
	}
	return "http://localhost:8000"
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "coven-supervisorctl",
		Short:         "Manage a running coven-supervisor",
		Long:          `Add and remove team agents, send tasks and read session history on a coven-supervisor.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.url, "url", defaultURL(), "supervisor base URL (env "+EnvURL+")")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", client.DefaultTimeout, "request timeout")

	root.AddCommand(
		newTeamCmd(opts),
		newSendCmd(opts),
		newSessionCmd(opts),
		newHealthCmd(opts),
	)
	return root
}

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the supervisor is up",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			defer c.Close()
			if err := c.Health(cmd.Context()); err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "healthy")
			return nil
		},
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
