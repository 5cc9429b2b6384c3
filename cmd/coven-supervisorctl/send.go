// ABOUTME: "send" and "session" subcommands: run a task and inspect recorded history
// ABOUTME: Streaming prints status updates as they arrive and exits non-zero on failure

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/2389/coven-supervisor/internal/a2a"
)

func newSendCmd(opts *options) *cobra.Command {
	var (
		sessionID string
		noStream  bool
	)
	cmd := &cobra.Command{
		Use:   "send TEXT...",
		Short: "Send a task to the supervisor",
		Long: `Send a task and print the answer. Progress is streamed unless --no-stream is
given. Pass --session to keep history across calls; a new session id is
generated otherwise and printed first.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if sessionID == "" {
				sessionID = uuid.NewString()
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, faint("session: "+sessionID))

			c := opts.client()
			defer c.Close()

			if noStream {
				resp := c.SendTask(cmd.Context(), sessionID, text)
				return printResponse(out, resp)
			}

			var final *a2a.StreamEvent
			for ev := range c.StreamTask(cmd.Context(), sessionID, text) {
				if ev.Done {
					continue
				}
				if ev.Final || ev.Failed() {
					e := ev
					final = &e
					continue
				}
				printProgress(out, ev)
			}
			if final == nil {
				return errors.New("stream ended without a result")
			}
			return printFinal(out, *final)
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "session id for history")
	cmd.Flags().BoolVar(&noStream, "no-stream", false, "wait for the whole result instead of streaming")
	return cmd
}

func newSessionCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or delete session history",
	}

	var limit int
	show := &cobra.Command{
		Use:   "show ID",
		Short: "Print a session's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			defer c.Close()
			sess, err := c.Session(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			printSession(cmd.OutOrStdout(), sess)
			return nil
		},
	}
	show.Flags().IntVarP(&limit, "limit", "n", 0, "only the most recent N messages")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Forget a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			defer c.Close()
			if err := c.DeleteSession(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s session %s deleted\n", okMark(), args[0])
			return nil
		},
	}

	cmd.AddCommand(show, del)
	return cmd
}
