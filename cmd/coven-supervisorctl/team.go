// ABOUTME: "team" subcommands: add, remove, list, info, reconnect, status and batch operations
// ABOUTME: Batch input is repeated flags or a JSON file in the server's batch format

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/2389/coven-supervisor/internal/gateway"
	"github.com/2389/coven-supervisor/internal/team"
)

func newTeamCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "team",
		Short: "Manage the supervisor's team of agents",
	}
	cmd.AddCommand(
		newTeamAddCmd(opts),
		newTeamRemoveCmd(opts),
		newTeamListCmd(opts),
		newTeamInfoCmd(opts),
		newTeamReconnectCmd(opts),
		newTeamStatusCmd(opts),
		newTeamBatchAddCmd(opts),
		newTeamBatchRemoveCmd(opts),
	)
	return cmd
}

func newTeamAddCmd(opts *options) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add URL",
		Short: "Connect an agent and add it to the team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			defer c.Close()
			res, err := c.AddAgent(cmd.Context(), args[0], name)
			if err != nil {
				return err
			}
			printMember(cmd.OutOrStdout(), res)
			if !res.Success {
				return errors.New(res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "name to register the agent under (defaults to its card name)")
	return cmd
}

func newTeamRemoveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a dynamically added agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			defer c.Close()
			res, err := c.RemoveAgent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printMember(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newTeamReconnectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reconnect NAME",
		Short: "Refresh an agent's connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			defer c.Close()
			res, err := c.ReconnectAgent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printMember(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func newTeamListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List team members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			defer c.Close()
			list, err := c.ListAgents(cmd.Context())
			if err != nil {
				return err
			}
			printTeamList(cmd.OutOrStdout(), list)
			return nil
		},
	}
}

func newTeamInfoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "info NAME",
		Short: "Show one member and its agent card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			defer c.Close()
			detail, err := c.AgentInfo(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printDetail(cmd.OutOrStdout(), detail)
			return nil
		},
	}
}

func newTeamStatusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show team totals and health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			defer c.Close()
			st, err := c.Status(cmd.Context())
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), st)
			return nil
		},
	}
}

func newTeamBatchAddCmd(opts *options) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "batch-add [URL...]",
		Short: fmt.Sprintf("Add up to %d agents at once", team.MaxBatchSize),
		Long: `Add several agents in one request. Agents are given as URL arguments, or
with --file as a JSON array of {"agent_url": ..., "agent_name": ...} objects.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := batchAddItems(file, args)
			if err != nil {
				return err
			}
			c := opts.client()
			defer c.Close()
			res, err := c.BatchAdd(cmd.Context(), items)
			if err != nil {
				return err
			}
			printBatch(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file with the agents to add")
	return cmd
}

func batchAddItems(file string, urls []string) ([]gateway.AddMemberRequest, error) {
	if file == "" {
		if len(urls) == 0 {
			return nil, errors.New("give agent URLs as arguments or --file")
		}
		items := make([]gateway.AddMemberRequest, len(urls))
		for i, u := range urls {
			items[i] = gateway.AddMemberRequest{AgentURL: u}
		}
		return items, nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}
	var items []gateway.AddMemberRequest
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing batch file: %w", err)
	}
	return items, nil
}

func newTeamBatchRemoveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "batch-remove NAME...",
		Short: fmt.Sprintf("Remove up to %d agents at once", team.MaxBatchSize),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			defer c.Close()
			res, err := c.BatchRemove(cmd.Context(), args)
			if err != nil {
				return err
			}
			printBatch(cmd.OutOrStdout(), res)
			return nil
		},
	}
}
