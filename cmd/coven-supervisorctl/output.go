// ABOUTME: Colored terminal rendering for supervisorctl results
// ABOUTME: Colors switch off automatically when output is not a terminal

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/2389/coven-supervisor/internal/a2a"
	"github.com/2389/coven-supervisor/internal/agent"
	"github.com/2389/coven-supervisor/internal/gateway"
	"github.com/2389/coven-supervisor/internal/team"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	faint  = color.New(color.FgHiBlack).SprintFunc()
)

func okMark() string   { return green("✓") }
func failMark() string { return red("✗") }

func printMember(w io.Writer, res *agent.MemberResult) {
	if !res.Success {
		fmt.Fprintf(w, "%s %s\n", failMark(), res.Error)
		return
	}
	fmt.Fprintf(w, "%s %s\n", okMark(), res.Message)
	if res.URL != "" {
		fmt.Fprintf(w, "  %s %s\n", faint("url:"), res.URL)
	}
	if res.Description != "" {
		fmt.Fprintf(w, "  %s %s\n", faint("description:"), res.Description)
	}
	if res.Streaming != nil {
		fmt.Fprintf(w, "  %s %t\n", faint("streaming:"), *res.Streaming)
	}
}

func statusColor(status string) string {
	if status == agent.StatusConnected {
		return green(status)
	}
	return red(status)
}

func printTeamList(w io.Writer, list *agent.TeamList) {
	fmt.Fprintf(w, "%d agents (%d configured, %d dynamic), %d connected\n\n",
		list.TotalAgents, list.ConfiguredAgents, list.DynamicAgents, list.ConnectedAgents)
	if len(list.TeamMembers) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTYPE\tSTATUS\tSTREAMING\tURL")
	for _, m := range list.TeamMembers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", cyan(m.Name), m.Type, statusColor(m.Status), m.Streaming, m.URL)
	}
	_ = tw.Flush()
}

func printDetail(w io.Writer, d *agent.MemberDetail) {
	fmt.Fprintf(w, "%s %s\n", cyan(d.Name), faint("("+string(d.Type)+")"))
	fmt.Fprintf(w, "  status:      %s\n", statusColor(d.Status))
	fmt.Fprintf(w, "  url:         %s\n", d.URL)
	fmt.Fprintf(w, "  description: %s\n", d.Description)
	fmt.Fprintf(w, "  streaming:   %t\n", d.Streaming)
	if d.AddedAt != nil {
		fmt.Fprintf(w, "  added:       %s\n", d.AddedAt.Format("2006-01-02 15:04:05"))
	}
	if d.ReconnectedAt != nil {
		fmt.Fprintf(w, "  reconnected: %s\n", d.ReconnectedAt.Format("2006-01-02 15:04:05"))
	}
	if d.AgentCard != nil {
		fmt.Fprintf(w, "  card:        %s v%s\n", d.AgentCard.Name, d.AgentCard.Version)
	}
}

func printStatus(w io.Writer, st *team.Status) {
	health := green(st.Health)
	if st.Health != team.HealthHealthy {
		health = yellow(st.Health)
	}
	fmt.Fprintf(w, "supervisor: %s\n", st.SupervisorStatus)
	fmt.Fprintf(w, "health:     %s\n", health)
	fmt.Fprintf(w, "agents:     %d total, %d connected, %d disconnected\n", st.TotalAgents, st.ConnectedAgents, st.DisconnectedAgents)
	fmt.Fprintf(w, "            %d configured, %d dynamic\n", st.ConfiguredAgents, st.DynamicAgents)
}

func printBatch(w io.Writer, res *team.BatchResult) {
	fmt.Fprintf(w, "batch of %d: %s, %s\n", res.BatchSize,
		green(fmt.Sprintf("%d succeeded", res.Successful)),
		red(fmt.Sprintf("%d failed", res.Failed)))
	for i := range res.Results {
		printMember(w, &res.Results[i])
	}
}

func eventText(ev a2a.StreamEvent) string {
	if ev.Result == nil {
		return ev.Error
	}
	if text := ev.Result.Status.Message.JoinText(""); text != "" {
		return text
	}
	return ev.Result.Status.Error
}

func printProgress(w io.Writer, ev a2a.StreamEvent) {
	if ev.Result != nil {
		for _, art := range ev.Result.Artifacts {
			fmt.Fprintf(w, "%s %s\n", yellow("artifact:"), art.Name)
		}
	}
	if text := eventText(ev); text != "" {
		fmt.Fprintln(w, faint("… "+text))
	}
}

func printFinal(w io.Writer, ev a2a.StreamEvent) error {
	text := eventText(ev)
	if ev.Failed() {
		fmt.Fprintf(w, "%s %s\n", failMark(), text)
		return errors.New("task failed")
	}
	state := a2a.StateCompleted
	if ev.Result != nil && ev.Result.Status.State != "" {
		state = ev.Result.Status.State
	}
	if state != a2a.StateCompleted {
		fmt.Fprintf(w, "%s %s\n", yellow(string(state)), text)
		return nil
	}
	fmt.Fprintln(w, text)
	return nil
}

func printResponse(w io.Writer, resp *a2a.TaskResponse) error {
	if resp.State == a2a.StateFailed {
		msg := resp.Error
		if msg == "" {
			msg = resp.Text()
		}
		fmt.Fprintf(w, "%s %s\n", failMark(), msg)
		return errors.New("task failed")
	}
	for _, art := range resp.Artifacts {
		fmt.Fprintf(w, "%s %s\n", yellow("artifact:"), art.Name)
	}
	fmt.Fprintln(w, resp.Text())
	return nil
}

func printSession(w io.Writer, sess *gateway.SessionResponse) {
	fmt.Fprintf(w, "session %s: %d messages, updated %s\n\n", cyan(sess.ID), sess.MessageCount, sess.UpdatedAt.Format("2006-01-02 15:04:05"))
	for _, m := range sess.Messages {
		who := m.Author
		if m.Role == "user" {
			who = green(who)
		} else {
			who = cyan(who)
		}
		fmt.Fprintf(w, "%s %s: %s\n", faint(m.CreatedAt.Format("15:04:05")), who, strings.TrimSpace(m.Content))
	}
}
