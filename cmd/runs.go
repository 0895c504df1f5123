package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/compare-agent/internal/model"
	"github.com/sells-group/compare-agent/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect compare run history",
	Long:  "Commands for listing runs and reading the per-run audit trail.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List compare runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run with its full audit trail",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		detail, err := loadRunDetail(cmd.Context(), st, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(detail)
	},
}

// -- runs events --

var runsEventsCmd = &cobra.Command{
	Use:   "events <run-id>",
	Short: "Show the phase timeline of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		events, err := st.ListEvents(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs events")
		}
		if len(events) == 0 {
			fmt.Fprintln(os.Stderr, "No events found.")
			return nil
		}

		formatEvents(os.Stdout, events)
		return nil
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (started, completed, error)")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsListCmd.Flags().Int("offset", 0, "number of runs to skip")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsEventsCmd)
	rootCmd.AddCommand(runsCmd)
}

// runDetail is the full read-surface payload for one run.
type runDetail struct {
	Run      *model.CompareRun `json:"run"`
	Events   []model.RunEvent  `json:"events"`
	ToolRuns []model.ToolRun   `json:"tool_runs"`
	LlmRuns  []model.LlmRun    `json:"llm_runs"`
}

// loadRunDetail assembles a run with its events, tool runs, and llm runs.
func loadRunDetail(ctx context.Context, st store.Store, runID string) (*runDetail, error) {
	run, err := st.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	events, err := st.ListEvents(ctx, runID)
	if err != nil {
		return nil, err
	}
	toolRuns, err := st.ListToolRuns(ctx, runID)
	if err != nil {
		return nil, err
	}
	llmRuns, err := st.ListLlmRuns(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &runDetail{Run: run, Events: events, ToolRuns: toolRuns, LlmRuns: llmRuns}, nil
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.CompareRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tSTATUS\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		source := r.SourceURL
		if len(source) > 40 {
			source = source[:37] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			source,
			r.Status,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// formatEvents writes the ordered phase timeline to w.
func formatEvents(out io.Writer, events []model.RunEvent) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIME\tPHASE\tSTATUS\tMESSAGE")
	for _, e := range events {
		msg := e.Message
		if len(msg) > 60 {
			msg = msg[:57] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			e.CreatedAt.Format("15:04:05.000"),
			e.PhaseName,
			e.Status,
			msg,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
