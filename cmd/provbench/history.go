package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/torosent/provbench/internal/config"
	"github.com/torosent/provbench/internal/history"
	"github.com/torosent/provbench/internal/output"
)

const historyUsage = "usage: provbench history list|show <id>|clear [flags]"

// runHistory handles "provbench history <action>". Flags after the action
// select the store the same way they do for a run.
func runHistory(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New(historyUsage)
	}
	action, rest := args[0], args[1:]

	var id string
	if action == "show" {
		if len(rest) == 0 || len(rest[0]) == 0 || rest[0][0] == '-' {
			return errors.New("history show: run id is required")
		}
		id, rest = rest[0], rest[1:]
	}

	cfg, err := config.NewLoader().Load(rest)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	store, err := history.Open(cfg.History)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if store == nil {
		return errors.New("history is disabled; set --history-type json|bolt")
	}
	defer store.Close()

	ctx := context.Background()
	switch action {
	case "list":
		return listRuns(ctx, stdout, store)
	case "show":
		snap, err := store.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("history show %s: %w", id, err)
		}
		report := output.NewReport(snap, output.OverallFromSnapshot(snap), nil)
		switch {
		case cfg.Output.JSON:
			return output.PrintJSONReport(stdout, report)
		case cfg.Output.YAML:
			return output.PrintYAMLReport(stdout, report)
		default:
			output.PrintReport(stdout, report)
			return nil
		}
	case "clear":
		if err := store.Clear(ctx); err != nil {
			return fmt.Errorf("history clear: %w", err)
		}
		fmt.Fprintln(stdout, "History cleared.")
		return nil
	default:
		return fmt.Errorf("unknown history action %q; %s", action, historyUsage)
	}
}

func listRuns(ctx context.Context, w io.Writer, store history.Store) error {
	runs, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("history list: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tSTARTED\tPAIRS\tREQUESTS")
	for _, snap := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%d/%d\n",
			snap.ID,
			snap.State,
			snap.StartedAt.Local().Format(time.DateTime),
			snap.PairsCompleted, snap.PairsTotal,
			snap.Completed, snap.Total,
		)
	}
	return tw.Flush()
}
