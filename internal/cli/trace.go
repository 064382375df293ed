package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/filament-ui/filament/internal/circuit"
	"github.com/filament-ui/filament/internal/journal"
	"github.com/filament-ui/filament/internal/value"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Journal string
	Emitter string // optional - filter to one named fact
}

// TraceEntry is one journaled event rendered for trace output.
type TraceEntry struct {
	Position int64  `json:"position"`
	ID       string `json:"id"`
	Seq      int64  `json:"seq"`
	Emitter  string `json:"emitter,omitempty"`
	Kind     string `json:"kind"`
	Payload  string `json:"payload,omitempty"`
	Error    string `json:"error,omitempty"`
	Outcome  string `json:"outcome"`
}

// TraceStats summarizes a journal's event outcomes.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Applied     int `json:"applied"`
	RolledBack  int `json:"rolled_back"`
	Dropped     int `json:"dropped"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Journal  string       `json:"journal"`
	Timeline []TraceEntry `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Render a journal's event timeline",
		Long: `Render the event timeline recorded in a SQLite journal.

Every handled event appears in dispatch order with its payload and
outcome: applied, rolled_back (the dispatch failed and the event's
mutations were undone), or dropped (the emitter was gone or the
payload failed its schema before dispatch).

Examples:
  filament trace --journal events.db
  filament trace --journal events.db --emitter clicks
  filament trace --journal events.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite event journal (required)")
	_ = cmd.MarkFlagRequired("journal")
	cmd.Flags().StringVar(&opts.Emitter, "emitter", "", "filter to one named fact")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	// Opening a missing path would create an empty journal; stat first so
	// a typo'd path is an error instead of a silent empty trace.
	if _, err := os.Stat(opts.Journal); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", opts.Journal))
	}

	j, err := journal.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	ctx := context.Background()
	var entries []journal.Entry
	if opts.Emitter != "" {
		entries, err = j.ListByName(ctx, opts.Emitter)
	} else {
		entries, err = j.List(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := TraceResult{
		Journal:  opts.Journal,
		Timeline: make([]TraceEntry, 0, len(entries)),
	}
	for _, e := range entries {
		te, terr := traceEntry(e)
		if terr != nil {
			return WrapExitError(ExitCommandError, "failed to render journal entry", terr)
		}
		result.Timeline = append(result.Timeline, te)

		result.Stats.TotalEvents++
		switch e.Outcome {
		case circuit.OutcomeApplied:
			result.Stats.Applied++
		case circuit.OutcomeRolledBack:
			result.Stats.RolledBack++
		case circuit.OutcomeDropped:
			result.Stats.Dropped++
		}
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		return formatter.Respond(CLIResponse{Status: "ok", Data: result})
	}
	return outputTraceText(cmd, result)
}

// traceEntry converts a journal row to its rendered form.
func traceEntry(e journal.Entry) (TraceEntry, error) {
	te := TraceEntry{
		Position: e.Position,
		ID:       e.ID,
		Seq:      e.Seq,
		Emitter:  e.EmitterName,
		Kind:     string(e.Kind),
		Error:    e.Err,
		Outcome:  string(e.Outcome),
	}
	if e.Payload != nil {
		data, err := value.MarshalCanonical(e.Payload)
		if err != nil {
			return TraceEntry{}, fmt.Errorf("event %s: %w", e.ID, err)
		}
		te.Payload = string(data)
	}
	return te, nil
}

// outputTraceText renders the trace as text.
func outputTraceText(cmd *cobra.Command, result TraceResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace for journal: %s\n", result.Journal)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	} else {
		for _, e := range result.Timeline {
			fmt.Fprintf(w, "  [%d] %s %s", e.Seq, e.Kind, e.ID)
			if e.Emitter != "" {
				fmt.Fprintf(w, " on %s", e.Emitter)
			}
			if e.Payload != "" {
				fmt.Fprintf(w, " payload=%s", e.Payload)
			}
			if e.Error != "" {
				fmt.Fprintf(w, " error=%q", e.Error)
			}
			fmt.Fprintf(w, " -> %s\n", e.Outcome)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Applied:      %d\n", result.Stats.Applied)
	fmt.Fprintf(w, "  Rolled Back:  %d\n", result.Stats.RolledBack)
	fmt.Fprintf(w, "  Dropped:      %d\n", result.Stats.Dropped)

	return nil
}
