package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/filament-ui/filament/internal/blueprint"
	"github.com/filament-ui/filament/internal/circuit"
	"github.com/filament-ui/filament/internal/journal"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Journal string
	Verify  bool
}

// ReplayResult holds the replay outcome.
type ReplayResult struct {
	Journal       string   `json:"journal"`
	Enqueued      int      `json:"enqueued"`
	Deterministic bool     `json:"deterministic"`
	Verified      bool     `json:"verified"`
	Divergences   []string `json:"divergences,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <blueprint.cue>",
		Short: "Replay a journal against a freshly built circuit",
		Long: `Rebuild the blueprint on a fresh circuit and re-enqueue the journal's
applied events with their original IDs and sequence numbers.

Blueprints instantiate facts in name order, so a journal recorded
against a blueprint replays cleanly against the same blueprint: each
journaled fact name resolves to the equivalent emitter in the new
circuit. Events that were rolled back or dropped are not replayed.

With --verify the replay is recorded to a scratch journal and compared
entry by entry against the original; any divergence means the circuit
did not reproduce its own history and the command exits non-zero.

Exit codes:
  0 - Replay completed (and verified, when requested)
  1 - Verification found divergences
  2 - Command error (missing files, broken journal)

Examples:
  filament replay circuit.cue --journal events.db
  filament replay circuit.cue --journal events.db --verify`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite event journal (required)")
	_ = cmd.MarkFlagRequired("journal")
	cmd.Flags().BoolVar(&opts.Verify, "verify", false, "record the replay and compare it against the original journal")

	return cmd
}

func runReplay(opts *ReplayOptions, path string, cmd *cobra.Command) error {
	if _, err := os.Stat(opts.Journal); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", opts.Journal))
	}

	loaded, err := LoadBlueprint(path)
	if err != nil {
		if _, ok := asInvalid(err); ok {
			return WrapExitError(ExitFailure, "blueprint invalid", err)
		}
		if _, ok := asCompile(err); ok {
			return WrapExitError(ExitFailure, "blueprint does not compile", err)
		}
		return err
	}

	j, err := journal.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	ctx := context.Background()

	lastSeq, err := j.LastSeq(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	// The scratch journal lives next to nothing: a temp file that holds
	// the replayed history for comparison, discarded afterwards.
	var replayed *journal.Journal
	copts := []circuit.Option{
		// Resume the clock past the journaled history so any follow-up
		// events (completion replays to late subscribers) sort after it.
		circuit.WithClock(circuit.NewClockAt(lastSeq)),
	}
	resolver := &lateResolver{}
	if opts.Verify {
		scratch := filepath.Join(os.TempDir(), fmt.Sprintf("filament-replay-%d.db", os.Getpid()))
		defer os.Remove(scratch)
		replayed, err = journal.Open(scratch)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open scratch journal", err)
		}
		defer replayed.Close()
		copts = append(copts, circuit.WithRecorder(journal.NewRecorder(replayed, resolver)))
	}

	reg := circuit.NewRegistry()
	c := circuit.NewCircuit(reg, copts...)
	defer c.Close()

	rt, err := blueprint.Build(c, loaded.Blueprint)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to build blueprint", err)
	}
	resolver.set(rt)

	enqueued, err := journal.Replay(ctx, j, c, rt.Resolve)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	if err := c.Settle(ctx, 0); err != nil {
		return WrapExitError(ExitFailure, "replayed circuit did not settle", err)
	}

	result := ReplayResult{
		Journal:       opts.Journal,
		Enqueued:      enqueued,
		Deterministic: true,
	}

	if opts.Verify {
		diffs, verr := journal.Verify(ctx, j, replayed)
		if verr != nil {
			return WrapExitError(ExitCommandError, "verification failed", verr)
		}
		result.Verified = true
		result.Divergences = diffs
		result.Deterministic = len(diffs) == 0
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	formatter := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}

	resp := CLIResponse{Status: "ok", Data: result}
	if !result.Deterministic {
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "replay diverged from the journaled history",
		}
	}
	if err := formatter.Respond(resp); err != nil {
		return err
	}

	if !result.Deterministic {
		return NewExitError(ExitFailure, "replay diverged from the journaled history")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replayed %d event(s) from %s\n", result.Enqueued, result.Journal)

	if !result.Verified {
		return nil
	}

	if result.Deterministic {
		fmt.Fprintln(w, "✓ Replay verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Replay diverged from the journaled history:")
	for _, d := range result.Divergences {
		fmt.Fprintf(w, "  %s\n", d)
	}
	return NewExitError(ExitFailure, "replay diverged from the journaled history")
}
