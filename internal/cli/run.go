package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/filament-ui/filament/internal/blueprint"
	"github.com/filament-ui/filament/internal/circuit"
	"github.com/filament-ui/filament/internal/harness"
	"github.com/filament-ui/filament/internal/journal"
	"github.com/filament-ui/filament/internal/table"
	"github.com/filament-ui/filament/internal/value"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Journal  string
	Scenario string
	Watch    bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <blueprint.cue>",
		Short: "Build a circuit and start its event loop",
		Long: `Build a circuit from a CUE blueprint and start the consumer event loop.

Without a scenario the loop runs until interrupted; facts have no
external driver, so this mode is mostly useful with --watch while
editing a blueprint. With --scenario, the scenario's emit, fail,
complete, and remove steps drive the circuit's facts and the loop
stops once the queue drains. Wiring and settle steps are consumer-side
and are skipped with a warning: a live loop settles continuously.

With --journal every handled event and its outcome is appended to the
SQLite journal for later trace and replay.

Examples:
  filament run circuit.cue --scenario steps.yaml --journal events.db
  filament run circuit.cue --watch`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCircuit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite event journal")
	cmd.Flags().StringVar(&opts.Scenario, "scenario", "", "YAML scenario whose fact steps drive the circuit")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "rebuild the circuit when the blueprint file changes")

	return cmd
}

func runCircuit(opts *RunOptions, path string, cmd *cobra.Command) error {
	var j *journal.Journal
	if opts.Journal != "" {
		var err error
		j, err = journal.Open(opts.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				slog.Error("error closing journal", "error", closeErr)
			}
		}()
	}

	var scenario *harness.Scenario
	if opts.Scenario != "" {
		var err error
		scenario, err = harness.LoadScenario(opts.Scenario)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load scenario", err)
		}
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	for {
		reload, err := runOnce(ctx, opts, path, scenario, j, cmd)
		if err != nil {
			return err
		}
		if !reload {
			return nil
		}
		slog.Info("blueprint changed, rebuilding", "path", path)
	}
}

// runOnce builds the circuit and drives one event-loop lifetime. It
// returns reload=true when a watched blueprint changed and the caller
// should rebuild.
func runOnce(ctx context.Context, opts *RunOptions, path string, scenario *harness.Scenario, j *journal.Journal, cmd *cobra.Command) (reload bool, err error) {
	loaded, err := LoadBlueprint(path)
	if err != nil {
		if _, ok := asInvalid(err); ok {
			return false, WrapExitError(ExitFailure, "blueprint invalid", err)
		}
		if _, ok := asCompile(err); ok {
			return false, WrapExitError(ExitFailure, "blueprint does not compile", err)
		}
		return false, err
	}
	for _, w := range loaded.Warnings {
		slog.Warn("relay cycle", "message", w.Message)
	}

	resolver := &lateResolver{}
	copts := []circuit.Option{}
	if j != nil {
		copts = append(copts, circuit.WithRecorder(journal.NewRecorder(j, resolver)))
	}

	reg := circuit.NewRegistry()
	c := circuit.NewCircuit(reg, copts...)
	defer c.Close()

	rt, err := blueprint.Build(c, loaded.Blueprint)
	if err != nil {
		return false, WrapExitError(ExitFailure, "failed to build blueprint", err)
	}
	resolver.set(rt)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if runErr := c.Run(gctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
			return runErr
		}
		return nil
	})

	if scenario != nil {
		g.Go(func() error {
			feedScenario(scenario, rt)
			if !opts.Watch {
				// One-shot mode: the loop drains what the scenario
				// enqueued, then returns.
				c.Stop()
			}
			return nil
		})
	}

	var reloaded bool
	if opts.Watch {
		watcher, werr := fsnotify.NewWatcher()
		if werr != nil {
			c.Stop()
			return false, WrapExitError(ExitCommandError, "failed to create watcher", werr)
		}
		defer watcher.Close()
		if werr := watcher.Add(path); werr != nil {
			c.Stop()
			return false, WrapExitError(ExitCommandError, "failed to watch blueprint", werr)
		}

		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case ev, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Rename) {
						reloaded = true
						c.Stop()
						return nil
					}
				case werr, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					slog.Error("watcher error", "error", werr)
				}
			}
		})
	}

	if scenario == nil || opts.Watch {
		fmt.Fprintln(cmd.OutOrStdout(), "Circuit running. Press Ctrl-C to stop.")
	}

	if err := g.Wait(); err != nil {
		return false, WrapExitError(ExitFailure, "circuit error", err)
	}

	if scenario != nil && !opts.Watch {
		fmt.Fprintf(cmd.OutOrStdout(), "Scenario %s fed, queue drained.\n", scenario.Name)
	}
	return reloaded && ctx.Err() == nil, nil
}

// feedScenario drives the producer-side steps of a scenario against the
// runtime's facts. Consumer-side steps (settle, connect, disconnect) are
// skipped: they belong to the harness, where the scenario owns the loop.
func feedScenario(scenario *harness.Scenario, rt *blueprint.Runtime) {
	for i, st := range scenario.Steps {
		switch {
		case st.Emit != "":
			f, ok := rt.Fact(st.Emit)
			if !ok {
				slog.Warn("scenario step on unknown fact skipped", "step", i, "fact", st.Emit)
				continue
			}
			v, err := yamlValue(st.Value)
			if err != nil {
				slog.Warn("scenario step payload skipped", "step", i, "fact", st.Emit, "error", err)
				continue
			}
			if err := f.EmitValue(v); err != nil {
				slog.Warn("scenario emit rejected", "step", i, "fact", st.Emit, "error", err)
			}

		case st.Fail != "":
			if f, ok := rt.Fact(st.Fail); ok {
				var cause error
				if st.Error != "" {
					cause = errors.New(st.Error)
				}
				f.EmitFailure(cause)
			}

		case st.Complete != "":
			if f, ok := rt.Fact(st.Complete); ok {
				f.EmitComplete()
			}

		case st.Remove != "":
			if f, ok := rt.Fact(st.Remove); ok {
				f.Remove()
			}

		default:
			slog.Warn("consumer-side scenario step skipped under run", "step", i)
		}
	}
}

// yamlValue converts a YAML-parsed payload into a circuit value.
func yamlValue(raw interface{}) (value.Value, error) {
	if raw == nil {
		return nil, errors.New("null payloads are not supported")
	}
	switch v := raw.(type) {
	case bool:
		return value.Bool(v), nil
	case int:
		return value.Int(v), nil
	case int64:
		return value.Int(v), nil
	case float64:
		return value.Float(v), nil
	case string:
		return value.String(v), nil
	case []interface{}:
		list := make(value.List, len(v))
		for i, elem := range v {
			ev, err := yamlValue(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			list[i] = ev
		}
		return list, nil
	case map[string]interface{}:
		rec := make(value.Record, len(v))
		for key, elem := range v {
			ev, err := yamlValue(elem)
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", key, err)
			}
			rec[key] = ev
		}
		return rec, nil
	default:
		return nil, fmt.Errorf("unsupported payload type %T", raw)
	}
}

// lateResolver defers resolver binding until the blueprint has built.
// The recorder is wired at circuit construction, before any runtime
// exists; no event is handled before set is called.
type lateResolver struct {
	mu sync.RWMutex
	rt *blueprint.Runtime
}

func (r *lateResolver) set(rt *blueprint.Runtime) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rt = rt
}

func (r *lateResolver) EmitterName(h table.Handle) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.rt == nil {
		return ""
	}
	return r.rt.EmitterName(h)
}

func (r *lateResolver) EmitterSchema(h table.Handle) (value.Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.rt == nil {
		return value.Schema{}, false
	}
	return r.rt.EmitterSchema(h)
}
