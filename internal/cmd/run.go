package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/haldane/simtree/internal/config"
	"github.com/haldane/simtree/internal/crunch"
	_ "github.com/haldane/simtree/internal/crunch/local"
	"github.com/haldane/simtree/internal/crunch/pooled"
	"github.com/haldane/simtree/internal/event"
	"github.com/haldane/simtree/internal/logging"
	"github.com/haldane/simtree/internal/project"
	"github.com/haldane/simtree/internal/simpacks/walk"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Crunch the demo random-walk simulation",
	Long: `Run crunches the built-in one-dimensional random walk up to the given
clock target, merging computed states into a history tree as they arrive.
Editing the config file while running switches the cruncher backend on the
fly. Interrupt with Ctrl-C to stop early; queued work is still merged.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Float64("clock-target", 100, "simulation clock to crunch up to")
	runCmd.Flags().String("step", "", "step function: walk or drift (default: walk)")
	runCmd.Flags().Float64("bias", 0, "mean displacement per tick")
	runCmd.Flags().Float64("step-size", 1, "scale of each move")
	runCmd.Flags().Float64("end-at", 0, "position at which the world ends (0 = never)")
	runCmd.Flags().Bool("yaml", false, "dump the final tree as YAML to stdout")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logging.NopLogger()
	if cfg.Logging.Enabled {
		log, err = logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
	}
	defer log.Close()

	// The registered pooled backend starts out sized to the machine; the
	// config gets the final say as long as nothing has been spawned yet.
	if b, ok := crunch.LookupBackend(pooled.BackendName); ok {
		if pb, ok := b.(*pooled.Backend); ok {
			pb.SetSlots(int64(cfg.Crunching.PoolSlots))
		}
	}

	p, err := project.New(walk.New(), walk.Initial(),
		project.WithLogger(log),
		project.WithQueueCapacity(cfg.Crunching.QueueCapacity),
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	if cfg.Crunching.Backend != p.Manager().Backend() {
		if err := p.Manager().SetBackend(cfg.Crunching.Backend); err != nil {
			return fmt.Errorf("failed to select backend: %w", err)
		}
	}

	clockTarget, _ := cmd.Flags().GetFloat64("clock-target")
	step, _ := cmd.Flags().GetString("step")
	bias, _ := cmd.Flags().GetFloat64("bias")
	stepSize, _ := cmd.Flags().GetFloat64("step-size")
	endAt, _ := cmd.Flags().GetFloat64("end-at")

	kwargs := map[string]any{"bias": bias, "step_size": stepSize}
	if endAt != 0 {
		kwargs["end_at"] = endAt
	}
	var stepArgs []any
	if step != "" {
		stepArgs = []any{step}
	}

	job, err := p.BeginCrunching(p.Tree().Root(), clockTarget, stepArgs, kwargs)
	if err != nil {
		return err
	}

	p.Bus().Subscribe("backend.changed", func(ev event.Event) {
		if e, ok := ev.(event.BackendChangedEvent); ok {
			fmt.Fprintf(cmd.ErrOrStderr(), "switched backend: %s -> %s\n", e.OldBackend, e.NewBackend)
		}
	})

	backendCh := make(chan string, 1)
	var watcher *config.Watcher
	if file := viper.ConfigFileUsed(); file != "" {
		watcher, err = config.NewWatcher(file, func(c *config.Config) {
			select {
			case backendCh <- c.Crunching.Backend:
			default:
			}
		})
		if err != nil {
			log.Warn("config watching unavailable", "error", err)
			watcher = nil
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	// The watcher goroutine parks on ctx; make sure the sync driver
	// finishing releases it.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		ticker := time.NewTicker(cfg.Crunching.SyncInterval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				p.Shutdown()
				return nil
			case name := <-backendCh:
				if name == p.Manager().Backend() {
					continue
				}
				if err := p.Manager().SetBackend(name); err != nil {
					log.Warn("backend switch rejected", "backend", name, "error", err)
				}
			case <-ticker.C:
				if _, err := p.Sync(); err != nil {
					p.Shutdown()
					return err
				}
				if len(p.Manager().Jobs()) == 0 {
					return nil
				}
			}
		}
	})

	if watcher != nil {
		g.Go(func() error {
			watcher.Start()
			<-ctx.Done()
			watcher.Stop()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	return report(cmd, p, job)
}

func report(cmd *cobra.Command, p *project.Project, job *crunch.Job) error {
	tr := p.Tree()
	tr.Lock.RLock()
	defer tr.Lock.RUnlock()

	deepest := 0.0
	for _, leaf := range tr.Leaves() {
		if leaf.Clock() > deepest {
			deepest = leaf.Clock()
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "crunched %d states, deepest clock %.1f\n", tr.Len()-1, deepest)
	if job.ResultedInEnd {
		fmt.Fprintln(cmd.OutOrStdout(), "the world ended")
	}

	if dump, _ := cmd.Flags().GetBool("yaml"); dump {
		out, err := yaml.Marshal(tr.Root().Snapshot())
		if err != nil {
			return fmt.Errorf("failed to encode tree: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
	}
	return nil
}
