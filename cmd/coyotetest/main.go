// Command coyotetest is the test-engine CLI of spec.md §6: it runs one of
// the registered seed scenarios under a configurable exploration strategy
// and reports the outcome via process exit code, the way `go test` reports
// pass/fail — 0 clean, 1 a bug was found, 2 inconclusive (step bound hit),
// 3 a configuration/harness error.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/microsoft/coyote-sub017/internal/dashboard"
	"github.com/microsoft/coyote-sub017/internal/rtlog"
	"github.com/microsoft/coyote-sub017/runtime/config"
	"github.com/microsoft/coyote-sub017/runtime/testengine"
	"github.com/microsoft/coyote-sub017/runtime/trace"
)

func main() {
	app := &cli.App{
		Name:  "coyotetest",
		Usage: "explore the schedules of a registered actor test program",
		Commands: []*cli.Command{
			runCmd(),
			listCmd(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(3)
	}
}

func listCmd() *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "list the registered scenario names",
		Action: func(c *cli.Context) error {
			for _, name := range names() {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "explore a scenario's schedules",
		ArgsUsage: "<scenario>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "iterations", Value: 100, Usage: "number of schedules to explore"},
			&cli.StringFlag{Name: "strategy", Value: string(config.StrategyRandom), Usage: "random|probabilistic|priority|dfs|replay"},
			&cli.Uint64Flag{Name: "seed", Value: 0, Usage: "exploration seed; iteration i runs under seed+i"},
			&cli.Float64Flag{Name: "probabilistic-bias", Value: 0.5, Usage: "probabilistic strategy bias in [0,1]"},
			&cli.IntFlag{Name: "priority-reshuffle", Value: 10, Usage: "priority strategy reshuffle period"},
			&cli.IntFlag{Name: "max-depth", Value: 10000, Usage: "dfs strategy depth bound"},
			&cli.IntFlag{Name: "max-steps", Value: 10000, Usage: "per-iteration scheduling step bound"},
			&cli.IntFlag{Name: "liveness-threshold", Value: 10000, Usage: "fair hot-state steps before a liveness bug"},
			&cli.BoolFlag{Name: "fail-on-first", Value: true, Usage: "stop exploring at the first bug found"},
			&cli.StringFlag{Name: "replay-file", Usage: "replay a previously recorded trace instead of exploring"},
			&cli.StringFlag{Name: "dashboard-addr", Usage: "serve a live progress dashboard on this address (e.g. :8090) while running"},
		},
		Action: func(c *cli.Context) error {
			scenarioName := c.Args().First()
			fn, ok := lookup(scenarioName)
			if !ok {
				return fmt.Errorf("unknown scenario %q; run `coyotetest list` to see the registry", scenarioName)
			}

			cfg := &config.RunConfig{
				Iterations:        c.Int("iterations"),
				Strategy:          config.StrategyName(c.String("strategy")),
				Seed:              c.Uint64("seed"),
				ProbabilisticBias: c.Float64("probabilistic-bias"),
				PriorityReshuffle: c.Int("priority-reshuffle"),
				MaxDepth:          c.Int("max-depth"),
				MaxSteps:          c.Int("max-steps"),
				LivenessThreshold: c.Int("liveness-threshold"),
				FailFast:          c.Bool("fail-on-first"),
			}
			cfg = config.FromEnv(cfg)

			if cfg.Strategy == config.StrategyReplay && c.String("replay-file") == "" {
				return fmt.Errorf("--strategy replay requires --replay-file")
			}

			engine := testengine.New(cfg, rtlog.Default)

			if addr := c.String("dashboard-addr"); addr != "" {
				d := dashboard.New()
				engine = engine.WithObserver(d.Observer())
				srv := &http.Server{Addr: addr, Handler: d.Router([]string{"*"})}
				go func() {
					if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						fmt.Fprintf(os.Stderr, "dashboard server: %v\n", err)
					}
				}()
				fmt.Fprintf(os.Stderr, "dashboard listening on %s (GET /events, /health)\n", addr)
				defer srv.Close()
			}

			if rf := c.String("replay-file"); rf != "" {
				data, err := os.ReadFile(rf)
				if err != nil {
					return fmt.Errorf("read replay file: %w", err)
				}
				f, err := trace.Unmarshal(data)
				if err != nil {
					return err
				}
				engine = engine.WithReplay(f)
			}

			report := engine.Run(fn)
			fmt.Println(report.Summary())
			os.Exit(report.ExitCode())
			return nil
		},
	}
}
