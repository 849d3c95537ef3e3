// Package config holds the exploration parameters for one test-engine run,
// generalized from HildaM-scaled-mcp's pkg/config server configuration:
// a plain JSON-tagged struct with a DefaultConfig constructor, loadable
// from either flags (cmd/coyotetest) or environment variables (CI).
package config

import (
	"os"
	"strconv"
	"time"
)

// StrategyName selects which runtime/strategy implementation to explore
// with.
type StrategyName string

const (
	StrategyRandom        StrategyName = "random"
	StrategyProbabilistic StrategyName = "probabilistic"
	StrategyPriority      StrategyName = "priority"
	StrategyDFS           StrategyName = "dfs"
	StrategyReplay        StrategyName = "replay"
)

// RunConfig bounds one test-engine invocation: how many iterations to run,
// which strategy drives them, and the per-iteration limits that turn an
// unbounded exploration into one that terminates.
type RunConfig struct {
	// Iterations is how many independent schedules to explore.
	Iterations int `json:"iterations"`

	// Strategy names the exploration policy.
	Strategy StrategyName `json:"strategy"`

	// Seed seeds the strategy's pseudo-random source; iteration i runs
	// under Seed+i. Zero is used as given, like any other seed; no seed is
	// derived from the clock.
	Seed uint64 `json:"seed"`

	// ProbabilisticBias is the probability, in [0, 1], that the
	// probabilistic strategy re-runs the most-recently-chosen operation.
	ProbabilisticBias float64 `json:"probabilistic_bias"`

	// PriorityReshuffle is how many steps pass between priority reshuffles
	// for the priority strategy; zero disables reshuffling (unfair).
	PriorityReshuffle int `json:"priority_reshuffle"`

	// MaxDepth bounds the DFS strategy's exploration depth.
	MaxDepth int `json:"max_depth"`

	// MaxSteps bounds the total scheduling decisions made in one iteration
	// before it is abandoned as inconclusive.
	MaxSteps int `json:"max_steps"`

	// LivenessThreshold is T_live: the number of fair steps a monitor may
	// stay hot before a liveness violation is reported.
	LivenessThreshold int `json:"liveness_threshold"`

	// FailFast stops the run at the first iteration that finds a bug.
	FailFast bool `json:"fail_fast"`

	// ReplayFile names a previously recorded trace file. The test engine
	// does not read this field: a replay is set up with
	// testengine.Engine.WithReplay, which cmd/coyotetest calls for its
	// --replay-file flag.
	ReplayFile string `json:"replay_file"`

	// IterationTimeout is a wall-clock limit per iteration. It is carried
	// in the configuration only; the test engine does not enforce it.
	IterationTimeout time.Duration `json:"iteration_timeout"`
}

// DefaultConfig returns the configuration the CLI falls back to when no
// flags override it.
func DefaultConfig() *RunConfig {
	return &RunConfig{
		Iterations:         100,
		Strategy:           StrategyRandom,
		ProbabilisticBias:  0.5,
		PriorityReshuffle:  10,
		MaxDepth:           10000,
		MaxSteps:           10000,
		LivenessThreshold:  10000,
		FailFast:           true,
		IterationTimeout:   30 * time.Second,
	}
}

// TestConfig returns a configuration suitable for a single, quick, seeded
// run inside a unit test.
func TestConfig() *RunConfig {
	cfg := DefaultConfig()
	cfg.Iterations = 20
	cfg.Seed = 1
	cfg.MaxSteps = 2000
	cfg.LivenessThreshold = 2000
	return cfg
}

// FromEnv overlays environment variables onto cfg, for CI invocations that
// do not go through the cmd/coyotetest flag surface: SEED, ITERATIONS,
// STRATEGY, MAX_STEPS, LIVENESS_THRESHOLD and its short form LIVENESS_T
// (LIVENESS_T wins when both are set).
func FromEnv(cfg *RunConfig) *RunConfig {
	if v, ok := os.LookupEnv("SEED"); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Seed = n
		}
	}
	if v, ok := os.LookupEnv("ITERATIONS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Iterations = n
		}
	}
	if v, ok := os.LookupEnv("STRATEGY"); ok {
		cfg.Strategy = StrategyName(v)
	}
	if v, ok := os.LookupEnv("MAX_STEPS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxSteps = n
		}
	}
	if v, ok := os.LookupEnv("LIVENESS_THRESHOLD"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LivenessThreshold = n
		}
	}
	if v, ok := os.LookupEnv("LIVENESS_T"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LivenessThreshold = n
		}
	}
	return cfg
}
