// Package runner owns a single balancer algorithm instance across the
// lifetime of a streaming session: resolving which algorithm to run,
// driving its Step calls, and handling hot bound updates by
// cleanup-then-reinit. Grounded on the original src/core/balancer_runner.c.
package runner

import (
	"fmt"

	"github.com/ceralive/ceracoder/pkg/balancer"
	"github.com/ceralive/ceracoder/pkg/balancer/registry"
)

// Runner binds a resolved balancer.Algorithm to its opaque State and
// forwards Step/UpdateBounds calls to it. A Runner is not safe for
// concurrent use; the control loop owns it from a single goroutine.
type Runner struct {
	reg   *registry.Registry
	algo  balancer.Algorithm
	state balancer.State
	cfg   balancer.Config
}

// New resolves the balancer algorithm to run and initializes it.
//
// Resolution order: override (if non-empty) must name a registered
// algorithm or New fails — an operator-requested override that doesn't
// exist is a configuration error, not something to silently fall back
// from. Otherwise configuredName is used if valid; an
// invalid or empty configured name falls back to the registry default.
func New(reg *registry.Registry, override string, cfg balancer.Config, configuredName string) (*Runner, error) {
	algo, err := resolve(reg, override, configuredName)
	if err != nil {
		return nil, err
	}

	state, err := algo.Init(cfg)
	if err != nil {
		return nil, fmt.Errorf("runner: init %q: %w", algo.Name(), err)
	}

	return &Runner{reg: reg, algo: algo, state: state, cfg: cfg}, nil
}

func resolve(reg *registry.Registry, override, configuredName string) (balancer.Algorithm, error) {
	if override != "" {
		algo, ok := reg.Find(override)
		if !ok {
			return nil, fmt.Errorf("runner: unknown balancer override %q", override)
		}
		return algo, nil
	}

	if configuredName != "" {
		if algo, ok := reg.Find(configuredName); ok {
			return algo, nil
		}
	}

	algo := reg.Default()
	if algo == nil {
		return nil, fmt.Errorf("runner: no default balancer registered")
	}
	return algo, nil
}

// Name returns the active algorithm's name, or "none" if the runner has
// no algorithm bound (mirrors runner_get_name's behavior on a NULL algo).
func (r *Runner) Name() string {
	if r == nil || r.algo == nil {
		return "none"
	}
	return r.algo.Name()
}

// Step forwards one telemetry sample to the active algorithm.
func (r *Runner) Step(sample balancer.Sample) balancer.Output {
	return r.algo.Step(r.state, sample)
}

// UpdateBounds replaces the min/max bitrate bounds and reinitializes the
// algorithm. This is an intentional state reset, not an in-place patch:
// the original runner_update_bounds calls cleanup then init rather than
// mutating live state, so a bound change can't leave stale EMAs from the
// previous bounds influencing the next decision.
func (r *Runner) UpdateBounds(minBitrate, maxBitrate int64) error {
	r.algo.Cleanup(r.state)

	r.cfg.MinBitrate = minBitrate
	r.cfg.MaxBitrate = maxBitrate

	state, err := r.algo.Init(r.cfg)
	if err != nil {
		return fmt.Errorf("runner: reinit %q after bound update: %w", r.algo.Name(), err)
	}
	r.state = state
	return nil
}

// Cleanup releases the active algorithm's state. Safe to call once at
// shutdown; not safe to call twice.
func (r *Runner) Cleanup() {
	r.algo.Cleanup(r.state)
}
