// Package fixedrate implements the passthrough balancer: the bitrate is
// pinned at init time and every telemetry sample is echoed back unmodified.
// Grounded on the original src/core/balancer_fixed.c.
package fixedrate

import "github.com/ceralive/ceracoder/pkg/balancer"

const (
	name        = "fixed"
	description = "Fixed bitrate, ignores telemetry"
)

type state struct {
	bitrate int64
}

// Algorithm returns the fixed/passthrough balancer.Algorithm.
func Algorithm() balancer.Algorithm { return fixedAlgorithm{} }

type fixedAlgorithm struct{}

func (fixedAlgorithm) Name() string        { return name }
func (fixedAlgorithm) Description() string { return description }

func (fixedAlgorithm) Init(cfg balancer.Config) (balancer.State, error) {
	return &state{bitrate: balancer.RoundDownTo100Kbps(cfg.MaxBitrate)}, nil
}

func (fixedAlgorithm) Cleanup(balancer.State) {}

// Step ignores every field of sample except those it echoes straight
// through for overlay/metrics display; the bitrate never moves.
func (fixedAlgorithm) Step(st balancer.State, sample balancer.Sample) balancer.Output {
	s := st.(*state)
	return balancer.Output{
		NewBitrate: s.bitrate,
		RTT:        int64(sample.RTTMillis),
		BS:         sample.BufferSize,
	}
}
