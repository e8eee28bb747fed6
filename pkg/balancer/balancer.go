// Package balancer defines the pluggable balancer algorithm contract:
// name, init, step, cleanup. Each algorithm family (adaptive, aimd,
// fixedrate) implements Algorithm against this contract; the registry
// and runner packages only ever see this interface.
package balancer

// Config is the resolved, bps/ms configuration handed to Algorithm.Init.
// All bitrate fields are bits per second; the kbit/s <-> bit/s conversion
// happens once, in pkg/config, before this struct is built.
type Config struct {
	MinBitrate int64 // bps
	MaxBitrate int64 // bps

	SRTLatencyMS int   // ms
	SRTPktSize   int   // bytes

	// Adaptive tuning. Zero means "use the algorithm's default".
	AdaptiveIncrStep     int64 // bps
	AdaptiveDecrStep     int64 // bps
	AdaptiveIncrInterval int64 // ms
	AdaptiveDecrInterval int64 // ms

	// AIMD tuning. Zero means "use the algorithm's default".
	AIMDIncrStep     int64   // bps
	AIMDDecrMult     float64 // (0, 1)
	AIMDIncrInterval int64   // ms
	AIMDDecrInterval int64   // ms
}

// Sample is one telemetry observation, presented to Algorithm.Step once per
// control-loop tick. Timestamps are monotonically non-decreasing within a
// session; cumulative counters are monotonically non-decreasing within a
// session (a fresh session may start lower than a previous one ended).
type Sample struct {
	TimestampMS     uint64
	RTTMillis       float64
	BufferSize      int64 // outstanding unacknowledged packets
	SendRateMbps    float64
	PktLossTotal    int64 // cumulative
	PktRetransTotal int64 // cumulative
}

// Output is everything a Step call produces: the decision plus the
// observability fields the overlay and metrics exporter display.
type Output struct {
	NewBitrate int64 // bps, rounded down to a 100 kbit/s multiple

	Throughput float64 // smoothed send rate in units of 1024 bit/s (Mbps * 1e6 / 1024)
	RTT        int64   // ms, integer

	RTTThMin int64
	RTTThMax int64

	BS     int64
	BSTh1  int64
	BSTh2  int64
	BSTh3  int64
}

// State is the opaque per-session handle an algorithm hands back to its own
// Step/Cleanup. The runner never inspects it.
type State any

// Algorithm is the fixed lifecycle contract every balancer implements.
// Init must not perform I/O. Step must be pure with respect to external
// side effects and total: it must never fail, never panic, and never
// suspend. Cleanup must be safe to call on a nil State.
type Algorithm interface {
	Name() string
	Description() string
	Init(cfg Config) (State, error)
	Step(state State, sample Sample) Output
	Cleanup(state State)
}

// RoundDownTo100Kbps publishes the rounding rule shared by every
// algorithm: internal bitrate state stays unrounded so that repeated small
// increments aggregate without decay; only the published value is rounded.
func RoundDownTo100Kbps(bps int64) int64 {
	const step = 100_000
	return bps - (bps % step)
}
