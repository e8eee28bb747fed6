package aimd

import (
	"testing"

	"github.com/ceralive/ceracoder/pkg/balancer"
)

func baseConfig() balancer.Config {
	return balancer.Config{
		MinBitrate:   300_000,
		MaxBitrate:   6_000_000,
		SRTLatencyMS: 2000,
	}
}

func TestStepNeverFails(t *testing.T) {
	algo := Algorithm()
	st, err := algo.Init(baseConfig())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	out := algo.Step(st, balancer.Sample{TimestampMS: 0, RTTMillis: 20, BufferSize: 1})
	if out.NewBitrate < 0 {
		t.Fatalf("negative bitrate: %d", out.NewBitrate)
	}
}

// Scenario 4: sustained low, stable RTT and buffer occupancy climb
// arithmetically (by incrStep per incrInterval) toward max.
func TestArithmeticIncreaseClimbsToMax(t *testing.T) {
	algo := Algorithm()
	cfg := baseConfig()
	cfg.MaxBitrate = 1_000_000
	cfg.MinBitrate = 300_000
	st, _ := algo.Init(cfg)

	ts := uint64(0)
	var last balancer.Output
	for i := 0; i < 2000; i++ {
		ts += 20
		last = algo.Step(st, balancer.Sample{TimestampMS: ts, RTTMillis: 10, BufferSize: 1})
	}
	if last.NewBitrate != balancer.RoundDownTo100Kbps(cfg.MaxBitrate) {
		t.Fatalf("expected climb to max %d, got %d", cfg.MaxBitrate, last.NewBitrate)
	}
}

// Scenario 5: once the link is congested, repeated decreases are
// multiplicative: B_k = B_0 * decrMult^k (before rounding/clamping).
func TestMultiplicativeDecrease(t *testing.T) {
	algo := Algorithm()
	cfg := baseConfig()
	cfg.MaxBitrate = 6_000_000
	cfg.MinBitrate = 100
	cfg.AIMDDecrInterval = 200
	st, _ := algo.Init(cfg)

	ts := uint64(0)
	congestedSample := func(ts uint64) balancer.Sample {
		return balancer.Sample{TimestampMS: ts, RTTMillis: 20, BufferSize: 200}
	}

	// RTT (20) stays below latency/3 (666), so the emergency path never
	// fires; the buffer above the fixed 100-packet threshold marks every
	// tick congested, so each tick takes the decr_interval-gated
	// multiplicative path. The first tick decreases from max.
	algo.Step(st, congestedSample(ts))

	var prev, cur balancer.Output
	ts += 200
	prev = algo.Step(st, congestedSample(ts))
	ts += 200
	cur = algo.Step(st, congestedSample(ts))

	if cur.NewBitrate > prev.NewBitrate {
		t.Fatalf("expected non-increasing bitrate under sustained congestion: %d -> %d", prev.NewBitrate, cur.NewBitrate)
	}
	wantPrev := balancer.RoundDownTo100Kbps(int64(float64(cfg.MaxBitrate) * defDecrMult * defDecrMult))
	wantCur := balancer.RoundDownTo100Kbps(int64(float64(cfg.MaxBitrate) * defDecrMult * defDecrMult * defDecrMult))
	if prev.NewBitrate != wantPrev || cur.NewBitrate != wantCur {
		t.Fatalf("expected geometric decrease %d, %d; got %d, %d", wantPrev, wantCur, prev.NewBitrate, cur.NewBitrate)
	}
}

// A drop in RTT below the current baseline must snap the baseline
// immediately rather than creep down via EMA, so congestion recovery
// isn't held back by a stale, inflated threshold.
func TestRTTBaselineSnapsDownImmediately(t *testing.T) {
	algo := Algorithm()
	cfg := baseConfig()
	st, _ := algo.Init(cfg)

	ts := uint64(0)
	algo.Step(st, balancer.Sample{TimestampMS: ts, RTTMillis: 100, BufferSize: 1})

	ts += 20
	up := algo.Step(st, balancer.Sample{TimestampMS: ts, RTTMillis: 200, BufferSize: 1})
	wantBaselineUp := 100*baselineEMAUp + 200*(1-baselineEMAUp)
	wantThresholdUp := int64(wantBaselineUp * rttMult)
	if up.RTTThMax != wantThresholdUp {
		t.Fatalf("expected slow upward EMA blend on baseline (threshold %d), got RTTThMax=%d", wantThresholdUp, up.RTTThMax)
	}

	ts += 20
	down := algo.Step(st, balancer.Sample{TimestampMS: ts, RTTMillis: 50, BufferSize: 1})
	wantThreshold := int64(50 * rttMult)
	if down.RTTThMax != wantThreshold {
		t.Fatalf("expected baseline to snap to 50 (threshold %d), got RTTThMax=%d", wantThreshold, down.RTTThMax)
	}
}

func TestRespectsBounds(t *testing.T) {
	algo := Algorithm()
	cfg := baseConfig()
	st, _ := algo.Init(cfg)

	ts := uint64(0)
	for i := 0; i < 1000; i++ {
		ts += 20
		out := algo.Step(st, balancer.Sample{TimestampMS: ts, RTTMillis: 5000, BufferSize: 200})
		if out.NewBitrate < cfg.MinBitrate-100_000 {
			t.Fatalf("bitrate %d below min %d", out.NewBitrate, cfg.MinBitrate)
		}
	}
}
