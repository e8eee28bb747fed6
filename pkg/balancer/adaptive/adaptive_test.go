package adaptive

import (
	"testing"

	"github.com/ceralive/ceracoder/pkg/balancer"
)

func baseConfig() balancer.Config {
	return balancer.Config{
		MinBitrate:   300_000,
		MaxBitrate:   6_000_000,
		SRTLatencyMS: 2000,
		SRTPktSize:   1316,
	}
}

func goodSample(ts uint64) balancer.Sample {
	return balancer.Sample{
		TimestampMS:  ts,
		RTTMillis:    20,
		BufferSize:   2,
		SendRateMbps: 5,
	}
}

func TestStepNeverFails(t *testing.T) {
	algo := Algorithm()
	st, err := algo.Init(baseConfig())
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	out := algo.Step(st, goodSample(0))
	if out.NewBitrate < 0 {
		t.Fatalf("negative bitrate: %d", out.NewBitrate)
	}
}

func TestBitrateStaysWithinBounds(t *testing.T) {
	algo := Algorithm()
	cfg := baseConfig()
	st, _ := algo.Init(cfg)

	ts := uint64(0)
	for i := 0; i < 500; i++ {
		ts += 20
		out := algo.Step(st, goodSample(ts))
		if out.NewBitrate < cfg.MinBitrate-100_000 || out.NewBitrate > cfg.MaxBitrate {
			t.Fatalf("bitrate %d out of bounds [%d,%d] at tick %d", out.NewBitrate, cfg.MinBitrate, cfg.MaxBitrate, i)
		}
	}
}

// Scenario 1: sustained good network conditions climb toward (and clamp at)
// the configured max bitrate.
func TestClimbsToMaxUnderGoodConditions(t *testing.T) {
	algo := Algorithm()
	cfg := baseConfig()
	cfg.MaxBitrate = 2_000_000
	st, _ := algo.Init(cfg)

	var last balancer.Output
	ts := uint64(0)
	for i := 0; i < 4000; i++ {
		ts += 20
		last = algo.Step(st, goodSample(ts))
	}
	if last.NewBitrate != balancer.RoundDownTo100Kbps(cfg.MaxBitrate) {
		t.Fatalf("expected climb to max %d, got %d", cfg.MaxBitrate, last.NewBitrate)
	}
}

// Scenario 2: a single tick with RTT at/above latency/3 drops straight to
// min, regardless of current bitrate, bypassing rate limiting.
func TestEmergencyDropsToMin(t *testing.T) {
	algo := Algorithm()
	cfg := baseConfig()
	st, _ := algo.Init(cfg)

	// Warm up at max bitrate.
	ts := uint64(0)
	out := algo.Step(st, goodSample(ts))
	if out.NewBitrate == cfg.MinBitrate {
		t.Skip("unexpected min on first tick")
	}

	ts += 20
	bad := balancer.Sample{
		TimestampMS:  ts,
		RTTMillis:    float64(cfg.SRTLatencyMS)/3 + 10,
		BufferSize:   0,
		SendRateMbps: 5,
	}
	out = algo.Step(st, bad)
	if out.NewBitrate != balancer.RoundDownTo100Kbps(cfg.MinBitrate) {
		t.Fatalf("expected emergency drop to min %d, got %d", cfg.MinBitrate, out.NewBitrate)
	}
}

// Scenario 3: loss-only congestion (no RTT/buffer signal) still triggers the
// heavy-congestion decrease once the loss rate EMA crosses 0.5.
func TestLossOnlyCongestionTriggersDecrease(t *testing.T) {
	algo := Algorithm()
	cfg := baseConfig()
	st, _ := algo.Init(cfg)

	ts := uint64(0)
	var before, after balancer.Output
	for i := 0; i < 50; i++ {
		ts += 20
		before = algo.Step(st, goodSample(ts))
	}

	lossy := balancer.Sample{
		TimestampMS:     ts,
		RTTMillis:       20,
		BufferSize:      2,
		SendRateMbps:    5,
		PktLossTotal:    0,
		PktRetransTotal: 0,
	}
	// Drive the loss EMA above 0.5 over several ticks of continuous loss.
	for i := 0; i < 30; i++ {
		ts += 20
		lossy.TimestampMS = ts
		lossy.PktLossTotal += 50
		after = algo.Step(st, lossy)
	}

	if after.NewBitrate >= before.NewBitrate {
		t.Fatalf("expected bitrate to decrease under sustained loss: before=%d after=%d", before.NewBitrate, after.NewBitrate)
	}
}

func TestRateLimitingBlocksImmediateReincrease(t *testing.T) {
	algo := Algorithm()
	cfg := baseConfig()
	st, _ := algo.Init(cfg)

	ts := uint64(0)
	for i := 0; i < 10; i++ {
		ts += 20
		algo.Step(st, goodSample(ts))
	}

	ts += 20
	heavy := balancer.Sample{TimestampMS: ts, RTTMillis: 500, BufferSize: 0, SendRateMbps: 5}
	afterDecr := algo.Step(st, heavy)

	ts += 20
	afterNext := algo.Step(st, goodSample(ts))

	if afterNext.NewBitrate != afterDecr.NewBitrate {
		t.Fatalf("bitrate should neither re-increase nor decrease again immediately after a decrease: %d -> %d", afterDecr.NewBitrate, afterNext.NewBitrate)
	}
}
