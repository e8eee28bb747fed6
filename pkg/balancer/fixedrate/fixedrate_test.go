package fixedrate

import (
	"testing"

	"github.com/ceralive/ceracoder/pkg/balancer"
)

// Scenario 6: output is independent of the telemetry sample — only the
// init-time max bitrate (rounded down) matters.
func TestOutputIndependentOfSample(t *testing.T) {
	algo := Algorithm()
	cfg := balancer.Config{MinBitrate: 300_000, MaxBitrate: 6_050_000}
	st, err := algo.Init(cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	want := balancer.RoundDownTo100Kbps(cfg.MaxBitrate)

	samples := []balancer.Sample{
		{TimestampMS: 0, RTTMillis: 0, BufferSize: 0},
		{TimestampMS: 1000, RTTMillis: 9999, BufferSize: 99999, PktLossTotal: 1_000_000},
		{TimestampMS: 2000, RTTMillis: 1, BufferSize: 1},
	}
	for _, sample := range samples {
		out := algo.Step(st, sample)
		if out.NewBitrate != want {
			t.Fatalf("expected fixed bitrate %d, got %d for sample %+v", want, out.NewBitrate, sample)
		}
	}
}

func TestRoundsDownAtInit(t *testing.T) {
	algo := Algorithm()
	st, _ := algo.Init(balancer.Config{MaxBitrate: 6_099_999})
	out := algo.Step(st, balancer.Sample{})
	if out.NewBitrate != 6_000_000 {
		t.Fatalf("expected rounded-down 6000000, got %d", out.NewBitrate)
	}
}
