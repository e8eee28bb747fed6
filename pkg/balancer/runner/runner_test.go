package runner

import (
	"testing"

	"github.com/ceralive/ceracoder/pkg/balancer"
	"github.com/ceralive/ceracoder/pkg/balancer/registry"
)

func TestResolvesConfiguredName(t *testing.T) {
	reg := registry.Standard()
	r, err := New(reg, "", balancer.Config{MinBitrate: 300_000, MaxBitrate: 1_000_000}, "aimd")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.Name() != "aimd" {
		t.Fatalf("expected aimd, got %s", r.Name())
	}
}

func TestOverrideWinsOverConfiguredName(t *testing.T) {
	reg := registry.Standard()
	r, err := New(reg, "fixed", balancer.Config{MinBitrate: 300_000, MaxBitrate: 1_000_000}, "aimd")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.Name() != "fixed" {
		t.Fatalf("expected fixed, got %s", r.Name())
	}
}

func TestUnknownOverrideFails(t *testing.T) {
	reg := registry.Standard()
	_, err := New(reg, "nonexistent", balancer.Config{MaxBitrate: 1_000_000}, "adaptive")
	if err == nil {
		t.Fatal("expected error for unknown override")
	}
}

func TestInvalidConfiguredNameFallsBackToDefault(t *testing.T) {
	reg := registry.Standard()
	r, err := New(reg, "", balancer.Config{MaxBitrate: 1_000_000}, "not-a-real-balancer")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if r.Name() != reg.Default().Name() {
		t.Fatalf("expected default %s, got %s", reg.Default().Name(), r.Name())
	}
}

func TestUpdateBoundsResetsState(t *testing.T) {
	reg := registry.Standard()
	r, err := New(reg, "fixed", balancer.Config{MinBitrate: 300_000, MaxBitrate: 1_000_000}, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out := r.Step(balancer.Sample{})
	if out.NewBitrate != 1_000_000 {
		t.Fatalf("expected 1000000, got %d", out.NewBitrate)
	}

	if err := r.UpdateBounds(300_000, 2_000_000); err != nil {
		t.Fatalf("UpdateBounds: %v", err)
	}

	out = r.Step(balancer.Sample{})
	if out.NewBitrate != 2_000_000 {
		t.Fatalf("expected 2000000 after bound update, got %d", out.NewBitrate)
	}
}

func TestNameOnNilRunner(t *testing.T) {
	var r *Runner
	if r.Name() != "none" {
		t.Fatalf("expected none, got %s", r.Name())
	}
}
