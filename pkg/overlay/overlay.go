// Package overlay defines the on-screen text overlay the control loop
// updates every tick with the balancer's decision and diagnostic
// thresholds. Grounded on the original src/gst/overlay_ui.h.
package overlay

import (
	"fmt"

	"github.com/ceralive/ceracoder/pkg/balancer"
)

// Overlay renders one balancer.Output as on-screen text.
type Overlay interface {
	Available() bool
	Update(out balancer.Output)
}

// Format renders an Output the same way the original update_overlay did:
//
//	"  b: %5d/%5.0f rtt: %3d/%3d/%3d bs: %3d/%3d/%3d/%3d"
//
// with the current bitrate converted to kbit/s but throughput passed
// through unscaled, followed by RTT (current/th_min/th_max) and buffer
// size (current/th1/th2/th3).
func Format(out balancer.Output) string {
	return fmt.Sprintf("  b: %5d/%5.0f rtt: %3d/%3d/%3d bs: %3d/%3d/%3d/%3d",
		out.NewBitrate/1000, out.Throughput,
		out.RTT, out.RTTThMin, out.RTTThMax,
		out.BS, out.BSTh1, out.BSTh2, out.BSTh3)
}

// Noop is an Overlay that never finds an element to update.
type Noop struct{}

func (Noop) Available() bool        { return false }
func (Noop) Update(balancer.Output) {}
