// Package encoder defines the control-loop-facing contract for pushing a
// balancer decision into the live video encoder: set a bitrate, find out
// whether an encoder is even present in this pipeline. Grounded on the
// original src/gst/encoder_control.h.
package encoder

// Encoder is the bitrate-setting side of whatever element is actually
// encoding video; everything about how that element encodes is out of
// scope here — this interface only ever pushes a bps value at it.
type Encoder interface {
	// Available reports whether a controllable encoder element was
	// found. The control loop must still call SetBitrate on an
	// unavailable Encoder; implementations must treat that as a no-op.
	Available() bool

	// SetBitrate pushes a new target bitrate, in bits per second.
	// Implementations must be edge-triggered: a call with the same
	// value as the last applied one must not touch the underlying
	// element again.
	SetBitrate(bps int64)

	// CurrentBitrate returns the last bitrate actually applied.
	CurrentBitrate() int64
}

// Noop is an Encoder that never finds an element to control. It exists so
// the control loop can run (and be tested) against a pipeline with no
// encoder, e.g. when the pipeline description doesn't expose one.
type Noop struct{}

func (Noop) Available() bool  { return false }
func (Noop) SetBitrate(int64) {}

func (Noop) CurrentBitrate() int64 { return 0 }
