// Package controlloop drives the per-session state machine once a
// transport connection exists: tick telemetry through the balancer, push
// the decision to the encoder and overlay, apply bound reloads, watch for
// a stalled pipeline or a dead peer, and drain cleanly on shutdown or a
// fatal condition. A Loop reports Disconnected until Run starts it in
// Running; connecting happens in the caller before Run, and the loop
// never enters Connecting. Grounded on the original belacoder.c's
// main loop and g_timeout_add callbacks (connection_housekeeping,
// stall_check), translated from GLib timeouts into goroutines driven by
// an injectable clock.Clock so tests don't sleep in real time.
package controlloop

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	cclock "github.com/ceralive/ceracoder/pkg/clock"
	"github.com/ceralive/ceracoder/pkg/balancer"
	"github.com/ceralive/ceracoder/pkg/balancer/runner"
	"github.com/ceralive/ceracoder/pkg/encoder"
	"github.com/ceralive/ceracoder/pkg/metrics"
	"github.com/ceralive/ceracoder/pkg/overlay"
	"github.com/ceralive/ceracoder/pkg/transport"
)

// State is a control loop lifecycle stage.
type State int

const (
	Disconnected State = iota
	Connecting
	Running
	Reloading
	Draining
	Terminated
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Running:
		return "running"
	case Reloading:
		return "reloading"
	case Draining:
		return "draining"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Timing constants, carried verbatim from the original belacoder.c.
const (
	TelemetryInterval = 20 * time.Millisecond
	StallPollInterval = 1 * time.Second
	ACKTimeout        = 6 * time.Second
	WatchdogTimeout   = 3 * time.Second
	ConnectRetryDelay = 500 * time.Millisecond
)

// ErrACKTimeout is returned when no ACK has been observed for
// ACKTimeout; the original treats this as a fatal, unrecoverable
// connection loss.
var ErrACKTimeout = errors.New("controlloop: no ACK observed within timeout, connection presumed dead")

// ErrPipelineStalled is returned when the injected PositionFunc reports
// the same position on two consecutive StallPollInterval ticks.
var ErrPipelineStalled = errors.New("controlloop: pipeline position has not advanced, presumed stalled")

// ErrWatchdog is returned when Draining does not complete within
// WatchdogTimeout; the original raises SIGALRM to force-exit here.
var ErrWatchdog = errors.New("controlloop: drain watchdog expired")

// ReloadFunc re-resolves the current configuration's bitrate bounds,
// e.g. by re-reading the legacy two-line bitrate file or the full config
// file. It is called once per accepted reload.
type ReloadFunc func() (minBitrate, maxBitrate int64, err error)

// PositionFunc reports the pipeline's current playback position, in
// arbitrary monotonically non-decreasing units, and whether the query
// succeeded. A nil PositionFunc disables stall detection entirely.
type PositionFunc func() (position int64, ok bool)

// Loop is one streaming session's control loop. It is not safe for
// concurrent use beyond the RequestReload/RequestStop/State methods, which are the
// only ones meant to be called from other goroutines (signal handlers,
// an admin endpoint).
type Loop struct {
	Runner   *runner.Runner
	Conn     transport.Conn
	Encoder  encoder.Encoder
	Overlay  overlay.Overlay
	Metrics  *metrics.Collector
	Clock    cclock.Clock
	Log      zerolog.Logger
	Reload   ReloadFunc
	Position PositionFunc

	reloadRequested atomic.Bool
	stopRequested   atomic.Bool

	state atomic.Int32
}

// RequestReload asks the loop to reload its bitrate bounds at the next
// stall-poll tick. Safe to call from a signal handler.
func (l *Loop) RequestReload() { l.reloadRequested.Store(true) }

// RequestStop asks the loop to begin draining. Safe to call from a signal
// handler.
func (l *Loop) RequestStop() { l.stopRequested.Store(true) }

// State returns the loop's current lifecycle stage.
func (l *Loop) State() State { return State(l.state.Load()) }

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
	l.Log.Info().Str("state", s.String()).Msg("ceracoder: state transition")
}

// Run drives the loop until ctx is canceled, RequestStop is observed at a
// stall-poll tick, the peer is presumed dead (ErrACKTimeout), or the
// pipeline stalls (ErrPipelineStalled); a drain that overruns its watchdog
// returns ErrWatchdog. A nil return means ctx was canceled or a stop was
// requested, and drain completed cleanly.
func (l *Loop) Run(ctx context.Context) error {
	l.setState(Running)
	defer l.setState(Terminated)

	telemetryTicker := l.Clock.NewTicker(TelemetryInterval)
	defer telemetryTicker.Stop()
	stallTicker := l.Clock.NewTicker(StallPollInterval)
	defer stallTicker.Stop()

	var lastPosition int64
	var havePosition bool
	var drainErr error

	for {
		select {
		case <-ctx.Done():
			return l.drain(nil)

		case <-telemetryTicker.C:
			if err := l.tick(); err != nil {
				return l.drain(err)
			}

		case <-stallTicker.C:
			if l.reloadRequested.Load() {
				l.reloadRequested.Store(false)
				if err := l.doReload(); err != nil {
					l.Log.Error().Err(err).Msg("ceracoder: reload failed, keeping previous bounds")
				}
			}

			if l.stopRequested.Load() {
				return l.drain(nil)
			}

			if l.Position != nil {
				pos, ok := l.Position()
				if ok {
					if havePosition && pos == lastPosition {
						drainErr = ErrPipelineStalled
					}
					lastPosition = pos
					havePosition = true
				}
			}
			if drainErr != nil {
				return l.drain(drainErr)
			}
		}
	}
}

func (l *Loop) tick() error {
	stats := l.Conn.Stats()

	if !stats.LastACKAt.IsZero() && l.Clock.Now().Sub(stats.LastACKAt) > ACKTimeout {
		return ErrACKTimeout
	}

	sample := balancer.Sample{
		TimestampMS:     l.Clock.NowMS(),
		RTTMillis:       stats.RTTMillis,
		BufferSize:      stats.BufferSize,
		SendRateMbps:    stats.SendRateMbps,
		PktLossTotal:    stats.PktLossTotal,
		PktRetransTotal: stats.PktRetransTotal,
	}

	out := l.Runner.Step(sample)

	if l.Encoder != nil {
		l.Encoder.SetBitrate(out.NewBitrate)
	}
	if l.Overlay != nil {
		l.Overlay.Update(out)
	}
	if l.Metrics != nil {
		l.Metrics.Observe(out)
	}
	return nil
}

func (l *Loop) doReload() error {
	if l.Reload == nil {
		return nil
	}
	l.setState(Reloading)
	defer l.setState(Running)

	minBitrate, maxBitrate, err := l.Reload()
	if err != nil {
		return fmt.Errorf("controlloop: reload: %w", err)
	}
	if err := l.Runner.UpdateBounds(minBitrate, maxBitrate); err != nil {
		return fmt.Errorf("controlloop: apply reloaded bounds: %w", err)
	}
	if l.Metrics != nil {
		l.Metrics.IncReload()
	}
	l.Log.Info().Int64("min_bitrate", minBitrate).Int64("max_bitrate", maxBitrate).Msg("ceracoder: reload applied")
	return nil
}

// drain transitions to Draining, closes the transport connection, and
// enforces the watchdog deadline. cause is the error that triggered the
// drain (nil for a clean shutdown); drain returns cause unless the
// watchdog itself expires first, in which case it returns ErrWatchdog.
func (l *Loop) drain(cause error) error {
	l.setState(Draining)
	if cause != nil {
		if l.Metrics != nil {
			l.Metrics.IncDrop()
		}
		l.Log.Warn().Err(cause).Msg("ceracoder: draining after error")
	} else {
		l.Log.Info().Msg("ceracoder: draining for shutdown")
	}

	done := make(chan error, 1)
	go func() {
		done <- l.Conn.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			l.Log.Warn().Err(err).Msg("ceracoder: error closing transport during drain")
		}
		if cause != nil {
			return cause
		}
		return nil
	case <-l.Clock.After(WatchdogTimeout):
		return ErrWatchdog
	}
}
