// Package aimd implements a classic additive-increase / multiplicative-
// decrease balancer: a simpler, TCP-style alternative to the adaptive
// algorithm, grounded on the original src/core/balancer_aimd.c.
package aimd

import "github.com/ceralive/ceracoder/pkg/balancer"

const (
	name        = "aimd"
	description = "Additive-increase / multiplicative-decrease control"

	defIncrStep     int64   = 50_000 // bps
	defDecrMult     float64 = 0.75
	defIncrInterval int64   = 500 // ms
	defDecrInterval int64   = 200 // ms

	// rttMult scales the EMA baseline RTT into the congestion threshold.
	rttMult = 1.5

	// baselineEMAUp is the weight kept on the stale baseline when RTT
	// drifts upward, so a transient spike doesn't drag the floor up in
	// one tick. A drop below the current baseline snaps immediately
	// instead of blending, so congestion recovery isn't held back by a
	// stale, inflated threshold.
	baselineEMAUp = 0.95

	// bsThreshold is the fixed, non-configurable outstanding-packet
	// count above which the link is considered congested.
	bsThreshold = 100
)

type state struct {
	minBitrate int64
	maxBitrate int64
	srtLatency int64

	incrStep     int64
	decrMult     float64
	incrInterval int64
	decrInterval int64

	curBitrate   float64
	rttBaseline  float64
	baselineSeen bool

	nextIncrTS int64
	nextDecrTS int64
}

// Algorithm returns the aimd balancer.Algorithm.
func Algorithm() balancer.Algorithm { return aimdAlgorithm{} }

type aimdAlgorithm struct{}

func (aimdAlgorithm) Name() string        { return name }
func (aimdAlgorithm) Description() string { return description }

func (aimdAlgorithm) Init(cfg balancer.Config) (balancer.State, error) {
	s := &state{
		minBitrate: cfg.MinBitrate,
		maxBitrate: cfg.MaxBitrate,
		srtLatency: int64(cfg.SRTLatencyMS),

		incrStep:     orDefaultInt(cfg.AIMDIncrStep, defIncrStep),
		decrMult:     orDefaultFloat(cfg.AIMDDecrMult, defDecrMult),
		incrInterval: orDefaultInt(cfg.AIMDIncrInterval, defIncrInterval),
		decrInterval: orDefaultInt(cfg.AIMDDecrInterval, defDecrInterval),

		curBitrate: float64(cfg.MaxBitrate),
	}
	return s, nil
}

func orDefaultInt(v, def int64) int64 {
	if v > 0 {
		return v
	}
	return def
}

func orDefaultFloat(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}

func (aimdAlgorithm) Cleanup(balancer.State) {}

func (aimdAlgorithm) Step(st balancer.State, sample balancer.Sample) balancer.Output {
	s := st.(*state)

	now := int64(sample.TimestampMS)
	rtt := sample.RTTMillis
	rttInt := int64(rtt)
	bs := sample.BufferSize

	if !s.baselineSeen {
		s.rttBaseline = rtt
		s.baselineSeen = true
	} else if rtt < s.rttBaseline {
		s.rttBaseline = rtt
	} else {
		s.rttBaseline = s.rttBaseline*baselineEMAUp + rtt*(1-baselineEMAUp)
	}

	rttThreshold := int64(s.rttBaseline * rttMult)
	congested := rttInt > rttThreshold || bs > bsThreshold

	bitrate := s.curBitrate

	switch {
	case bitrate > float64(s.minBitrate) && rttInt >= s.srtLatency/3:
		bitrate = float64(s.minBitrate)
		s.nextDecrTS = now + s.decrInterval
		congested = true

	case congested && now >= s.nextDecrTS:
		bitrate *= s.decrMult
		s.nextDecrTS = now + s.decrInterval

	case !congested && now >= s.nextIncrTS:
		bitrate += float64(s.incrStep)
		s.nextIncrTS = now + s.incrInterval
	}

	if bitrate < float64(s.minBitrate) {
		bitrate = float64(s.minBitrate)
	}
	if bitrate > float64(s.maxBitrate) {
		bitrate = float64(s.maxBitrate)
	}
	s.curBitrate = bitrate

	return balancer.Output{
		NewBitrate: balancer.RoundDownTo100Kbps(int64(bitrate)),
		RTT:        rttInt,
		RTTThMax:   rttThreshold,
		BS:         bs,
		BSTh2:      bsThreshold,
	}
}
