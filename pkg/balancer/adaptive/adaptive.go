// Package adaptive implements the default balancer algorithm: RTT- and
// buffer-occupancy-based bitrate control with four decision tiers
// (emergency, heavy, light, stable), grounded on the original
// balancer_adaptive.c / bitrate_control.c.
package adaptive

import "github.com/ceralive/ceracoder/pkg/balancer"

const (
	name        = "adaptive"
	description = "RTT and buffer-based adaptive control (default)"

	// Defaults used when the corresponding config field is zero.
	defIncrStep     int64 = 30_000  // bps
	defDecrStep     int64 = 100_000 // bps
	defIncrInterval int64 = 500     // ms
	defDecrInterval int64 = 200     // ms

	fastDecrInterval int64 = 250 // ms, not configurable

	// EMA smoothing factors.
	emaSlow          = 0.99
	emaFast          = 0.01
	emaRTTDelta      = 0.8
	emaRTTDeltaNew   = 0.2
	emaThroughput    = 0.97
	emaThroughputNew = 0.03

	// RTT tracking.
	rttMinDrift   = 1.001
	rttIgnoreMS   = 100
	rttInitial    = 300
	rttMinInitial = 200.0

	// Threshold multipliers.
	bsTh3Mult       = 4.0
	bsTh2JitterMult = 3.0
	bsTh1JitterMult = 2.5
	bsThMin         = 50.0
	rttJitterMult   = 4.0
	rttAvgPercent   = 0.15
	rttStableDelta  = 0.01
	rttMinJitter    = 1.0

	// Packet-loss congestion detection.
	lossRateThreshold = 0.5
	emaLoss           = 0.9
	emaLossNew        = 0.1

	// Bitrate step scaling: decrease by decrStep + bitrate/decrScale,
	// increase by incrStep + bitrate/incrScale.
	decrScale int64 = 10
	incrScale int64 = 30
)

// state is the opaque per-session handle owned exclusively by this
// algorithm for the life of a balancer session.
type state struct {
	minBitrate int64
	maxBitrate int64
	srtLatency int64
	srtPktSize int64

	incrStep     int64
	decrStep     int64
	incrInterval int64
	decrInterval int64

	curBitrate int64

	bsAvg    float64
	bsJitter float64
	prevBS   int64

	rttAvg      float64
	rttMin      float64
	rttJitter   float64
	rttAvgDelta float64
	prevRTT     int64

	throughput float64

	lossRate       float64
	prevPktLoss    int64
	prevPktRetrans int64

	nextIncrTS int64
	nextDecrTS int64
}

// Algorithm returns the default adaptive balancer.Algorithm.
func Algorithm() balancer.Algorithm { return adaptiveAlgorithm{} }

type adaptiveAlgorithm struct{}

func (adaptiveAlgorithm) Name() string        { return name }
func (adaptiveAlgorithm) Description() string { return description }

func (adaptiveAlgorithm) Init(cfg balancer.Config) (balancer.State, error) {
	s := &state{
		minBitrate: cfg.MinBitrate,
		maxBitrate: cfg.MaxBitrate,
		srtLatency: int64(cfg.SRTLatencyMS),
		srtPktSize: int64(cfg.SRTPktSize),

		incrStep:     orDefault(cfg.AdaptiveIncrStep, defIncrStep),
		decrStep:     orDefault(cfg.AdaptiveDecrStep, defDecrStep),
		incrInterval: orDefault(cfg.AdaptiveIncrInterval, defIncrInterval),
		decrInterval: orDefault(cfg.AdaptiveDecrInterval, defDecrInterval),

		curBitrate: cfg.MaxBitrate,

		rttMin:  rttMinInitial,
		prevRTT: rttInitial,
	}
	return s, nil
}

func orDefault(v, def int64) int64 {
	if v > 0 {
		return v
	}
	return def
}

func (adaptiveAlgorithm) Cleanup(balancer.State) {}

func (adaptiveAlgorithm) Step(st balancer.State, sample balancer.Sample) balancer.Output {
	s := st.(*state)

	now := int64(sample.TimestampMS)
	rtt := sample.RTTMillis
	rttInt := int64(rtt)
	bs := sample.BufferSize

	// 1. Cumulative loss deltas.
	lossDelta := sample.PktLossTotal - s.prevPktLoss
	if lossDelta < 0 {
		lossDelta = 0
	}
	retransDelta := sample.PktRetransTotal - s.prevPktRetrans
	if retransDelta < 0 {
		retransDelta = 0
	}
	s.prevPktLoss = sample.PktLossTotal
	s.prevPktRetrans = sample.PktRetransTotal

	if lossDelta > 0 || retransDelta > 0 {
		newLoss := float64(lossDelta + retransDelta)
		s.lossRate = s.lossRate*emaLoss + newLoss*emaLossNew
	} else {
		s.lossRate *= emaLoss
	}
	pktLossCongestion := s.lossRate > lossRateThreshold

	// 2. Buffer size smoothing.
	s.bsAvg = s.bsAvg*emaSlow + float64(bs)*emaFast
	s.bsJitter *= emaSlow
	deltaBS := bs - s.prevBS
	if float64(deltaBS) > s.bsJitter {
		s.bsJitter = float64(deltaBS)
	}
	s.prevBS = bs

	// 3. RTT smoothing.
	if s.rttAvg == 0 {
		s.rttAvg = rtt
	} else {
		s.rttAvg = s.rttAvg*emaSlow + emaFast*rtt
	}
	deltaRTT := rtt - float64(s.prevRTT)
	s.rttAvgDelta = s.rttAvgDelta*emaRTTDelta + deltaRTT*emaRTTDeltaNew
	s.prevRTT = rttInt

	s.rttMin *= rttMinDrift
	if rttInt != rttIgnoreMS && rtt < s.rttMin && s.rttAvgDelta < 1.0 {
		s.rttMin = rtt
	}

	s.rttJitter *= emaSlow
	if deltaRTT > s.rttJitter {
		s.rttJitter = deltaRTT
	}

	// 4. Throughput smoothing.
	s.throughput = s.throughput*emaThroughput + (sample.SendRateMbps*1_000_000/1024)*emaThroughputNew

	// 5. Thresholds.
	bsTh3 := int64((s.bsAvg + s.bsJitter) * bsTh3Mult)

	bsTh2F := s.bsAvg + max64f(s.bsJitter*bsTh2JitterMult, s.bsAvg)
	bsTh2F = max64f(bsThMin, bsTh2F)
	rttToBS := (s.throughput / 8) * (float64(s.srtLatency) / 2) / float64(s.srtPktSize)
	bsTh2 := int64(min64f(bsTh2F, rttToBS))

	bsTh1 := int64(max64f(bsThMin, s.bsAvg+s.bsJitter*bsTh1JitterMult))

	rttThMax := int64(s.rttAvg + max64f(s.rttJitter*rttJitterMult, s.rttAvg*rttAvgPercent))
	rttThMin := int64(s.rttMin + max64f(rttMinJitter, s.rttJitter*2))

	// 6. Decision, strict priority order.
	bitrate := s.curBitrate

	switch {
	case bitrate > s.minBitrate && (rttInt >= s.srtLatency/3 || bs > bsTh3):
		// Emergency.
		bitrate = s.minBitrate
		s.nextDecrTS = now + s.decrInterval

	case now > s.nextDecrTS && (rttInt > s.srtLatency/5 || bs > bsTh2 || pktLossCongestion):
		// Heavy congestion.
		bitrate -= s.decrStep + bitrate/decrScale
		s.nextDecrTS = now + fastDecrInterval

	case now > s.nextDecrTS && (rttInt > rttThMax || bs > bsTh1):
		// Light congestion.
		bitrate -= s.decrStep
		s.nextDecrTS = now + s.decrInterval

	case now > s.nextIncrTS && rttInt < rttThMin && s.rttAvgDelta < rttStableDelta && !pktLossCongestion:
		// Stable.
		bitrate += s.incrStep + bitrate/incrScale
		s.nextIncrTS = now + s.incrInterval
	}

	bitrate = clamp64(bitrate, s.minBitrate, s.maxBitrate)
	s.curBitrate = bitrate

	return balancer.Output{
		NewBitrate: balancer.RoundDownTo100Kbps(bitrate),
		Throughput: s.throughput,
		RTT:        rttInt,
		RTTThMin:   rttThMin,
		RTTThMax:   rttThMax,
		BS:         bs,
		BSTh1:      bsTh1,
		BSTh2:      bsTh2,
		BSTh3:      bsTh3,
	}
}

func clamp64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func max64f(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min64f(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
