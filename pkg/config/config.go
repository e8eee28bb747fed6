// Package config loads and serializes the ceracoder INI-style
// configuration file. Bitrates are stored in kbit/s on disk (matching
// operator expectations and the original file format) and converted to
// bits/s exactly once, at the pkg/config -> pkg/balancer boundary.
// Grounded on the original config.c / config.h.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ceralive/ceracoder/pkg/balancer"
)

// Defaults, carried verbatim from the original config.h.
const (
	DefaultMinBitrateKbps = 300
	DefaultMaxBitrateKbps = 6000
	DefaultSRTLatencyMS   = 2000
	DefaultBalancer       = "adaptive"

	DefaultAdaptiveIncrStepKbps = 30
	DefaultAdaptiveDecrStepKbps = 100
	DefaultAdaptiveIncrInterval = 500
	DefaultAdaptiveDecrInterval = 200
	DefaultAdaptiveLossThresh   = 0.5

	DefaultAIMDIncrStepKbps = 50
	DefaultAIMDDecrMult     = 0.75
	DefaultAIMDIncrInterval = 500
	DefaultAIMDDecrInterval = 200
)

// Adaptive holds the [adaptive] section. Bitrate fields are kbit/s.
type Adaptive struct {
	IncrStepKbps int64
	DecrStepKbps int64
	IncrInterval int64 // ms
	DecrInterval int64 // ms
	LossThresh   float64
}

// AIMD holds the [aimd] section. Bitrate fields are kbit/s.
type AIMD struct {
	IncrStepKbps int64
	DecrMult     float64
	IncrInterval int64 // ms
	DecrInterval int64 // ms
}

// Config is the in-memory, file-shaped representation: everything is in
// the units the file uses (kbit/s, ms), not yet converted for the
// balancer package.
type Config struct {
	MinBitrateKbps int64
	MaxBitrateKbps int64
	Balancer       string
	SRTLatencyMS   int64
	StreamID       string

	Adaptive Adaptive
	AIMD     AIMD
}

// Default returns the configuration the original shipped with an empty
// file: every field at its documented default.
func Default() Config {
	return Config{
		MinBitrateKbps: DefaultMinBitrateKbps,
		MaxBitrateKbps: DefaultMaxBitrateKbps,
		Balancer:       DefaultBalancer,
		SRTLatencyMS:   DefaultSRTLatencyMS,
		Adaptive: Adaptive{
			IncrStepKbps: DefaultAdaptiveIncrStepKbps,
			DecrStepKbps: DefaultAdaptiveDecrStepKbps,
			IncrInterval: DefaultAdaptiveIncrInterval,
			DecrInterval: DefaultAdaptiveDecrInterval,
			LossThresh:   DefaultAdaptiveLossThresh,
		},
		AIMD: AIMD{
			IncrStepKbps: DefaultAIMDIncrStepKbps,
			DecrMult:     DefaultAIMDDecrMult,
			IncrInterval: DefaultAIMDIncrInterval,
			DecrInterval: DefaultAIMDDecrInterval,
		},
	}
}

// Balance converts this Config into the bits/s, milliseconds
// balancer.Config the algorithms actually consume. This is the single
// choke point where kbit/s becomes bit/s.
func (c Config) Balance(srtPktSize int) balancer.Config {
	return balancer.Config{
		MinBitrate:   c.MinBitrateKbps * 1000,
		MaxBitrate:   c.MaxBitrateKbps * 1000,
		SRTLatencyMS: int(c.SRTLatencyMS),
		SRTPktSize:   srtPktSize,

		AdaptiveIncrStep:     c.Adaptive.IncrStepKbps * 1000,
		AdaptiveDecrStep:     c.Adaptive.DecrStepKbps * 1000,
		AdaptiveIncrInterval: c.Adaptive.IncrInterval,
		AdaptiveDecrInterval: c.Adaptive.DecrInterval,

		AIMDIncrStep:     c.AIMD.IncrStepKbps * 1000,
		AIMDDecrMult:     c.AIMD.DecrMult,
		AIMDIncrInterval: c.AIMD.IncrInterval,
		AIMDDecrInterval: c.AIMD.DecrInterval,
	}
}

// Load reads and parses an INI-style config file. A missing file is
// reported as the os.Open error — callers that want "file optional"
// behavior should check os.IsNotExist themselves, or just start from
// Default() and skip the call entirely.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads an INI-style config from r, starting from Default() and
// overwriting only the fields explicit lines set. Comments start with
// '#' or ';'; section names are case-insensitive; unknown keys and
// unknown sections are silently ignored, matching the original parser.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	section := "general"

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		applyKey(&cfg, section, key, value)
	}
	if err := scanner.Err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyKey(cfg *Config, section, key, value string) {
	switch section {
	case "general", "":
		switch key {
		case "min_bitrate":
			cfg.MinBitrateKbps = parseInt(value, cfg.MinBitrateKbps)
		case "max_bitrate":
			cfg.MaxBitrateKbps = parseInt(value, cfg.MaxBitrateKbps)
		case "balancer":
			cfg.Balancer = value
		case "stream_id":
			cfg.StreamID = value
		}
	case "srt":
		switch key {
		case "latency":
			cfg.SRTLatencyMS = parseInt(value, cfg.SRTLatencyMS)
		}
	case "adaptive":
		switch key {
		case "incr_step":
			cfg.Adaptive.IncrStepKbps = parseInt(value, cfg.Adaptive.IncrStepKbps)
		case "decr_step":
			cfg.Adaptive.DecrStepKbps = parseInt(value, cfg.Adaptive.DecrStepKbps)
		case "incr_interval":
			cfg.Adaptive.IncrInterval = parseInt(value, cfg.Adaptive.IncrInterval)
		case "decr_interval":
			cfg.Adaptive.DecrInterval = parseInt(value, cfg.Adaptive.DecrInterval)
		case "loss_threshold":
			cfg.Adaptive.LossThresh = parseFloat(value, cfg.Adaptive.LossThresh)
		}
	case "aimd":
		switch key {
		case "incr_step":
			cfg.AIMD.IncrStepKbps = parseInt(value, cfg.AIMD.IncrStepKbps)
		case "decr_mult":
			cfg.AIMD.DecrMult = parseFloat(value, cfg.AIMD.DecrMult)
		case "incr_interval":
			cfg.AIMD.IncrInterval = parseInt(value, cfg.AIMD.IncrInterval)
		case "decr_interval":
			cfg.AIMD.DecrInterval = parseInt(value, cfg.AIMD.DecrInterval)
		}
	}
	// Unknown sections are silently ignored, same as the original.
}

func parseInt(s string, fallback int64) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}

// Write serializes cfg back into the INI format Parse reads, in a fixed
// section order, so that Parse(Write(c)) reproduces c.
func Write(w io.Writer, cfg Config) error {
	_, err := fmt.Fprintf(w, `[general]
min_bitrate=%d
max_bitrate=%d
balancer=%s
stream_id=%s

[srt]
latency=%d

[adaptive]
incr_step=%d
decr_step=%d
incr_interval=%d
decr_interval=%d
loss_threshold=%g

[aimd]
incr_step=%d
decr_mult=%g
incr_interval=%d
decr_interval=%d
`,
		cfg.MinBitrateKbps, cfg.MaxBitrateKbps, cfg.Balancer, cfg.StreamID,
		cfg.SRTLatencyMS,
		cfg.Adaptive.IncrStepKbps, cfg.Adaptive.DecrStepKbps, cfg.Adaptive.IncrInterval, cfg.Adaptive.DecrInterval, cfg.Adaptive.LossThresh,
		cfg.AIMD.IncrStepKbps, cfg.AIMD.DecrMult, cfg.AIMD.IncrInterval, cfg.AIMD.DecrInterval,
	)
	return err
}
