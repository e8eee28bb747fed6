// Package cliopts parses ceracoder's command-line invocation: three fixed
// positional arguments (pipeline description, SRT host, SRT port) plus a
// handful of flags overriding config-file values. Grounded on the
// original src/io/cli_options.c, reimplemented with the standard flag
// package (the style the teacher's cmd/muxer/main.go uses, not a
// third-party CLI framework — none appears anywhere in the example pack).
package cliopts

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Range limits carried from the original cli_options.h.
const (
	MaxAVDelayMS    = 10_000
	MinSRTLatencyMS = 100
	MaxSRTLatencyMS = 10_000
	DefaultSRTLatMS = 2000

	// MinBitrateBps/AbsMaxBitrateBps bound each value in the legacy
	// two-line bitrate file.
	MinBitrateBps    = 300_000
	AbsMaxBitrateBps = 30_000_000
)

// Version is printed by -v, mirroring the original's `printf(VERSION "\n")`.
const Version = "ceracoder 1.0.0"

// Options is the fully parsed, range-validated CLI invocation.
type Options struct {
	PipelineFile string
	SRTHost      string
	SRTPort      string

	ConfigFile      string // -c
	BalancerName    string // -a, override
	BitrateFile     string // -b, legacy bitrate hot-reload file
	StreamID        string // -s
	SRTLatencyMS    int    // -l
	SRTLatencyMSSet bool   // true if -l was explicitly passed
	AVDelayMS       int    // -d
	ReducedPktSize  bool   // -r
	Verbose         bool   // -V, enable verbose logging
}

// Parse parses args (normally os.Args[1:]) into Options. It returns the
// flag package's own error (including flag.ErrHelp) unmodified so callers
// can distinguish "usage printed, exit 0" from a real failure.
//
// -v prints Version to stdout and exits the process with status 0, before
// the positional-argument check, matching the original's inline
// `case 'v': printf(VERSION "\n"); exit(EXIT_SUCCESS);` inside its getopt
// loop.
func Parse(progName string, args []string) (Options, error) {
	fs := flag.NewFlagSet(progName, flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: %s [flags] <pipeline-file> <srt-host> <srt-port>\n", progName)
		fs.PrintDefaults()
	}

	opts := Options{SRTLatencyMS: DefaultSRTLatMS}

	var printVersion bool
	fs.StringVar(&opts.ConfigFile, "c", "", "config file path")
	fs.StringVar(&opts.BalancerName, "a", "", "balancer algorithm override (adaptive|aimd|fixed)")
	fs.StringVar(&opts.BitrateFile, "b", "", "legacy two-line bitrate hot-reload file")
	fs.StringVar(&opts.StreamID, "s", "", "SRT stream ID")
	fs.IntVar(&opts.SRTLatencyMS, "l", DefaultSRTLatMS, "SRT latency in milliseconds")
	fs.IntVar(&opts.AVDelayMS, "d", 0, "audio/video delay in milliseconds")
	fs.BoolVar(&opts.ReducedPktSize, "r", false, "use a reduced SRT packet size")
	fs.BoolVar(&opts.Verbose, "V", false, "enable verbose logging")
	fs.BoolVar(&printVersion, "v", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}

	if printVersion {
		fmt.Fprintln(os.Stdout, Version)
		os.Exit(0)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "l" {
			opts.SRTLatencyMSSet = true
		}
	})

	rest := fs.Args()
	if len(rest) != 3 {
		fs.Usage()
		return Options{}, fmt.Errorf("cliopts: expected 3 positional arguments (pipeline-file, srt-host, srt-port), got %d", len(rest))
	}
	opts.PipelineFile, opts.SRTHost, opts.SRTPort = rest[0], rest[1], rest[2]

	if err := validate(opts); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func validate(o Options) error {
	if o.AVDelayMS < 0 || o.AVDelayMS > MaxAVDelayMS {
		return fmt.Errorf("cliopts: av delay %d out of range [0,%d]", o.AVDelayMS, MaxAVDelayMS)
	}
	if o.SRTLatencyMS < MinSRTLatencyMS || o.SRTLatencyMS > MaxSRTLatencyMS {
		return fmt.Errorf("cliopts: srt latency %d out of range [%d,%d]", o.SRTLatencyMS, MinSRTLatencyMS, MaxSRTLatencyMS)
	}
	return nil
}

// ReadLegacyBitrateFile reads the two-line hot-reload file: line 1 is the
// new min bitrate in bps, line 2 the new max, each individually validated
// against [MinBitrateBps, AbsMaxBitrateBps]. Grounded on belacoder.c's
// read_bitrate_file.
func ReadLegacyBitrateFile(path string) (minBitrate, maxBitrate int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()
	return parseLegacyBitrateFile(f)
}

func parseLegacyBitrateFile(r io.Reader) (minBitrate, maxBitrate int64, err error) {
	scanner := bufio.NewScanner(r)

	lines := make([]string, 0, 2)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, err
	}
	// Blank lines after the second are trailing whitespace, not content.
	for len(lines) > 2 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) != 2 {
		return 0, 0, fmt.Errorf("cliopts: bitrate file must contain exactly 2 lines, got %d", len(lines))
	}

	minBitrate, err = strconv.ParseInt(lines[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("cliopts: invalid min bitrate line %q: %w", lines[0], err)
	}
	maxBitrate, err = strconv.ParseInt(lines[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("cliopts: invalid max bitrate line %q: %w", lines[1], err)
	}

	if minBitrate < MinBitrateBps || minBitrate > AbsMaxBitrateBps {
		return 0, 0, fmt.Errorf("cliopts: min bitrate %d out of range [%d,%d]", minBitrate, MinBitrateBps, AbsMaxBitrateBps)
	}
	if maxBitrate < MinBitrateBps || maxBitrate > AbsMaxBitrateBps {
		return 0, 0, fmt.Errorf("cliopts: max bitrate %d out of range [%d,%d]", maxBitrate, MinBitrateBps, AbsMaxBitrateBps)
	}
	return minBitrate, maxBitrate, nil
}
