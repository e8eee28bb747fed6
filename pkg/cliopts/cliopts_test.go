package cliopts

import (
	"strings"
	"testing"
)

func TestParsePositionalArgs(t *testing.T) {
	opts, err := Parse("ceracoder", []string{"pipeline.txt", "example.com", "8890"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if opts.PipelineFile != "pipeline.txt" || opts.SRTHost != "example.com" || opts.SRTPort != "8890" {
		t.Fatalf("unexpected positional parse: %+v", opts)
	}
	if opts.SRTLatencyMS != DefaultSRTLatMS {
		t.Fatalf("expected default latency, got %d", opts.SRTLatencyMS)
	}
	if opts.SRTLatencyMSSet {
		t.Fatal("expected SRTLatencyMSSet to be false when -l wasn't passed")
	}
}

func TestParseFlagsOverride(t *testing.T) {
	opts, err := Parse("ceracoder", []string{"-a", "aimd", "-l", "500", "-s", "mystream", "pipeline.txt", "host", "1234"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if opts.BalancerName != "aimd" {
		t.Fatalf("expected aimd override, got %s", opts.BalancerName)
	}
	if opts.SRTLatencyMS != 500 {
		t.Fatalf("expected latency 500, got %d", opts.SRTLatencyMS)
	}
	if !opts.SRTLatencyMSSet {
		t.Fatal("expected SRTLatencyMSSet to be true when -l was passed")
	}
	if opts.StreamID != "mystream" {
		t.Fatalf("expected stream id mystream, got %s", opts.StreamID)
	}
}

func TestParseVerboseFlagUsesCapitalV(t *testing.T) {
	opts, err := Parse("ceracoder", []string{"-V", "pipeline.txt", "host", "1234"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !opts.Verbose {
		t.Fatal("expected -V to set Verbose")
	}
}

func TestParseRejectsWrongPositionalCount(t *testing.T) {
	_, err := Parse("ceracoder", []string{"only-one-arg"})
	if err == nil {
		t.Fatal("expected error for missing positional args")
	}
}

func TestParseRejectsOutOfRangeLatency(t *testing.T) {
	_, err := Parse("ceracoder", []string{"-l", "50", "p", "h", "1"})
	if err == nil {
		t.Fatal("expected error for latency below MinSRTLatencyMS")
	}
	_, err = Parse("ceracoder", []string{"-l", "99999", "p", "h", "1"})
	if err == nil {
		t.Fatal("expected error for latency above MaxSRTLatencyMS")
	}
}

func TestParseLegacyBitrateFile(t *testing.T) {
	r := strings.NewReader("500000\n4000000\n")
	min, max, err := parseLegacyBitrateFile(r)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if min != 500_000 || max != 4_000_000 {
		t.Fatalf("unexpected values: min=%d max=%d", min, max)
	}
}

func TestParseLegacyBitrateFileRejectsOutOfRange(t *testing.T) {
	r := strings.NewReader("100\n4000000\n")
	_, _, err := parseLegacyBitrateFile(r)
	if err == nil {
		t.Fatal("expected error for min bitrate below absolute floor")
	}
}

func TestParseLegacyBitrateFileRejectsWrongLineCount(t *testing.T) {
	r := strings.NewReader("500000\n")
	_, _, err := parseLegacyBitrateFile(r)
	if err == nil {
		t.Fatal("expected error for missing second line")
	}
}
