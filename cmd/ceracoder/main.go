// Command ceracoder reads an SRT telemetry stream, runs it through a
// pluggable bitrate balancer, and pushes the decision back into a live
// encoder and on-screen overlay. Grounded on the original belacoder.c's
// main(): flag parsing, config load, pipeline load, connect-with-retry,
// element lookup, signal wiring, and the housekeeping/stall timeouts now
// owned by pkg/controlloop.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ceralive/ceracoder/pkg/balancer/registry"
	"github.com/ceralive/ceracoder/pkg/balancer/runner"
	"github.com/ceralive/ceracoder/pkg/cliopts"
	cclock "github.com/ceralive/ceracoder/pkg/clock"
	"github.com/ceralive/ceracoder/pkg/config"
	"github.com/ceralive/ceracoder/pkg/controlloop"
	"github.com/ceralive/ceracoder/pkg/encoder"
	"github.com/ceralive/ceracoder/pkg/metrics"
	"github.com/ceralive/ceracoder/pkg/overlay"
	"github.com/ceralive/ceracoder/pkg/pipelinefile"
	"github.com/ceralive/ceracoder/pkg/transport"
	srttransport "github.com/ceralive/ceracoder/pkg/transport/srt"
)

const metricsAddr = ":9469"

func main() {
	log.Logger = log.Output(zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) { w.Out = os.Stderr }))

	opts, err := cliopts.Parse("ceracoder", os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("ceracoder: invalid invocation")
	}
	if opts.Verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	fileCfg := config.Default()
	if opts.ConfigFile != "" {
		fileCfg, err = config.Load(opts.ConfigFile)
		if err != nil {
			log.Fatal().Err(err).Str("path", opts.ConfigFile).Msg("ceracoder: failed to load config")
		}
	}
	if opts.StreamID != "" {
		fileCfg.StreamID = opts.StreamID
	}
	if opts.SRTLatencyMSSet {
		fileCfg.SRTLatencyMS = int64(opts.SRTLatencyMS)
	}

	pktSize := 1316
	if opts.ReducedPktSize {
		pktSize = 1052
	}

	pipeline, err := pipelinefile.Load(opts.PipelineFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", opts.PipelineFile).Msg("ceracoder: failed to load pipeline")
	}
	defer pipeline.Close()

	gstEncoder := encoder.NewGstEncoder(pipeline.Handle())
	defer gstEncoder.Close()
	gstOverlay := overlay.NewGstOverlay(pipeline.Handle())
	defer gstOverlay.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := connectWithRetry(ctx, srttransport.Dialer{}, transport.Config{
		Host:       opts.SRTHost,
		Port:       opts.SRTPort,
		LatencyMS:  int(fileCfg.SRTLatencyMS),
		StreamID:   fileCfg.StreamID,
		PacketSize: pktSize,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("ceracoder: failed to connect")
	}
	defer conn.Close()

	reg := registry.Standard()
	balCfg := fileCfg.Balance(pktSize)
	r, err := runner.New(reg, opts.BalancerName, balCfg, fileCfg.Balancer)
	if err != nil {
		log.Fatal().Err(err).Msg("ceracoder: failed to initialize balancer")
	}
	defer r.Cleanup()
	log.Info().Str("balancer", r.Name()).Msg("ceracoder: balancer selected")

	promReg := prometheus.NewRegistry()
	collector := metrics.NewCollector(promReg)
	go serveMetrics(promReg)

	loop := &controlloop.Loop{
		Runner:   r,
		Conn:     conn,
		Encoder:  gstEncoder,
		Overlay:  gstOverlay,
		Metrics:  collector,
		Clock:    cclock.New(),
		Log:      log.Logger,
		Reload:   reloadFunc(opts.BitrateFile),
		Position: pipeline.Position,
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGHUP:
				loop.RequestReload()
			default:
				loop.RequestStop()
				cancel()
			}
		}
	}()

	if err := loop.Run(ctx); err != nil {
		log.Error().Err(err).Msg("ceracoder: control loop exited with error")
		os.Exit(1)
	}
}

// connectWithRetry retries a connect on any failure with the original's
// 500ms backoff, until ctx is canceled.
func connectWithRetry(ctx context.Context, dialer transport.Dialer, cfg transport.Config) (transport.Conn, error) {
	for {
		conn, err := dialer.Dial(ctx, cfg)
		if err == nil {
			return conn, nil
		}
		log.Warn().Err(err).Msg("ceracoder: connect failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(controlloop.ConnectRetryDelay):
		}
	}
}

// reloadFunc builds a controlloop.ReloadFunc that re-reads the legacy
// two-line bitrate hot-reload file, or is nil if no such file was given
// on the command line.
func reloadFunc(bitrateFile string) controlloop.ReloadFunc {
	if bitrateFile == "" {
		return nil
	}
	return func() (int64, int64, error) {
		return cliopts.ReadLegacyBitrateFile(bitrateFile)
	}
}

func serveMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(metricsAddr, mux); err != nil {
		log.Warn().Err(err).Msg("ceracoder: metrics server exited")
	}
}
