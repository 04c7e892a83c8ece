// Command fmreceiver tunes a broadcast FM channel, demodulates it to
// stereo or mono PCM audio, and streams it to a sink, wiring the
// Source → Demod → Sink three-thread pipeline described in spec.md §5.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/oss-sdr/fmreceiver/internal/config"
	"github.com/oss-sdr/fmreceiver/internal/dsp/queue"
	"github.com/oss-sdr/fmreceiver/internal/dsp/types"
	"github.com/oss-sdr/fmreceiver/internal/fmradio"
	"github.com/oss-sdr/fmreceiver/internal/metrics"
	"github.com/oss-sdr/fmreceiver/internal/monitor"
	"github.com/oss-sdr/fmreceiver/internal/pipeline"
	"github.com/oss-sdr/fmreceiver/internal/pps"
	"github.com/oss-sdr/fmreceiver/internal/sink"
	"github.com/oss-sdr/fmreceiver/internal/sink/opussink"
	"github.com/oss-sdr/fmreceiver/internal/sink/otosink"
	"github.com/oss-sdr/fmreceiver/internal/sink/pcmsink"
	"github.com/oss-sdr/fmreceiver/internal/source"
	"github.com/oss-sdr/fmreceiver/internal/source/hackrfsource"
	"github.com/oss-sdr/fmreceiver/internal/source/rtlsdrsource"
	"github.com/oss-sdr/fmreceiver/internal/source/wavsource"
)

const ifDecimationDefault = 1

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)

	cfg := config.Default()
	configFile := flag.String("config", "", "YAML config file (optional; flags below override it)")

	pcmRate := flag.Int("r", cfg.PCMRate, "output PCM sample rate (Hz)")
	monaural := flag.Bool("M", cfg.Monaural, "force monaural output")
	deemphUs := flag.Float64("e", cfg.DeemphUs, "de-emphasis time constant (microseconds)")
	ifBandwidthHz := flag.Float64("B", cfg.IFBandwidthHz, "IF half-bandwidth (Hz)")
	peakDeviationHz := flag.Float64("D", cfg.PeakDeviationHz, "peak frequency deviation (Hz)")
	excessBWFraction := flag.Float64("E", cfg.ExcessBWFraction, "channel filter excess bandwidth fraction")
	stereoScale := flag.Float64("s", cfg.StereoScale, "stereo subcarrier compensation scale")
	freqScale := flag.Float64("S", cfg.FreqScale, "discriminator frequency scale")
	enableHistogram := flag.Bool("H", cfg.EnableHistogram, "enable deviation histogram")
	preciseAtan2 := flag.Bool("p", cfg.PreciseAtan2, "use exact atan2 in the phase discriminator")
	ppsFile := flag.String("T", cfg.PPSFile, "write PPS events to this file")
	bufferSeconds := flag.Float64("b", cfg.BufferSeconds, "audio output queue buffer depth (seconds)")

	sourceType := flag.String("source", "wav", "source type: wav, hackrf, rtlsdr")
	sourceParams := flag.String("source-params", "", "source key=value parameters, e.g. path=capture.wav,frequency=99500000")
	ifDecimation := flag.Int("if-decimation", ifDecimationDefault, "IF channel filter decimation factor")
	tuningOffsetHz := flag.Float64("tuning-offset-hz", 0, "fine-tuning offset applied before channel filtering (Hz)")

	sinkType := flag.String("sink", "pcm", "sink type: pcm, opus, oto")
	sinkParams := flag.String("sink-params", "", "sink key=value parameters, e.g. path=out.pcm")

	monitorPort := flag.Int("monitor-port", 0, "HTTP status/histogram port (0 disables)")
	influxURL := flag.String("influx-url", "", "InfluxDB URL (empty disables metrics export)")
	influxToken := flag.String("influx-token", "", "InfluxDB auth token")
	influxOrg := flag.String("influx-org", "", "InfluxDB organization")
	influxBucket := flag.String("influx-bucket", "", "InfluxDB bucket")

	flag.Parse()

	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			log.Fatal().Err(err).Msg("error reading config file")
		}
		cfg = loaded
	}

	cfg.PCMRate = *pcmRate
	cfg.Monaural = *monaural
	cfg.DeemphUs = *deemphUs
	cfg.IFBandwidthHz = *ifBandwidthHz
	cfg.PeakDeviationHz = *peakDeviationHz
	cfg.ExcessBWFraction = *excessBWFraction
	cfg.StereoScale = *stereoScale
	cfg.FreqScale = *freqScale
	cfg.EnableHistogram = *enableHistogram
	cfg.PreciseAtan2 = *preciseAtan2
	cfg.PPSFile = *ppsFile
	cfg.BufferSeconds = *bufferSeconds
	if cfg.Source == "" {
		cfg.Source = *sourceType
	}
	if cfg.SourceParams == "" {
		cfg.SourceParams = *sourceParams
	}
	if cfg.Sink == "" {
		cfg.Sink = *sinkType
	}
	if cfg.SinkParams == "" {
		cfg.SinkParams = *sinkParams
	}
	if cfg.Monitor.Port == 0 {
		cfg.Monitor.Port = *monitorPort
	}
	if cfg.InfluxDB.URL == "" {
		cfg.InfluxDB.URL = *influxURL
		cfg.InfluxDB.Token = *influxToken
		cfg.InfluxDB.Organization = *influxOrg
		cfg.InfluxDB.Bucket = *influxBucket
	}

	src, err := buildSource(cfg.Source, cfg.SourceParams)
	if err != nil {
		log.Fatal().Err(err).Msg("error configuring source")
	}

	iqQueue := queue.New[types.IQBlock]()
	audioQueue := queue.New[types.SampleBlock]()

	stopFlag := &atomic.Bool{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eg, ctx := errgroup.WithContext(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	eg.Go(func() error {
		select {
		case <-sigCh:
			log.Info().Msg("signal received, shutting down")
			cancel()
		case <-ctx.Done():
		}
		stopFlag.Store(true)
		return src.Stop()
	})

	eg.Go(func() error {
		if err := src.Start(iqQueue, stopFlag); err != nil {
			return fmt.Errorf("source: %w", err)
		}
		return nil
	})

	fsIF := float64(src.SampleRate())
	if fsIF == 0 {
		log.Fatal().Msg("source reported sample rate 0")
	}

	decoder, err := fmradio.New(fmradio.Params{
		FsIF:             fsIF,
		TuningOffsetHz:   *tuningOffsetHz,
		FsPCM:            float64(cfg.PCMRate),
		StereoEnabled:    !cfg.Monaural,
		TauDeemph:        cfg.DeemphUs * 1e-6,
		BandwidthIFHz:    cfg.IFBandwidthHz,
		FreqDevHz:        cfg.PeakDeviationHz,
		BandwidthPCMHz:   math.Min(15000, 0.45*float64(cfg.PCMRate)),
		DecimationIF:     *ifDecimation,
		FreqScale:        cfg.FreqScale,
		ExcessBWFraction: cfg.ExcessBWFraction,
		StereoScale:      float32(cfg.StereoScale),
		EnableHistogram:  cfg.EnableHistogram,
		PreciseAtan2:     cfg.PreciseAtan2,
	}, fmradio.WithLogger(log.Logger))
	if err != nil {
		log.Fatal().Err(err).Msg("error configuring demodulator")
	}

	var metricsSink pipeline.MetricsSink
	var monitorSrv *monitor.Server
	if cfg.Monitor.Port != 0 {
		monitorSrv = monitor.New(cfg.Monitor.Port, decoder.Histogram())
		metricsSink = monitorSrv
		eg.Go(func() error {
			return monitorSrv.Run(ctx)
		})
	}
	if cfg.InfluxDB.URL != "" {
		freqTag := fmt.Sprintf("%d", src.Frequency())
		publisher := metrics.NewPublisher(cfg.InfluxDB.URL, cfg.InfluxDB.Token, cfg.InfluxDB.Organization, cfg.InfluxDB.Bucket, freqTag)
		if metricsSink == nil {
			metricsSink = publisher
		} else {
			metricsSink = multiMetricsSink{monitorSrv, publisher}
		}
	}

	var ppsWriter *pps.Writer
	if cfg.PPSFile != "" {
		ppsWriter, err = pps.Open(cfg.PPSFile)
		if err != nil {
			log.Fatal().Err(err).Msg("error opening PPS file")
		}
		defer ppsWriter.Close()
	}
	if ppsWriter != nil {
		metricsSink = ppsTappingSink{inner: metricsSink, writer: ppsWriter}
	}

	driver := pipeline.New(iqQueue, audioQueue, decoder, metricsSink, log.Logger, fsIF)
	eg.Go(func() error {
		return driver.Run(ctx)
	})

	snk, err := buildSink(cfg.Sink, cfg.SinkParams, cfg.PCMRate, !cfg.Monaural)
	if err != nil {
		log.Fatal().Err(err).Msg("error configuring sink")
	}

	minfill := int(cfg.BufferSeconds * float64(cfg.PCMRate))
	eg.Go(func() error {
		defer cancel()
		defer snk.Close()
		for {
			audioQueue.WaitUntilAtLeast(minfill)
			block := audioQueue.Pull()
			if len(block) == 0 && audioQueue.EndReached() {
				return nil
			}
			if err := snk.Write(block); err != nil {
				log.Error().Err(err).Msg("sink write error")
			}
		}
	})

	if err := eg.Wait(); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("exited with error")
	}
}

func buildSource(kind, params string) (source.Source, error) {
	var src source.Source
	switch kind {
	case "wav":
		src = wavsource.New("")
	case "hackrf":
		src = hackrfsource.New()
	case "rtlsdr":
		src = rtlsdrsource.New(0)
	default:
		return nil, fmt.Errorf("unknown source type %q", kind)
	}
	if err := src.Configure(params); err != nil {
		return nil, err
	}
	return src, nil
}

func buildSink(kind, params string, sampleRate int, stereo bool) (sink.Sink, error) {
	channels := 1
	if stereo {
		channels = 2
	}
	paramMap, err := config.ParseParams(params)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "pcm":
		if path, ok := paramMap["path"]; ok {
			f, err := os.Create(path)
			if err != nil {
				return nil, fmt.Errorf("opening PCM output %s: %w", path, err)
			}
			return pcmsink.New(f), nil
		}
		return pcmsink.New(os.Stdout), nil
	case "opus":
		if path, ok := paramMap["path"]; ok {
			f, err := os.Create(path)
			if err != nil {
				return nil, fmt.Errorf("opening Opus output %s: %w", path, err)
			}
			return opussink.New(f, sampleRate, channels)
		}
		return opussink.New(os.Stdout, sampleRate, channels)
	case "oto":
		return otosink.New(sampleRate, channels)
	default:
		return nil, fmt.Errorf("unknown sink type %q", kind)
	}
}

// multiMetricsSink fans per-block metrics out to more than one
// observer (e.g. the HTTP monitor and InfluxDB).
type multiMetricsSink []pipeline.MetricsSink

func (m multiMetricsSink) Observe(metrics types.BlockMetrics) {
	for _, s := range m {
		if s != nil {
			s.Observe(metrics)
		}
	}
}

// ppsTappingSink forwards metrics to inner (if any) and additionally
// writes each block's PPS events to a file.
type ppsTappingSink struct {
	inner  pipeline.MetricsSink
	writer *pps.Writer
}

func (p ppsTappingSink) Observe(metrics types.BlockMetrics) {
	if p.inner != nil {
		p.inner.Observe(metrics)
	}
	if err := p.writer.Write(metrics.PPSEvents); err != nil {
		log.Error().Err(err).Msg("error writing PPS events")
	}
}
