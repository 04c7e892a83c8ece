// Package config loads the receiver's YAML configuration and parses
// the key=value parameter strings used by sources and sinks.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// Receiver holds the DSP-core configuration, mirroring the canonical
// CLI flags: pcm_rate, monaural, deemph_us, if_bandwidth_hz,
// peak_deviation_hz, excess_bw_fraction, stereo_scale, freq_scale,
// enable_histogram, precise_atan2, pps_file, buffer_seconds.
type Receiver struct {
	PCMRate          int     `yaml:"pcm_rate"`
	Monaural         bool    `yaml:"monaural"`
	DeemphUs         float64 `yaml:"deemph_us"`
	IFBandwidthHz    float64 `yaml:"if_bandwidth_hz"`
	PeakDeviationHz  float64 `yaml:"peak_deviation_hz"`
	ExcessBWFraction float64 `yaml:"excess_bw_fraction"`
	StereoScale      float64 `yaml:"stereo_scale"`
	FreqScale        float64 `yaml:"freq_scale"`
	EnableHistogram  bool    `yaml:"enable_histogram"`
	PreciseAtan2     bool    `yaml:"precise_atan2"`
	PPSFile          string  `yaml:"pps_file"`
	BufferSeconds    float64 `yaml:"buffer_seconds"`

	Source       string `yaml:"source"`
	SourceParams string `yaml:"source_params"`
	Sink         string `yaml:"sink"`
	SinkParams   string `yaml:"sink_params"`

	Monitor struct {
		Port int `yaml:"port"`
	} `yaml:"monitor"`

	InfluxDB struct {
		URL          string `yaml:"url"`
		Token        string `yaml:"token"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	} `yaml:"influxdb"`
}

// Default returns a Receiver populated with spec.md §6's canonical CLI
// defaults.
func Default() Receiver {
	return Receiver{
		PCMRate:          48000,
		Monaural:         false,
		DeemphUs:         50,
		IFBandwidthHz:    100000,
		PeakDeviationHz:  75000,
		ExcessBWFraction: 0.075,
		StereoScale:      1.17,
		FreqScale:        1.0,
		EnableHistogram:  false,
		PreciseAtan2:     false,
		BufferSeconds:    1.0,
	}
}

// Load reads and unmarshals a YAML receiver configuration file,
// starting from Default() so unspecified fields keep their defaults.
func Load(path string) (Receiver, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

// ParseParams parses a comma-separated key=value string (the form used
// by the -source-params and -sink-params flags, e.g. "path=capture.wav,gain=20")
// into a map.
func ParseParams(s string) (map[string]string, error) {
	out := make(map[string]string)
	if s == "" {
		return out, nil
	}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return nil, fmt.Errorf("config: malformed parameter %q, expected key=value", pair)
		}
		out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return out, nil
}

// ParamFloat looks up a float64-valued parameter, falling back to def
// if the key is absent.
func ParamFloat(params map[string]string, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: parameter %q=%q is not a number: %w", key, v, err)
	}
	return f, nil
}

// ParamInt looks up an int-valued parameter, falling back to def if
// the key is absent.
func ParamInt(params map[string]string, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: parameter %q=%q is not an integer: %w", key, v, err)
	}
	return n, nil
}
