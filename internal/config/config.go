// Package config loads the run configuration this module needs beyond
// the device-decoder catalogue: center frequencies and dwell times,
// device selection, sink wiring, and the unit system, merged from a YAML
// document and CLI flag overrides. The document is read once at
// startup into a plain struct; there is no hot-reload.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
	"hz.tools/rf"

	"github.com/doismellburning/ism433/internal/record"
	"github.com/doismellburning/ism433/internal/units"
)

// HopSlot is one entry of the frequency-hopping schedule: a center
// frequency and the dwell time the driver stays tuned to it before
// advancing to the next slot.
type HopSlot struct {
	FreqHz rf.Hz         `yaml:"freq_hz"`
	Dwell  time.Duration `yaml:"dwell"`
}

// SinkConfig enables and configures one output channel. Fields not
// relevant to Kind are ignored.
type SinkConfig struct {
	Kind string `yaml:"kind"` // kv, csv, json, syslog, mqtt, websocket, gpio

	// syslog
	SyslogAddr string `yaml:"syslog_addr"`
	SyslogHost string `yaml:"syslog_host"`

	// mqtt
	MQTTBroker string `yaml:"mqtt_broker"`
	MQTTTopic  string `yaml:"mqtt_topic"`

	// websocket
	WSListenAddr string `yaml:"ws_listen_addr"`

	// gpio
	GPIOChip string `yaml:"gpio_chip"`
	GPIOLine int    `yaml:"gpio_line"`
}

// Config is the full merged run configuration.
type Config struct {
	Device            string        `yaml:"device"`
	SampleRate        uint32        `yaml:"sample_rate"`
	Gain              string        `yaml:"gain"`
	FreqCorrectionPPM int           `yaml:"freq_correction_ppm"`
	Hop               []HopSlot     `yaml:"hop"`
	DurationCap       time.Duration `yaml:"duration_cap"`
	StatsInterval     time.Duration `yaml:"stats_interval"`

	SelectedProtocols []int    `yaml:"protocols"`
	FlexDevices       []string `yaml:"flex_devices"`
	ReportUnknown     bool     `yaml:"report_unknown"`
	ReportProtocol    bool     `yaml:"report_protocol"`
	AnalyzePulses     bool     `yaml:"analyze_pulses"`

	TimeFormat string `yaml:"time_format"` // local, unix, iso8601, samples, none
	Tag        string `yaml:"tag"`
	UnitMode   string `yaml:"unit_mode"` // si, customary, none

	// Sample-grabber: retain the last GrabSeconds of raw samples in a
	// ring and dump them to GrabPath when a package matches GrabMode
	// ("all", "unknown", "known"; empty disables).
	GrabSeconds int    `yaml:"grab_seconds"`
	GrabMode    string `yaml:"grab_mode"`
	GrabPath    string `yaml:"grab_path"`

	Sinks []SinkConfig `yaml:"sinks"`

	DiscoveryName string `yaml:"discovery_name"` // mDNS advertisement name, empty disables
	MetricsAddr   string `yaml:"metrics_addr"`   // Prometheus /metrics listen address, empty disables
}

// defaults are the conventional ISM-band settings: 433.92 MHz center,
// 250 kHz sample rate, 600 s dwell.
var defaults = Config{
	SampleRate:    250000,
	StatsInterval: 0,
	TimeFormat:    "local",
	UnitMode:      "customary",
	Hop: []HopSlot{
		{FreqHz: rf.Hz(433920000), Dwell: 600 * time.Second},
	},
}

// Load reads a YAML document from path, starting from defaults so an
// absent or partial file still yields a runnable configuration.
func Load(path string) (*Config, error) {
	cfg := defaults
	if path == "" {
		return &cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Flags registers the CLI overrides onto fs; flag values win over
// whatever Load populated when BindFlags is called after fs.Parse.
func Flags(fs *pflag.FlagSet) *FlagValues {
	fv := &FlagValues{}
	fs.StringVar(&fv.ConfigPath, "config", "", "path to YAML config file")
	fs.StringVar(&fv.Device, "device", "", "sample source device query string")
	fs.Uint32Var(&fv.SampleRate, "sample-rate", 0, "sample rate in Hz (0 = use config)")
	fs.StringVar(&fv.Gain, "gain", "", "tuner gain spec")
	fs.IntVar(&fv.FreqCorrectionPPM, "ppm", 0, "frequency correction in PPM")
	fs.Float64Var(&fv.FreqHz, "freq", 0, "center frequency in Hz (0 = use config hop schedule)")
	fs.DurationVar(&fv.DurationCap, "duration", 0, "stop after this long (0 = unbounded)")
	fs.StringVar(&fv.UnitMode, "unit-mode", "", "si, customary, or none")
	fs.StringVar(&fv.TimeFormat, "time-format", "", "local, unix, iso8601, samples, or none")
	fs.BoolVar(&fv.ReportUnknown, "report-unknown", false, "emit unknown-package records")
	fs.BoolVar(&fv.ReportProtocol, "report-protocol", false, "prepend protocol number and description to records")
	fs.BoolVar(&fv.AnalyzePulses, "analyze", false, "run the pulse analyzer on undecoded packages")
	fs.StringVar(&fv.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (empty = disabled)")
	fs.StringArrayVar(&fv.FlexDevices, "X", nil, "flex decoder spec string, repeatable")
	return fv
}

// FlagValues holds the raw pflag destinations; BindFlags folds the ones
// the user actually set into a Config.
type FlagValues struct {
	ConfigPath        string
	Device            string
	SampleRate        uint32
	Gain              string
	FreqCorrectionPPM int
	FreqHz            float64
	DurationCap       time.Duration
	UnitMode          string
	TimeFormat        string
	ReportUnknown     bool
	ReportProtocol    bool
	AnalyzePulses     bool
	FlexDevices       []string
	MetricsAddr       string
}

// BindFlags overlays fv's explicitly-set values onto cfg. fs is consulted
// via Changed so an unset flag never clobbers a config-file value.
func BindFlags(cfg *Config, fs *pflag.FlagSet, fv *FlagValues) {
	if fs.Changed("device") {
		cfg.Device = fv.Device
	}
	if fs.Changed("sample-rate") {
		cfg.SampleRate = fv.SampleRate
	}
	if fs.Changed("gain") {
		cfg.Gain = fv.Gain
	}
	if fs.Changed("ppm") {
		cfg.FreqCorrectionPPM = fv.FreqCorrectionPPM
	}
	if fs.Changed("freq") {
		cfg.Hop = []HopSlot{{FreqHz: rf.Hz(fv.FreqHz), Dwell: 0}}
	}
	if fs.Changed("duration") {
		cfg.DurationCap = fv.DurationCap
	}
	if fs.Changed("unit-mode") {
		cfg.UnitMode = fv.UnitMode
	}
	if fs.Changed("time-format") {
		cfg.TimeFormat = fv.TimeFormat
	}
	if fs.Changed("report-unknown") {
		cfg.ReportUnknown = fv.ReportUnknown
	}
	if fs.Changed("report-protocol") {
		cfg.ReportProtocol = fv.ReportProtocol
	}
	if fs.Changed("analyze") {
		cfg.AnalyzePulses = fv.AnalyzePulses
	}
	if fs.Changed("metrics-addr") {
		cfg.MetricsAddr = fv.MetricsAddr
	}
	if fs.Changed("X") {
		cfg.FlexDevices = append(cfg.FlexDevices, fv.FlexDevices...)
	}
}

// UnitsMode translates the YAML string into units.Mode.
func (c *Config) UnitsMode() units.Mode {
	switch c.UnitMode {
	case "si":
		return units.SI
	case "customary":
		return units.Customary
	default:
		return units.None
	}
}

// RecordTimeFormat translates the YAML string into record.TimeFormat.
func (c *Config) RecordTimeFormat() record.TimeFormat {
	switch c.TimeFormat {
	case "unix":
		return record.TimeUnix
	case "iso8601":
		return record.TimeISO8601
	case "samples":
		return record.TimeSamplePosition
	case "none":
		return record.TimeNone
	default:
		return record.TimeLocal
	}
}
