package main

// this file contains all the code that directly uses the viper package
import (
	"errors"
	"fmt"
	"strings"

	"github.com/jbrzusto/micarray/beamform"
	"github.com/jbrzusto/micarray/capture"
	"github.com/jbrzusto/micarray/fpga"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// config is the full set of settings for the micarray tools.
type config struct {
	Link     fpga.LinkConfig `mapstructure:"link"`
	Capture  captureConfig   `mapstructure:"capture"`
	Array    arrayConfig     `mapstructure:"array"`
	Beamform beamformConfig  `mapstructure:"beamform"`
	Log      logConfig       `mapstructure:"log"`
}

type captureConfig struct {
	SampleRate int     `mapstructure:"sample_rate"` // Hz, as sent by the FPGA
	Seconds    float64 `mapstructure:"seconds"`     // length of each capture
	Framing    string  `mapstructure:"framing"`     // "aligned" or "raw"
	Output     string  `mapstructure:"output"`      // WAV file written by capture
	Dir        string  `mapstructure:"dir"`         // where sweep writes beam_ang_<angle>.wav
}

type beamformConfig struct {
	SampleRate int    `mapstructure:"sample_rate"` // Hz; inputs are resampled to this, 0 keeps the first file's rate
	Mode       string `mapstructure:"mode"`        // "sum" or "mean"
	Shift      bool   `mapstructure:"shift"`       // shift delays so none is negative
	Workers    int    `mapstructure:"workers"`     // concurrent angles in scan
}

type logConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// setDefaultConfig sets defaults for every key, matching the current
// board build.  The file and flags only need to give what differs.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("link.port", fpga.DEFAULT_PORT)
	v.SetDefault("link.baud", fpga.BAUD_RATE)
	v.SetDefault("link.read_timeout", fpga.DEFAULT_TIMEOUT)
	v.SetDefault("capture.sample_rate", fpga.MIC_SAMPLE_RATE)
	v.SetDefault("capture.seconds", 4)
	v.SetDefault("capture.framing", string(capture.Aligned))
	v.SetDefault("capture.output", "output.wav")
	v.SetDefault("capture.dir", ".")
	v.SetDefault("array.model", "4-mic linear MEMS board")
	v.SetDefault("array.mics", fpga.NUM_MICS)
	v.SetDefault("array.spacing", 0.05)
	v.SetDefault("array.speed_of_sound", beamform.SpeedOfSound)
	v.SetDefault("array.positions", [][]float64{})
	v.SetDefault("beamform.sample_rate", 44100)
	v.SetDefault("beamform.mode", "sum")
	v.SetDefault("beamform.shift", true)
	v.SetDefault("beamform.workers", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
}

// loadConfig reads configuration from a TOML file.  If file is empty
// it looks for micarray.toml in /opt and then in the current directory;
// not finding one there is fine and leaves the defaults in place.
// Environment variables MICARRAY_<SECTION>_<KEY> override the file,
// and flags bound to v override both.
func loadConfig(v *viper.Viper, file string) (*config, error) {
	setDefaultConfig(v)
	v.SetEnvPrefix("micarray")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("micarray")
		v.SetConfigType("toml")
		v.AddConfigPath("/opt")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &nf) {
			return nil, fmt.Errorf("config: %w", err)
		}
		log.Debug().Msg("no micarray.toml found; using defaults")
	} else {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("config loaded")
	}
	cfg := &config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate returns every problem found, joined.
func (c *config) validate() error {
	var errs []error
	if err := c.Link.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Capture.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("capture.sample_rate must be positive, got %d", c.Capture.SampleRate))
	}
	if !(c.Capture.Seconds > 0) {
		errs = append(errs, fmt.Errorf("capture.seconds must be positive, got %g", c.Capture.Seconds))
	}
	if _, err := capture.ParseFraming(c.Capture.Framing); err != nil {
		errs = append(errs, err)
	}
	if c.Link.Baud > 0 && fpga.BytesPerSecond(c.Capture.SampleRate) > fpga.LinkCapacity(c.Link.Baud) {
		log.Warn().Int("baud", c.Link.Baud).Int("rate", c.Capture.SampleRate).Msg("sample rate exceeds link capacity; expect dropped bytes")
	}
	if err := c.Array.validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Beamform.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("beamform.sample_rate must not be negative, got %d", c.Beamform.SampleRate))
	}
	if _, err := beamform.ParseMode(c.Beamform.Mode); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// mode is the parsed beamform mode; validate has already checked it.
func (c *config) mode() beamform.Mode {
	m, _ := beamform.ParseMode(c.Beamform.Mode)
	return m
}
