package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// envPrefix namespaces every environment variable, e.g. STRESSDRIVE_BUFFER_SIZE.
const envPrefix = "STRESSDRIVE"

// Config holds the run settings. Environment variables supply the defaults
// and command line flags override them.
type Config struct {
	BufferSize  ByteSize `envconfig:"BUFFER_SIZE" default:"8MiB"`
	RegionSize  ByteSize `envconfig:"REGION_SIZE" default:"1GiB"`
	LogLevel    string   `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat   string   `envconfig:"LOG_FORMAT" default:"console"`
	Direct      bool     `envconfig:"DIRECT" default:"true"`
	KeepAwake   bool     `envconfig:"KEEP_AWAKE" default:"true"`
	MetricsFile string   `envconfig:"METRICS_FILE"`
}

func loadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("environment: %w", err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.BufferSize > math.MaxInt32 {
		return fmt.Errorf("buffer size %s is too large", c.BufferSize)
	}
	switch strings.ToLower(c.LogFormat) {
	case "console", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want console or json)", c.LogFormat)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// ByteSize is a size in bytes that parses k/m/g and KiB/MiB/GiB suffixes.
// It satisfies both envconfig.Decoder and pflag.Value.
type ByteSize uint64

func (b *ByteSize) Decode(value string) error { return b.Set(value) }

func (b *ByteSize) Set(value string) error {
	v, err := parseSize(value)
	if err != nil {
		return err
	}
	*b = ByteSize(v)
	return nil
}

func (b ByteSize) Type() string { return "size" }

func (b ByteSize) String() string {
	switch {
	case b >= 1<<30 && b%(1<<30) == 0:
		return fmt.Sprintf("%dGiB", b>>30)
	case b >= 1<<20 && b%(1<<20) == 0:
		return fmt.Sprintf("%dMiB", b>>20)
	case b >= 1<<10 && b%(1<<10) == 0:
		return fmt.Sprintf("%dKiB", b>>10)
	}
	return strconv.FormatUint(uint64(b), 10)
}

func parseSize(s string) (uint64, error) {
	ss := strings.TrimSpace(strings.ToLower(s))
	if ss == "" {
		return 0, fmt.Errorf("empty size")
	}
	ss = strings.TrimSuffix(ss, "ib")
	ss = strings.TrimSuffix(ss, "b")
	mult := uint64(1)
	switch {
	case strings.HasSuffix(ss, "k"):
		mult = 1 << 10
		ss = strings.TrimSuffix(ss, "k")
	case strings.HasSuffix(ss, "m"):
		mult = 1 << 20
		ss = strings.TrimSuffix(ss, "m")
	case strings.HasSuffix(ss, "g"):
		mult = 1 << 30
		ss = strings.TrimSuffix(ss, "g")
	}
	v, err := strconv.ParseUint(strings.TrimSpace(ss), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	if v == 0 {
		return 0, fmt.Errorf("size %q must be positive", s)
	}
	if v > math.MaxUint64/mult {
		return 0, fmt.Errorf("size %q overflows", s)
	}
	return v * mult, nil
}
