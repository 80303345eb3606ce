// Package config loads InkBoard settings from defaults, an optional TOML file
// and command line flags, in that order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"InkBoard/internal/message"
	"InkBoard/internal/state"
)

const (
	DefaultPort = 8888
	URLScheme   = "ws://"
	WSPath      = "/ws"

	// MaxSubscribeRadius bounds the initial subscription to a 129x129 square.
	MaxSubscribeRadius = 64
)

type Config struct {
	// Hub
	Addr      string `toml:"addr"`
	Advertise bool   `toml:"advertise"`

	// Client
	URL             string  `toml:"url"`
	ChunkSize       float32 `toml:"chunk_size"`
	Mode            string  `toml:"mode"`
	Width           float32 `toml:"width"`
	Color           string  `toml:"color"`
	CenterX         int32   `toml:"center_x"`
	CenterY         int32   `toml:"center_y"`
	SubscribeRadius int32   `toml:"subscribe_radius"`

	// Recorder
	Out      string   `toml:"out"`
	Duration Duration `toml:"duration"`

	Discovery Duration `toml:"discovery_timeout"`
	LogLevel  string   `toml:"log_level"`
}

// Duration lets TOML files use strings such as "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func Default() *Config {
	return &Config{
		Addr:            fmt.Sprintf(":%d", DefaultPort),
		ChunkSize:       message.DefaultChunkSize,
		Mode:            state.ModeStream,
		Width:           2,
		Color:           "#000000",
		SubscribeRadius: 1,
		Discovery:       Duration{3 * time.Second},
		LogLevel:        "info",
	}
}

// Load returns the defaults overlaid with the TOML file at path, if any.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config keys in %s: %v", path, undecoded)
	}
	return cfg, nil
}

// Parse reads flags for a subcommand. A -config file is loaded first and
// flags given explicitly on the command line override it.
func Parse(name string, args []string) (*Config, []string, error) {
	pre := flag.NewFlagSet(name, flag.ContinueOnError)
	path := pre.String("config", "", "TOML configuration file")
	Default().bind(pre)
	if err := pre.Parse(args); err != nil {
		return nil, nil, err
	}

	cfg, err := Load(*path)
	if err != nil {
		return nil, nil, err
	}
	// Second pass: the file's values are now the flag defaults.
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.String("config", *path, "TOML configuration file")
	cfg.bind(fs)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, fs.Args(), nil
}

func (c *Config) bind(fs *flag.FlagSet) {
	fs.StringVar(&c.Addr, "addr", c.Addr, "hub listen address")
	fs.BoolVar(&c.Advertise, "advertise", c.Advertise, "advertise the hub over mDNS")
	fs.StringVar(&c.URL, "url", c.URL, "hub websocket URL")
	fs.Func("chunk-size", "chunk size in canvas units", func(s string) error {
		v, err := strconv.ParseFloat(s, 32)
		c.ChunkSize = float32(v)
		return err
	})
	fs.StringVar(&c.Mode, "mode", c.Mode, "stroke capture mode: batch or stream")
	fs.Func("width", "stroke width", func(s string) error {
		v, err := strconv.ParseFloat(s, 32)
		c.Width = float32(v)
		return err
	})
	fs.StringVar(&c.Color, "color", c.Color, "stroke colour as #rrggbb")
	fs.Func("radius", "subscription radius in chunks", func(s string) error {
		v, err := strconv.ParseInt(s, 10, 32)
		c.SubscribeRadius = int32(v)
		return err
	})
	fs.StringVar(&c.Out, "out", c.Out, "output file for record (.pdf or .png)")
	fs.DurationVar(&c.Duration.Duration, "duration", c.Duration.Duration, "stop recording after this long (0 waits for a signal)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
}

func (c *Config) Validate() error {
	var errs []error
	if !(c.ChunkSize > 0) {
		errs = append(errs, fmt.Errorf("chunk_size must be positive, got %v", c.ChunkSize))
	}
	if c.Mode != state.ModeBatch && c.Mode != state.ModeStream {
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", state.ModeBatch, state.ModeStream, c.Mode))
	}
	if !message.Width(c.Width).Valid() {
		errs = append(errs, fmt.Errorf("width must be non-negative, got %v", c.Width))
	}
	if _, err := ParseColor(c.Color); err != nil {
		errs = append(errs, err)
	}
	if c.SubscribeRadius < 0 || c.SubscribeRadius > MaxSubscribeRadius {
		errs = append(errs, fmt.Errorf("subscribe_radius must be between 0 and %d, got %d", MaxSubscribeRadius, c.SubscribeRadius))
	}
	return errors.Join(errs...)
}

// StrokeColor returns the configured colour.
func (c *Config) StrokeColor() message.Color {
	col, err := ParseColor(c.Color)
	if err != nil {
		return message.Black
	}
	return col
}

// Interest is the subscription a client starts with.
func (c *Config) Interest() message.Subscription {
	return message.SubscriptionAround(message.Chunk(c.CenterX, c.CenterY), c.SubscribeRadius)
}

// ParseColor parses "#rrggbb".
func ParseColor(s string) (message.Color, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return nil, fmt.Errorf("invalid color %q: want #rrggbb", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return message.NewRGB(uint8(v>>16), uint8(v>>8), uint8(v)), nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
