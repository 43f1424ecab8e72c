package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/glossopoeia/rexxcore/object"
	"github.com/glossopoeia/rexxcore/runtime"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type Numeric struct {
	Digits int    `yaml:"digits"`
	Fuzz   int    `yaml:"fuzz"`
	Form   string `yaml:"form"`
}

// Interpreter settings as read from a YAML file. Fields left out of the file
// keep their defaults.
type Config struct {
	// Clauses an activation runs before other activities get a turn.
	MaxInstructions int `yaml:"max_instructions"`
	// Zero disables the time slice ticker.
	TimeSlice           time.Duration `yaml:"time_slice"`
	MaxThreadPoolSize   int           `yaml:"max_thread_pool_size"`
	ActivationCacheSize int           `yaml:"activation_cache_size"`
	Numeric             Numeric       `yaml:"numeric"`
	Trace               string        `yaml:"trace"`
	Address             string        `yaml:"address"`
	LogLevel            string        `yaml:"log_level"`
	// Directories searched for external routines and REQUIRES packages.
	Path []string `yaml:"path"`
}

func Default() Config {
	return Config{
		MaxInstructions:     100,
		MaxThreadPoolSize:   5,
		ActivationCacheSize: 5,
		Numeric: Numeric{
			Digits: object.DefaultNumeric.Digits,
			Fuzz:   object.DefaultNumeric.Fuzz,
			Form:   object.DefaultNumeric.Form.String(),
		},
		Trace:    "N",
		Address:  "SYSTEM",
		LogLevel: "warn",
	}
}

// Read a config file over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Report every setting outside its allowed range.
func (c Config) Validate() error {
	var errs []error
	if c.MaxInstructions <= 0 {
		errs = append(errs, fmt.Errorf("max_instructions must be positive, got %d", c.MaxInstructions))
	}
	if c.TimeSlice < 0 {
		errs = append(errs, fmt.Errorf("time_slice must not be negative, got %v", c.TimeSlice))
	}
	if c.MaxThreadPoolSize < 0 {
		errs = append(errs, fmt.Errorf("max_thread_pool_size must not be negative, got %d", c.MaxThreadPoolSize))
	}
	if c.ActivationCacheSize < 0 {
		errs = append(errs, fmt.Errorf("activation_cache_size must not be negative, got %d", c.ActivationCacheSize))
	}
	if c.Numeric.Digits < 1 {
		errs = append(errs, fmt.Errorf("numeric digits must be positive, got %d", c.Numeric.Digits))
	}
	if c.Numeric.Fuzz < 0 || c.Numeric.Fuzz >= c.Numeric.Digits {
		errs = append(errs, fmt.Errorf("numeric fuzz must be at least 0 and less than digits, got %d", c.Numeric.Fuzz))
	}
	if _, err := c.form(); err != nil {
		errs = append(errs, err)
	}
	if _, ok := runtime.ParseTrace(c.Trace); !ok {
		errs = append(errs, fmt.Errorf("invalid trace setting %q", c.Trace))
	}
	if strings.TrimSpace(c.Address) == "" {
		errs = append(errs, errors.New("address must not be empty"))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c Config) form() (object.Form, error) {
	switch strings.ToUpper(c.Numeric.Form) {
	case "SCIENTIFIC", "":
		return object.Scientific, nil
	case "ENGINEERING":
		return object.Engineering, nil
	}
	return 0, fmt.Errorf("numeric form must be SCIENTIFIC or ENGINEERING, got %q", c.Numeric.Form)
}

func (c Config) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	return level, nil
}

// Apply the settings on top of a set of manager options.
func (c Config) Apply(opts *runtime.Options) error {
	if err := c.Validate(); err != nil {
		return err
	}
	form, _ := c.form()
	trace, _ := runtime.ParseTrace(c.Trace)
	opts.MaxInstructions = c.MaxInstructions
	opts.TimeSlice = c.TimeSlice
	opts.MaxThreadPoolSize = c.MaxThreadPoolSize
	opts.ActivationCacheSize = c.ActivationCacheSize
	opts.Numeric = object.NumericSettings{Digits: c.Numeric.Digits, Fuzz: c.Numeric.Fuzz, Form: form}
	opts.Trace = trace
	opts.Address = strings.ToUpper(c.Address)
	return nil
}
