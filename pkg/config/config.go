// Package config loads and validates the daemon configuration from YAML,
// layered over built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Duration accepts Go duration strings ("1500ms", "10s") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full daemon configuration.
type Config struct {
	Server Server `yaml:"server"`
	Serial Serial `yaml:"serial"`
	Events Events `yaml:"events"`
	Log    Log    `yaml:"log"`
}

// Server configures the HTTP surface.
type Server struct {
	ListenAddr      string   `yaml:"listen_addr" validate:"required,hostname_port"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" validate:"min=0"`
	MetricsEnabled  bool     `yaml:"metrics_enabled"`
}

// Serial configures the radio transport.
type Serial struct {
	BaudRate      int      `yaml:"baud_rate" validate:"required,min=1200"`
	ConfigTimeout Duration `yaml:"config_timeout" validate:"required,min=1000000"`
}

// Events configures the outbound event surfaces.
type Events struct {
	// NNGAddr, when set, binds a pub socket for out-of-process consumers
	NNGAddr string `yaml:"nng_addr" validate:"omitempty,uri"`
	// WebsocketWriteTimeout bounds a single frame write to a slow client
	WebsocketWriteTimeout Duration `yaml:"websocket_write_timeout" validate:"min=0"`
}

// Log configures the structured logger.
type Log struct {
	Level string `yaml:"level" validate:"required,oneof=debug info warn error"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: Server{
			ListenAddr:      "127.0.0.1:8080",
			ShutdownTimeout: Duration(10 * time.Second),
			MetricsEnabled:  true,
		},
		Serial: Serial{
			BaudRate:      115200,
			ConfigTimeout: Duration(1500 * time.Millisecond),
		},
		Events: Events{
			WebsocketWriteTimeout: Duration(10 * time.Second),
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path on top of the defaults and validates
// the result. An empty path returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the struct tags and reports the first offending field.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		return fmt.Errorf("field %s failed %q validation", f.Namespace(), f.Tag())
	}
	return err
}
