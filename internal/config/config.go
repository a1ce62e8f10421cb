// Package config loads printerbot settings through viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ETA sources accepted by status.eta_source.
const (
	EtaSourceSlicer = "slicer"
	EtaSourceFile   = "file"
)

const envPrefix = "PRINTERBOT"

// Controller holds the connection settings for the printer controller.
type Controller struct {
	URL       string        `mapstructure:"url"`
	APIKey    string        `mapstructure:"api_key"`
	User      string        `mapstructure:"user"`
	Password  string        `mapstructure:"password"`
	TLSVerify bool          `mapstructure:"tls_verify"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// Devices names the controller power devices the bot drives.
type Devices struct {
	Power string `mapstructure:"power"`
	Light string `mapstructure:"light"`
}

// Status configures status report rendering and macro visibility.
type Status struct {
	EtaSource         string   `mapstructure:"eta_source"`
	Fields            []string `mapstructure:"fields"`
	HiddenMacros      []string `mapstructure:"hidden_macros"`
	ShowPrivateMacros bool     `mapstructure:"show_private_macros"`
	// Object name filters for the sensor report; empty means every object
	// of that kind.
	Sensors []string `mapstructure:"sensors"`
	Heaters []string `mapstructure:"heaters"`
	Fans    []string `mapstructure:"fans"`
	// Devices limits the power device report.
	Devices []string `mapstructure:"devices"`
}

type Server struct {
	Port   string `mapstructure:"port"`
	JWTKey string `mapstructure:"jwt_key"`
}

type MQTT struct {
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Config is the full application configuration.
type Config struct {
	Controller   Controller    `mapstructure:"controller"`
	Devices      Devices       `mapstructure:"devices"`
	Status       Status        `mapstructure:"status"`
	Namespace    string        `mapstructure:"namespace"`
	BotName      string        `mapstructure:"bot_name"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Server       Server        `mapstructure:"server"`
	DBPath       string        `mapstructure:"db_path"`
	MQTT         MQTT          `mapstructure:"mqtt"`
	LogLevel     string        `mapstructure:"log_level"`
}

// DefaultStatusFields is the status report content when none is configured.
var DefaultStatusFields = []string{
	"progress",
	"height",
	"filament_length",
	"filament_weight",
	"print_duration",
	"eta",
	"finish_time",
	"m117_status",
	"last_update_time",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("controller.url", "http://127.0.0.1:7125")
	v.SetDefault("controller.tls_verify", true)
	v.SetDefault("controller.timeout", 30*time.Second)
	v.SetDefault("status.eta_source", EtaSourceSlicer)
	v.SetDefault("status.fields", DefaultStatusFields)
	v.SetDefault("namespace", "printerbot")
	v.SetDefault("bot_name", "printerbot")
	v.SetDefault("poll_interval", 5*time.Second)
	v.SetDefault("server.port", "8080")
	v.SetDefault("db_path", "printerbot.db")
	v.SetDefault("mqtt.topic", "printerbot/state")
	v.SetDefault("mqtt.client_id", "printerbot")
	v.SetDefault("log_level", "info")
}

// Load reads configuration from path, or from configs/config.yml when path is
// empty. A missing default file is not an error; defaults and environment
// variables still apply.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.Controller.URL = strings.TrimRight(strings.TrimSpace(c.Controller.URL), "/")
	c.Devices.Power = strings.TrimSpace(c.Devices.Power)
	c.Devices.Light = strings.TrimSpace(c.Devices.Light)
	c.Status.EtaSource = strings.ToLower(strings.TrimSpace(c.Status.EtaSource))
	if c.Status.EtaSource != EtaSourceFile {
		c.Status.EtaSource = EtaSourceSlicer
	}
	for i, m := range c.Status.HiddenMacros {
		c.Status.HiddenMacros[i] = strings.ToUpper(strings.TrimSpace(m))
	}
}

// HasCredentials reports whether login credentials are configured.
func (c Controller) HasCredentials() bool {
	return c.User != "" && c.Password != ""
}
