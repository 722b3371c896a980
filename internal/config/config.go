package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// BLE drivers.
const (
	DriverBluez = "bluez"
	DriverSim   = "sim"
)

// Config is the typed view of configs/config.yml.
type Config struct {
	Port       string
	Log        LogConfig
	DB         DBConfig
	Backend    BackendConfig
	BLE        BLEConfig
	Sim        SimConfig
	Irrigation IrrigationConfig
	MQTT       MQTTConfig
	Device     DeviceConfig
}

type LogConfig struct {
	Level    string
	Encoding string
}

type DBConfig struct {
	Path string
}

type BackendConfig struct {
	URL     string
	Timeout time.Duration
}

type BLEConfig struct {
	Driver      string
	NamePrefix  string
	ServiceUUID string
	CharUUID    string
	ScanTimeout time.Duration
}

type SimConfig struct {
	Interval time.Duration
}

type IrrigationConfig struct {
	Tick            time.Duration
	MinMinutes      int
	MaxMinutes      int
	DefaultPlant    string
	FallbackMinutes int
	Plants          map[string]int
}

type MQTTConfig struct {
	Enabled     bool
	Broker      string
	ClientID    string
	TopicPrefix string
}

type DeviceConfig struct {
	DefaultID string
}

// SetDefaults registers the built-in values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("db.path", "greendrop.db")
	v.SetDefault("backend.url", "http://localhost:3000")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("ble.driver", DriverBluez)
	v.SetDefault("ble.name_prefix", "ESP32")
	v.SetDefault("ble.service_uuid", "12345678-1234-1234-1234-1234567890ab")
	v.SetDefault("ble.char_uuid", "abcd1234-abcd-1234-abcd-1234567890ab")
	v.SetDefault("ble.scan_timeout", 15*time.Second)
	v.SetDefault("sim.interval", 5*time.Second)
	v.SetDefault("irrigation.tick", time.Second)
	v.SetDefault("irrigation.min_minutes", 1)
	v.SetDefault("irrigation.max_minutes", 30)
	v.SetDefault("irrigation.default_plant", "Pasto")
	v.SetDefault("irrigation.fallback_minutes", 8)
	v.SetDefault("irrigation.plants", map[string]any{"Pasto": 12})
	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "greendrop")
	v.SetDefault("mqtt.topic_prefix", "greendrop")
	v.SetDefault("device.default_id", "ESP32-Riego")
}

// Load reads configs/config.yml (or the file given) on top of defaults and
// GREENDROP_* environment variables. A missing file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("greendrop")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) *Config {
	plants := map[string]int{}
	for name := range v.GetStringMap("irrigation.plants") {
		plants[name] = v.GetInt("irrigation.plants." + name)
	}
	return &Config{
		Port: v.GetString("port"),
		Log: LogConfig{
			Level:    v.GetString("log.level"),
			Encoding: v.GetString("log.encoding"),
		},
		DB: DBConfig{Path: v.GetString("db.path")},
		Backend: BackendConfig{
			URL:     strings.TrimRight(v.GetString("backend.url"), "/"),
			Timeout: v.GetDuration("backend.timeout"),
		},
		BLE: BLEConfig{
			Driver:      strings.ToLower(v.GetString("ble.driver")),
			NamePrefix:  v.GetString("ble.name_prefix"),
			ServiceUUID: v.GetString("ble.service_uuid"),
			CharUUID:    v.GetString("ble.char_uuid"),
			ScanTimeout: v.GetDuration("ble.scan_timeout"),
		},
		Sim: SimConfig{Interval: v.GetDuration("sim.interval")},
		Irrigation: IrrigationConfig{
			Tick:            v.GetDuration("irrigation.tick"),
			MinMinutes:      v.GetInt("irrigation.min_minutes"),
			MaxMinutes:      v.GetInt("irrigation.max_minutes"),
			DefaultPlant:    v.GetString("irrigation.default_plant"),
			FallbackMinutes: v.GetInt("irrigation.fallback_minutes"),
			Plants:          plants,
		},
		MQTT: MQTTConfig{
			Enabled:     v.GetBool("mqtt.enabled"),
			Broker:      v.GetString("mqtt.broker"),
			ClientID:    v.GetString("mqtt.client_id"),
			TopicPrefix: v.GetString("mqtt.topic_prefix"),
		},
		Device: DeviceConfig{DefaultID: v.GetString("device.default_id")},
	}
}

// Validate rejects settings the daemon cannot run with.
func (c *Config) Validate() error {
	switch c.BLE.Driver {
	case DriverBluez, DriverSim:
	default:
		return fmt.Errorf("invalid ble.driver %q: must be %q or %q", c.BLE.Driver, DriverBluez, DriverSim)
	}
	if c.Backend.URL == "" {
		return errors.New("backend.url is required")
	}
	if c.Irrigation.Tick <= 0 {
		return errors.New("irrigation.tick must be > 0")
	}
	if c.Irrigation.MinMinutes < 1 || c.Irrigation.MaxMinutes < c.Irrigation.MinMinutes {
		return fmt.Errorf("invalid irrigation range [%d, %d]", c.Irrigation.MinMinutes, c.Irrigation.MaxMinutes)
	}
	return nil
}
