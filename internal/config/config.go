package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for MediMate
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Reminders RemindersConfig `mapstructure:"reminders"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Address      string   `mapstructure:"address"`
	Port         int      `mapstructure:"port"`
	ReadTimeout  int      `mapstructure:"read_timeout"`
	WriteTimeout int      `mapstructure:"write_timeout"`
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// StorageConfig holds persistence settings
type StorageConfig struct {
	// Backend selects the document store: "badger" or "sqlite".
	Backend    string `mapstructure:"backend"`
	DataDir    string `mapstructure:"data_dir"`
	BadgerPath string `mapstructure:"badger_path"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// RemindersConfig holds notification scheduling settings
type RemindersConfig struct {
	// AppointmentLeadMinutes is how long before an appointment its
	// one-shot reminder fires.
	AppointmentLeadMinutes int `mapstructure:"appointment_lead_minutes"`
	// PermissionGranted models the platform notification permission. There
	// is no OS prompt in a headless deployment, so it is a config switch.
	PermissionGranted bool `mapstructure:"permission_granted"`
}

// Load loads configuration from file, env, and defaults
func Load(configPath, dataDir string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if dataDir == "" {
		dataDir = getDefaultDataDir()
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v.Set("storage.data_dir", dataDir)
	v.Set("storage.badger_path", filepath.Join(dataDir, "badger"))
	v.Set("storage.sqlite_path", filepath.Join(dataDir, "medimate.db"))

	if configPath == "" {
		configPath = filepath.Join(dataDir, "medimate.yaml")
	}

	if _, err := os.Stat(configPath); err == nil {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// Environment variables (MEDIMATE_SERVER_PORT, MEDIMATE_STORAGE_BACKEND, etc.)
	v.SetEnvPrefix("MEDIMATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	loadEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", "127.0.0.1")
	v.SetDefault("server.port", 8750)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.allow_origins", []string{"*"})

	v.SetDefault("storage.backend", "badger")

	v.SetDefault("reminders.appointment_lead_minutes", 60)
	v.SetDefault("reminders.permission_granted", true)
}

func getDefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "medimate")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}

	return filepath.Join(home, ".local", "share", "medimate")
}

// loadEnvOverrides loads specific env vars that Viper doesn't map reliably
func loadEnvOverrides(cfg *Config) {
	getEnv := func(key, fallback string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		return fallback
	}

	cfg.Server.Address = getEnv("MEDIMATE_SERVER_ADDRESS", cfg.Server.Address)
	if port := os.Getenv("MEDIMATE_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	cfg.Storage.Backend = getEnv("MEDIMATE_STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.DataDir = getEnv("MEDIMATE_STORAGE_DATA_DIR", cfg.Storage.DataDir)

	if lead := os.Getenv("MEDIMATE_REMINDERS_APPOINTMENT_LEAD_MINUTES"); lead != "" {
		if m, err := strconv.Atoi(lead); err == nil {
			cfg.Reminders.AppointmentLeadMinutes = m
		}
	}
}

func validate(cfg *Config) error {
	switch cfg.Storage.Backend {
	case "badger", "sqlite":
	default:
		return fmt.Errorf("storage.backend must be badger or sqlite, got %q", cfg.Storage.Backend)
	}

	if cfg.Reminders.AppointmentLeadMinutes < 0 {
		return fmt.Errorf("reminders.appointment_lead_minutes must not be negative")
	}

	return nil
}
