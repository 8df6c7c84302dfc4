package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SqliteConfig holds SQLite storage backend settings.
type SqliteConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// StorageConfig selects and parameterizes the storage backend.
type StorageConfig struct {
	Type   string       `json:"type" mapstructure:"type"`
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`
	Sqlite SqliteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// Storage returns the storage section of the loaded configuration.
func Storage() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		Sqlite: SqliteConfig{
			Path: viper.GetString("storage.sqlite.path"),
		},
	}
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("api.serverUrl", "https://studio.skybrush.io")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("show.fps", 25)
	viper.SetDefault("show.origin", "")

	viper.SetDefault("safety.proximityThreshold", 3.0)

	viper.SetDefault("takeoff.velocity", 1.5)
	viper.SetDefault("takeoff.altitude", 6.0)
	viper.SetDefault("takeoff.layerHeight", 5.0)

	viper.SetDefault("transition.maxVelocityXY", 8.0)
	viper.SetDefault("transition.maxVelocityZ", 2.5)
	viper.SetDefault("transition.maxAcceleration", 4.0)

	viper.SetDefault("rth.minDistance", 3.0)

	viper.SetDefault("landing.velocity", 1.0)
	viper.SetDefault("landing.altitude", 0.0)
	viper.SetDefault("landing.spindownTime", 5.0)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./shows")
	viper.SetDefault("storage.memory.compressOutput", false)
	viper.SetDefault("storage.sqlite.path", "./choreo.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "choreo")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "choreo-metrics")
	viper.SetDefault("influx.bucket", "show_metrics")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.endpoint", "localhost:4318")

	viper.SetConfigName("choreo.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetFloat64 returns a float config value.
func GetFloat64(key string) float64 {
	return viper.GetFloat64(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
