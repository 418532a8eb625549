package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

//go:embed config.yml
var embeddedConfig []byte

type Config struct {
	Mode     string `mapstructure:"mode"`
	Handlers struct {
		Prometheus struct {
			Port string `mapstructure:"port"`
		} `mapstructure:"prometheus"`
	} `mapstructure:"handlers"`
	Repositories struct {
		Postgres struct {
			Host     string `mapstructure:"host"`
			Password string `mapstructure:"password"`
			Port     string `mapstructure:"port"`
			Username string `mapstructure:"username"`
			DB       string `mapstructure:"db"`
			SSLMode  string `mapstructure:"sslmode"`
		} `mapstructure:"postgres"`
	} `mapstructure:"repositories"`
	Server struct {
		HTTPPort string        `mapstructure:"HTTPPort"`
		Timeout  time.Duration `mapstructure:"HTTPTimeout"`
		// BaseURL is used to build absolute URLs for stored media
		// references (e.g. profile pictures).
		BaseURL string `mapstructure:"baseURL"`
	} `mapstructure:"server"`
	Movies MoviesConfig `mapstructure:"movies"`
}

// MoviesConfig holds everything the upstream movie-metadata client needs.
// The API key never lives in the config file; it is bound to the
// MOVIE_API_TOKEN environment variable and injected into the client at
// construction.
type MoviesConfig struct {
	BaseURL    string        `mapstructure:"baseURL"`
	HostHeader string        `mapstructure:"hostHeader"`
	APIKey     string        `mapstructure:"apiKey"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func InitConfig() (Config, error) {
	var config Config
	v := viper.New()

	// Add file-based config paths
	v.AddConfigPath(".")
	v.AddConfigPath("config")
	v.AddConfigPath("/app/config")

	v.SetConfigName("config")
	v.SetConfigType("yml")

	// The upstream credential comes from the environment only.
	if err := v.BindEnv("movies.apiKey", "MOVIE_API_TOKEN"); err != nil {
		return Config{}, fmt.Errorf("failed to bind MOVIE_API_TOKEN: %w", err)
	}

	// Try to load file-based config
	err := v.ReadInConfig()
	if err != nil {
		fmt.Printf("Warning: Failed to find file-based config: %s. Falling back to embedded config.\n", err)
		if err = v.ReadConfig(bytes.NewReader(embeddedConfig)); err != nil {
			return Config{}, fmt.Errorf("failed to read embedded config: %s", err)
		}
	}

	// Unmarshal the config into the Config struct
	if err = v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %s", err)
	}
	return config, nil
}
