package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/xaudioproject/webapiclient/internal/auth"
)

// ErrInvalidConfig is returned when required configuration fields are missing
var ErrInvalidConfig = errors.New("invalid configuration")

// envBindings maps configuration keys to the environment variables that
// override them.
var envBindings = map[string]string{
	"audio.input":       "AUDIO_INPUT",
	"audio.output":      "AUDIO_OUTPUT",
	"audio.from":        "AUDIO_FROM",
	"audio.to":          "AUDIO_TO",
	"audio.sample-rate": "AUDIO_SAMPLE_RATE",
	"xap.appid":         "XAP_APPID",
	"xap.appsecret":     "XAP_APPSECRET",
	"ws.url":            "WS_URL",
}

// Config mirrors the JSON configuration file
type Config struct {
	Audio AudioConfig `mapstructure:"audio"`
	XAP   XAPConfig   `mapstructure:"xap"`
	WS    WSConfig    `mapstructure:"ws"`
}

// AudioConfig describes the input audio and the language pair
type AudioConfig struct {
	Input      string `mapstructure:"input"`
	Output     string `mapstructure:"output"` // Optional: WAV file for received audio
	From       string `mapstructure:"from"`
	To         string `mapstructure:"to"`
	SampleRate int    `mapstructure:"sample-rate"`
}

// XAPConfig holds the application credentials
type XAPConfig struct {
	AppID     string `mapstructure:"appid"`
	AppSecret string `mapstructure:"appsecret"`
}

// WSConfig holds the streaming endpoint
type WSConfig struct {
	URL string `mapstructure:"url"`
}

// Load reads the JSON configuration at path. Variables from envFile are loaded
// into the environment first when the file exists, and environment variables
// listed in envBindings take precedence over values from the file.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read configuration %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}

	return &cfg, nil
}

// Credentials returns the application credentials
func (c *Config) Credentials() auth.Credentials {
	return auth.Credentials{
		AppID:     c.XAP.AppID,
		AppSecret: c.XAP.AppSecret,
	}
}

// ValidateCredentials checks the xap section
func (c *Config) ValidateCredentials() error {
	var missing []string
	if c.XAP.AppID == "" {
		missing = append(missing, "xap.appid")
	}
	if c.XAP.AppSecret == "" {
		missing = append(missing, "xap.appsecret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	return nil
}

// Validate checks everything needed to run a translation session
func (c *Config) Validate() error {
	if err := c.ValidateCredentials(); err != nil {
		return err
	}

	var missing []string
	if c.Audio.Input == "" {
		missing = append(missing, "audio.input")
	}
	if c.Audio.From == "" {
		missing = append(missing, "audio.from")
	}
	if c.Audio.To == "" {
		missing = append(missing, "audio.to")
	}
	if c.WS.URL == "" {
		missing = append(missing, "ws.url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}

	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("%w: audio.sample-rate must be positive, got %d", ErrInvalidConfig, c.Audio.SampleRate)
	}

	return nil
}
