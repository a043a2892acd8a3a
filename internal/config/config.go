package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	App struct {
		Port string `mapstructure:"port"`
		Env  string `mapstructure:"env"`
	} `mapstructure:"app"`
	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Redis struct {
		Enabled  bool   `mapstructure:"enabled"`
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Kafka struct {
		Enabled bool     `mapstructure:"enabled"`
		Brokers []string `mapstructure:"brokers"`
	} `mapstructure:"kafka"`
	Gateway struct {
		BaseURL     string `mapstructure:"baseUrl"`
		AccessToken string `mapstructure:"accessToken"`
		// WebhookSecret authenticates incoming notifications. There is
		// no default: an empty value fails startup.
		WebhookSecret   string `mapstructure:"webhookSecret"`
		CallbackBaseURL string `mapstructure:"callbackBaseUrl"`
		ReturnURL       string `mapstructure:"returnUrl"`
	} `mapstructure:"gateway"`
	Auth struct {
		JWTSecret string `mapstructure:"jwtSecret"`
	} `mapstructure:"auth"`
}

// LoadConfig loads configuration from config.yaml and the environment.
func LoadConfig(path string) (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		err := godotenv.Load(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.Gateway.AccessToken == "" {
		return errors.New("config: gateway access token is required")
	}
	if c.Gateway.WebhookSecret == "" {
		return errors.New("config: webhook secret is required")
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("config: jwt secret is required")
	}
	if c.Database.DSN == "" {
		return errors.New("config: database dsn is required")
	}
	return nil
}
