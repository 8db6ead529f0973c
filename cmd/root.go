package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app       = "interview-worker"
	envPrefix = "INTERVIEW_WORKER"
)

type Config struct {
	Redis    *RedisConfig    `mapstructure:"redis"`
	Stream   *StreamConfig   `mapstructure:"stream"`
	Database *DatabaseConfig `mapstructure:"database"`
	AI       *AIConfig       `mapstructure:"ai"`
	Metrics  *MetricsConfig  `mapstructure:"metrics"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type StreamConfig struct {
	Key            string        `mapstructure:"key"`
	Group          string        `mapstructure:"group"`
	Consumer       string        `mapstructure:"consumer"`
	UniqueConsumer bool          `mapstructure:"unique-consumer"`
	BatchSize      int           `mapstructure:"batch-size"`
	Block          time.Duration `mapstructure:"block"`
	ClaimMinIdle   time.Duration `mapstructure:"claim-min-idle"`
	MaxDeliveries  int64         `mapstructure:"max-deliveries"`
	DeadLetter     string        `mapstructure:"dead-letter"`
	ErrorBackoff   time.Duration `mapstructure:"error-backoff"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type AIConfig struct {
	Provider       string        `mapstructure:"provider"`
	RequestTimeout time.Duration `mapstructure:"request-timeout"`
	Gemini         *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

var defaults = map[string]any{
	"redis.addr":               "localhost:6379",
	"redis.password":           "",
	"redis.db":                 0,
	"stream.key":               "interview_events",
	"stream.group":             "interview_processors",
	"stream.consumer":          "",
	"stream.unique-consumer":   false,
	"stream.batch-size":        10,
	"stream.block":             "5s",
	"stream.claim-min-idle":    "5m",
	"stream.max-deliveries":    5,
	"stream.dead-letter":       "",
	"stream.error-backoff":     "1s",
	"database.driver":          "sqlite",
	"database.dsn":             "interview-worker.db",
	"ai.provider":              "gemini",
	"ai.request-timeout":       "0s",
	"ai.gemini.api-key":        "",
	"ai.gemini.api-key-file":   "",
	"ai.gemini.model":          "gemini-2.5-flash",
	"ai.gemini.max-log-length": 200,
	"metrics.addr":             "",
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "interview-worker consumes interview session events and scores them with an LLM",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is interview-worker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Load .env file if it exists
	_ = godotenv.Load()

	for key, value := range defaults {
		viper.SetDefault(key, value)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional, every key can come from the environment.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
