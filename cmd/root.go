package cmd

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/cv-ranker/internal/api"
	"github.com/spigell/cv-ranker/internal/documents"
	"github.com/spigell/cv-ranker/internal/intake"
	"github.com/spigell/cv-ranker/internal/orchestrator"
	"github.com/spigell/cv-ranker/internal/tracing"
	"github.com/spigell/cv-ranker/internal/worker"
)

const (
	app = "cv-ranker"
)

type Config struct {
	AI           AIConfig            `mapstructure:"ai"`
	Storage      StorageConfig       `mapstructure:"storage"`
	Store        StoreConfig         `mapstructure:"store"`
	Worker       worker.Config       `mapstructure:"worker"`
	Orchestrator orchestrator.Config `mapstructure:"orchestrator"`
	Intake       intake.Config       `mapstructure:"intake"`
	HTTP         api.Config          `mapstructure:"http"`
	Tracing      tracing.Config      `mapstructure:"tracing"`
}

type AIConfig struct {
	Provider               string       `mapstructure:"provider"`
	RecommendationLanguage string       `mapstructure:"recommendation-language"`
	MaxLogLength           int          `mapstructure:"max-log-length"`
	Gemini                 GeminiConfig `mapstructure:"gemini"`
	Vertex                 VertexConfig `mapstructure:"vertex"`
}

type GeminiConfig struct {
	APIKey            string `mapstructure:"api-key"`
	APIKeyFile        string `mapstructure:"api-key-file"`
	Model             string `mapstructure:"model"`
	MaxRetries        int    `mapstructure:"max-retries"`
	RequestsPerMinute int    `mapstructure:"requests-per-minute"`
}

type VertexConfig struct {
	Project           string `mapstructure:"project"`
	Location          string `mapstructure:"location"`
	Model             string `mapstructure:"model"`
	MaxRetries        int    `mapstructure:"max-retries"`
	RequestsPerMinute int    `mapstructure:"requests-per-minute"`
}

type StorageConfig struct {
	Backend string                `mapstructure:"backend"`
	Dir     string                `mapstructure:"dir"`
	MinIO   documents.MinIOConfig `mapstructure:"minio"`
}

type StoreConfig struct {
	Backend    string `mapstructure:"backend"`
	SQLitePath string `mapstructure:"sqlite-path"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cv-ranker analyzes a batch of resumes against a job description and ranks the candidates",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	setDefaults()

	viper.SetEnvPrefix("CV_RANKER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("ai.gemini.api-key", "GEMINI_API_KEY"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cv-ranker.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.recommendation-language", "Portuguese")
	viper.SetDefault("ai.max-log-length", 200)
	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.max-retries", 3)
	viper.SetDefault("ai.vertex.location", "us-central1")
	viper.SetDefault("ai.vertex.model", "gemini-2.5-flash")
	viper.SetDefault("ai.vertex.max-retries", 3)

	viper.SetDefault("storage.backend", "fs")
	viper.SetDefault("storage.dir", "uploads")

	viper.SetDefault("store.backend", "memory")
	viper.SetDefault("store.sqlite-path", app+".db")

	viper.SetDefault("worker.max-attempts", 3)
	viper.SetDefault("worker.initial-backoff", 5*time.Second)
	viper.SetDefault("worker.backoff-multiplier", 2)

	viper.SetDefault("orchestrator.concurrency", 4)

	viper.SetDefault("intake.max-file-size", 10<<20)
	viper.SetDefault("intake.drop-duplicates", false)

	viper.SetDefault("http.addr", ":8080")
	viper.SetDefault("http.max-upload-memory", 32<<20)

	viper.SetDefault("tracing.exporter", "none")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	// The config file is optional unless it was given explicitly.
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
