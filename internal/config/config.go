package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Classifier ClassifierConfig
	Admin      AdminConfig
	Reward     RewardConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MigrationsDir string `mapstructure:"migrations_dir"`
}

type RedisConfig struct {
	Addr     string
	Password string
	// Minimum delay between screenshot submissions per session and step.
	// Zero disables the cooldown even when redis is configured.
	SubmitCooldown time.Duration `mapstructure:"submit_cooldown"`
}

type ClassifierConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string
	Timeout time.Duration
	// Rubric overrides. Empty means the built-in rubric for that step.
	Step1Rubric     string `mapstructure:"step1_rubric"`
	Step2Rubric     string `mapstructure:"step2_rubric"`
	Step1RubricFile string `mapstructure:"step1_rubric_file"`
	Step2RubricFile string `mapstructure:"step2_rubric_file"`
}

type AdminConfig struct {
	Username  string
	Password  string
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type RewardConfig struct {
	DriveLink string `mapstructure:"drive_link"`
}

type LogConfig struct {
	Level string
	JSON  bool
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "procbse")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.migrations_dir", "migrations")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.submit_cooldown", 10*time.Second)

	v.SetDefault("classifier.base_url", "https://ai.gateway.lovable.dev/v1")
	v.SetDefault("classifier.api_key", "")
	v.SetDefault("classifier.model", "google/gemini-2.5-flash")
	v.SetDefault("classifier.timeout", 60*time.Second)
	v.SetDefault("classifier.step1_rubric", "")
	v.SetDefault("classifier.step2_rubric", "")
	v.SetDefault("classifier.step1_rubric_file", "")
	v.SetDefault("classifier.step2_rubric_file", "")

	v.SetDefault("admin.username", "")
	v.SetDefault("admin.password", "")
	v.SetDefault("admin.jwt_secret", "")
	v.SetDefault("admin.token_ttl", 12*time.Hour)

	v.SetDefault("reward.drive_link", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Classifier.resolveRubricFiles(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the secrets that have no sane default. Split from Load so
// tests can exercise Load without a full environment.
func (c *Config) Validate() error {
	if c.Classifier.APIKey == "" {
		return fmt.Errorf("CLASSIFIER_API_KEY is required")
	}
	if c.Reward.DriveLink == "" {
		return fmt.Errorf("REWARD_DRIVE_LINK is required")
	}
	if c.Admin.Username == "" || c.Admin.Password == "" {
		return fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD are required")
	}
	if c.Admin.JWTSecret == "" {
		return fmt.Errorf("ADMIN_JWT_SECRET is required")
	}
	return nil
}

func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.DBName, c.Database.SSLMode)
}

func (c *ClassifierConfig) resolveRubricFiles() error {
	if c.Step1RubricFile != "" {
		data, err := os.ReadFile(c.Step1RubricFile)
		if err != nil {
			return fmt.Errorf("failed to read step 1 rubric file: %w", err)
		}
		c.Step1Rubric = strings.TrimSpace(string(data))
	}
	if c.Step2RubricFile != "" {
		data, err := os.ReadFile(c.Step2RubricFile)
		if err != nil {
			return fmt.Errorf("failed to read step 2 rubric file: %w", err)
		}
		c.Step2Rubric = strings.TrimSpace(string(data))
	}
	return nil
}
