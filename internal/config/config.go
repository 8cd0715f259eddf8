// Package config loads worker settings from skillmatch.yaml, the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/muhammadolammi/skillmatchworker/internal/catalog"
	"github.com/muhammadolammi/skillmatchworker/internal/evaluation"
	"github.com/muhammadolammi/skillmatchworker/internal/github"
	"github.com/muhammadolammi/skillmatchworker/internal/inference"
	"github.com/muhammadolammi/skillmatchworker/internal/match"
	"github.com/muhammadolammi/skillmatchworker/internal/r2"
)

const (
	App            = "skillmatch"
	DefaultConfig  = App + ".yaml"
	DefaultDBPath  = "sqlite://skillmatch.db"
	envPrefix      = "SKILLMATCH"
	defaultWorkers = 3
)

type Config struct {
	Debug       bool   `mapstructure:"debug"`
	JSON        bool   `mapstructure:"json"`
	DatabaseURL string `mapstructure:"db-url"`
	RabbitMQURL string `mapstructure:"rabbitmq-url"`

	Worker     WorkerConfig     `mapstructure:"worker"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	GitHub     GitHubConfig     `mapstructure:"github"`
	Documents  DocumentsConfig  `mapstructure:"documents"`
	R2         R2Config         `mapstructure:"r2"`
	AI         AIConfig         `mapstructure:"ai"`
	Catalog    CatalogConfig    `mapstructure:"catalog"`
	Match      MatchConfig      `mapstructure:"match"`
}

type WorkerConfig struct {
	// Consumers is the number of queue consumers, each with its own
	// connection.
	Consumers int `mapstructure:"consumers"`
	// Buffer sizes the in-process queue used by inline evaluations.
	Buffer int `mapstructure:"buffer"`
	// RequeueDelay is how long a consumer holds a delivery for a job that is
	// still live before requeueing it.
	RequeueDelay time.Duration `mapstructure:"requeue-delay"`
}

type EvaluationConfig struct {
	MaxSourceUnits       int           `mapstructure:"max-source-units"`
	MaxCommits           int           `mapstructure:"max-commits"`
	MaxTreeEntries       int           `mapstructure:"max-tree-entries"`
	BundleCommitMessages int           `mapstructure:"bundle-commit-messages"`
	BundleDependencies   int           `mapstructure:"bundle-dependencies"`
	UnitConcurrency      int           `mapstructure:"unit-concurrency"`
	LiveJobTTL           time.Duration `mapstructure:"live-job-ttl"`
}

type GitHubConfig struct {
	Token             string        `mapstructure:"token"`
	BaseURL           string        `mapstructure:"base-url"`
	RequestsPerSecond float64       `mapstructure:"requests-per-second"`
	Burst             int           `mapstructure:"burst"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type DocumentsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Prefix  string `mapstructure:"prefix"`
}

type R2Config struct {
	AccountID string `mapstructure:"account-id"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access-key"`
	SecretKey string `mapstructure:"secret-key"`
}

type AIConfig struct {
	Backend      string        `mapstructure:"backend"`
	APIKey       string        `mapstructure:"api-key"`
	Model        string        `mapstructure:"model"`
	Attempts     int           `mapstructure:"attempts"`
	Backoff      time.Duration `mapstructure:"backoff"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxLogLength int           `mapstructure:"max-log-length"`
}

type CatalogConfig struct {
	Source      string        `mapstructure:"source"`
	LockPath    string        `mapstructure:"lock-path"`
	LockTimeout time.Duration `mapstructure:"lock-timeout"`
}

type MatchConfig struct {
	Limit        int `mapstructure:"limit"`
	Explanations int `mapstructure:"explanations"`
}

// envNames keeps the variable names the worker has always read.
var envNames = map[string]string{
	"db-url":        "DB_URL",
	"rabbitmq-url":  "RABBITMQ_URL",
	"ai.api-key":    "GOOGLE_API_KEY",
	"r2.account-id": "R2_ACCCOUNT_ID",
	"r2.bucket":     "R2_BUCKET",
	"r2.access-key": "R2_ACCESS_KEY",
	"r2.secret-key": "R2_SECRET_KEY",
	"github.token":  "GITHUB_TOKEN",
}

func setDefaults(v *viper.Viper) {
	eval := evaluation.DefaultOptions()

	v.SetDefault("debug", false)
	v.SetDefault("json", false)
	v.SetDefault("db-url", DefaultDBPath)
	v.SetDefault("rabbitmq-url", "")

	v.SetDefault("worker.consumers", defaultWorkers)
	v.SetDefault("worker.buffer", 64)
	v.SetDefault("worker.requeue-delay", 10*time.Second)

	v.SetDefault("evaluation.max-source-units", eval.MaxSourceUnits)
	v.SetDefault("evaluation.max-commits", eval.MaxCommits)
	v.SetDefault("evaluation.max-tree-entries", eval.MaxTreeEntries)
	v.SetDefault("evaluation.bundle-commit-messages", eval.BundleCommitMessages)
	v.SetDefault("evaluation.bundle-dependencies", eval.BundleDependencies)
	v.SetDefault("evaluation.unit-concurrency", eval.UnitConcurrency)
	v.SetDefault("evaluation.live-job-ttl", eval.LiveJobTTL)

	v.SetDefault("github.token", "")
	v.SetDefault("github.base-url", "")
	v.SetDefault("github.requests-per-second", 10.0)
	v.SetDefault("github.burst", 5)
	v.SetDefault("github.timeout", 30*time.Second)

	v.SetDefault("documents.enabled", false)
	v.SetDefault("documents.prefix", "resumes")

	v.SetDefault("r2.account-id", "")
	v.SetDefault("r2.bucket", "")
	v.SetDefault("r2.access-key", "")
	v.SetDefault("r2.secret-key", "")

	v.SetDefault("ai.backend", inference.BackendADK)
	v.SetDefault("ai.api-key", "")
	v.SetDefault("ai.model", inference.DefaultModel)
	v.SetDefault("ai.attempts", 2)
	v.SetDefault("ai.backoff", 500*time.Millisecond)
	v.SetDefault("ai.timeout", 90*time.Second)
	v.SetDefault("ai.max-log-length", 200)

	v.SetDefault("catalog.source", "")
	v.SetDefault("catalog.lock-path", "")
	v.SetDefault("catalog.lock-timeout", 30*time.Second)

	v.SetDefault("match.limit", match.DefaultLimit)
	v.SetDefault("match.explanations", match.DefaultExplanations)
}

// Bind prepares v: defaults, the legacy environment names and
// SKILLMATCH_* overrides for every other key (dots and dashes become
// underscores).
func Bind(v *viper.Viper) error {
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, env := range envNames {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("binding %s environment variable: %w", env, err)
		}
	}
	return nil
}

// Load reads .env (when present), then cfgFile or skillmatch.yaml in the
// working directory. Only an explicitly named config file must exist.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	_ = godotenv.Load()

	if err := Bind(v); err != nil {
		return nil, err
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(App)
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return Decode(v)
}

// Decode unmarshals the settings held by v.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.AI.Backend = strings.ToLower(strings.TrimSpace(cfg.AI.Backend))
	return &cfg, nil
}

// RequireQueue checks the settings needed to talk to RabbitMQ.
func (c *Config) RequireQueue() error {
	if c.RabbitMQURL == "" {
		return errors.New("empty RABBITMQ_URL in environment")
	}
	return nil
}

// RequireWorker checks everything a job runner needs.
func (c *Config) RequireWorker() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("empty DB_URL in environment"))
	}
	if c.AI.APIKey == "" {
		errs = append(errs, errors.New("empty GOOGLE_API_KEY in env"))
	}
	switch c.AI.Backend {
	case inference.BackendADK, inference.BackendGenAI:
	default:
		errs = append(errs, fmt.Errorf("unknown ai backend %q", c.AI.Backend))
	}
	if c.Worker.Consumers <= 0 {
		errs = append(errs, fmt.Errorf("worker.consumers must be positive, got %d", c.Worker.Consumers))
	}
	if c.Documents.Enabled {
		if err := c.R2Config().Validate(); err != nil {
			errs = append(errs, fmt.Errorf("documents enabled: %w", err))
		}
	}
	return errors.Join(errs...)
}

// R2Configured reports whether any R2 credential was provided.
func (c *Config) R2Configured() bool {
	return c.R2 != R2Config{}
}

func (c *Config) R2Config() r2.Config {
	return r2.Config{
		AccountID: c.R2.AccountID,
		Bucket:    c.R2.Bucket,
		AccessKey: c.R2.AccessKey,
		SecretKey: c.R2.SecretKey,
	}
}

func (c *Config) EvaluationOptions() evaluation.Options {
	return evaluation.Options{
		MaxSourceUnits:       c.Evaluation.MaxSourceUnits,
		MaxCommits:           c.Evaluation.MaxCommits,
		MaxTreeEntries:       c.Evaluation.MaxTreeEntries,
		BundleCommitMessages: c.Evaluation.BundleCommitMessages,
		BundleDependencies:   c.Evaluation.BundleDependencies,
		UnitConcurrency:      c.Evaluation.UnitConcurrency,
		LiveJobTTL:           c.Evaluation.LiveJobTTL,
	}
}

func (c *Config) GitHubOptions() github.Options {
	return github.Options{
		Token:             c.GitHub.Token,
		BaseURL:           c.GitHub.BaseURL,
		RequestsPerSecond: c.GitHub.RequestsPerSecond,
		Burst:             c.GitHub.Burst,
		Timeout:           c.GitHub.Timeout,
	}
}

func (c *Config) InferenceOptions() inference.Options {
	return inference.Options{
		Backend:      c.AI.Backend,
		Attempts:     c.AI.Attempts,
		Backoff:      c.AI.Backoff,
		Timeout:      c.AI.Timeout,
		MaxLogLength: c.AI.MaxLogLength,
	}
}

func (c *Config) CatalogOptions() catalog.Options {
	return catalog.Options{
		LockPath:    c.Catalog.LockPath,
		LockTimeout: c.Catalog.LockTimeout,
	}
}

func (c *Config) MatchOptions() match.Options {
	return match.Options{
		Limit:        c.Match.Limit,
		Explanations: c.Match.Explanations,
	}
}
