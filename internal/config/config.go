package config

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"vqlbench/internal/runinfo"
)

// Config captures all runtime options for an evaluation run.
type Config struct {
	Executor   ExecutorConfig     `yaml:"executor"`
	Evaluation EvaluationConfig   `yaml:"evaluation"`
	Input      InputConfig        `yaml:"input"`
	Output     OutputConfig       `yaml:"output"`
	Summary    SummaryConfig      `yaml:"summary"`
	Logging    Logging            `yaml:"logging"`
	Metrics    MetricsConfig      `yaml:"metrics"`
	Storage    StorageConfig      `yaml:"storage"`
	RunInfo    *runinfo.BasicInfo `yaml:"-"`
}

// Evaluation modes.
const (
	ModeF1       = "f1"
	ModeVES      = "ves"
	ModeCombined = "combined"
)

// Executor drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "pgx"
	DriverCatalog  = "catalog"
)

// ExecutorConfig selects and configures the query engine adapter.
type ExecutorConfig struct {
	Driver             string          `yaml:"driver"`
	DSN                string          `yaml:"dsn"`
	Database           string          `yaml:"database"`
	RowLimit           int             `yaml:"row_limit"`
	StatementTimeoutMs int             `yaml:"statement_timeout_ms"`
	CheckConnection    bool            `yaml:"check_connection"`
	Catalog            CatalogConfig   `yaml:"catalog"`
	RateLimit          RateLimitConfig `yaml:"rate_limit"`
}

// CatalogConfig configures the Data Catalog execution endpoint.
type CatalogConfig struct {
	URL       string `yaml:"url"`
	ServerID  int    `yaml:"server_id"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	VerifySSL bool   `yaml:"verify_ssl"`
}

// RateLimitConfig throttles calls to the query engine. QPS <= 0 disables it.
type RateLimitConfig struct {
	QPS   float64 `yaml:"qps"`
	Burst int     `yaml:"burst"`
}

// EvaluationConfig controls scoring and dispatch.
type EvaluationConfig struct {
	Mode           string `yaml:"mode"`
	Workers        int    `yaml:"workers"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Iterations     int    `yaml:"iterations"`
	MatchAttempts  int    `yaml:"match_attempts"`
	ValidateSQL    bool   `yaml:"validate_sql"`
}

// InputConfig locates the benchmark file and its columns.
type InputConfig struct {
	Path              string `yaml:"path"`
	GeneratedColumn   string `yaml:"generated_column"`
	GroundTruthColumn string `yaml:"ground_truth_column"`
	DifficultyColumn  string `yaml:"difficulty_column"`
	IndexColumn       string `yaml:"index_column"`
	IDColumn          string `yaml:"id_column"`
	QuestionColumn    string `yaml:"question_column"`
}

// OutputConfig controls report files.
type OutputConfig struct {
	Dir     string   `yaml:"dir"`
	Formats []string `yaml:"formats"`
	Archive bool     `yaml:"archive"`
}

// SummaryConfig controls aggregation.
type SummaryConfig struct {
	TimeMetric string `yaml:"time_metric"`
}

// Logging controls stdout logging behavior.
type Logging struct {
	Verbose               bool   `yaml:"verbose"`
	ReportIntervalSeconds int    `yaml:"report_interval_seconds"`
	LogFile               string `yaml:"log_file"`
	MaxSizeMB             int    `yaml:"max_size_mb"`
	MaxBackups            int    `yaml:"max_backups"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// StorageConfig holds external storage settings.
type StorageConfig struct {
	S3  S3Config  `yaml:"s3"`
	GCS GCSConfig `yaml:"gcs"`
}

// CloudEnabled reports whether any cloud storage backend is enabled.
func (s StorageConfig) CloudEnabled() bool {
	return s.GCS.Enabled || s.S3.Enabled
}

// S3Config configures S3 uploads (legacy and S3-compatible endpoints).
type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	UsePathStyle    bool   `yaml:"use_path_style"`
}

// GCSConfig configures GCS uploads.
type GCSConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Prefix          string `yaml:"prefix"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Load reads configuration from a YAML file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	normalizeConfig(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	cfg.RunInfo = runinfo.FromEnv()
	return cfg, nil
}

const (
	workersDefault          = 6
	timeoutSecondsDefault   = 30
	iterationsDefault       = 3
	matchAttemptsDefault    = 5
	rowLimitDefault         = 100
	reportIntervalDefault   = 30
	catalogServerIDDefault  = 1
	rateLimitBurstDefault   = 1
	statementTimeoutDefault = 30000

	catalogURLDefault = "http://localhost:9090/denodo-data-catalog/public/api/askaquestion/execute"

	// TimeMetric values for summary.time_metric.
	TimePredictedExec = "predicted_exec"
	TimeTruthExec     = "truth_exec"
	TimeTotalAnswer   = "total_execution_time"
)

func normalizeConfig(cfg *Config) {
	cfg.Executor.Driver = strings.ToLower(strings.TrimSpace(cfg.Executor.Driver))
	cfg.Evaluation.Mode = strings.ToLower(strings.TrimSpace(cfg.Evaluation.Mode))
	if cfg.Executor.Driver == DriverMySQL && cfg.Executor.Database != "" {
		cfg.Executor.DSN = ensureDatabaseInDSN(cfg.Executor.DSN, cfg.Executor.Database)
	}
	if cfg.Executor.Catalog.URL == "" {
		cfg.Executor.Catalog.URL = catalogURLDefault
	}
	if cfg.Executor.Catalog.ServerID <= 0 {
		cfg.Executor.Catalog.ServerID = catalogServerIDDefault
	}
	if cfg.Executor.RowLimit < 0 {
		cfg.Executor.RowLimit = 0
	}
	if cfg.Executor.RateLimit.Burst <= 0 {
		cfg.Executor.RateLimit.Burst = rateLimitBurstDefault
	}
	if cfg.Evaluation.Iterations <= 0 {
		cfg.Evaluation.Iterations = iterationsDefault
	}
	if cfg.Evaluation.MatchAttempts <= 0 {
		cfg.Evaluation.MatchAttempts = matchAttemptsDefault
	}
	if len(cfg.Output.Formats) == 0 {
		cfg.Output.Formats = []string{"json", "csv"}
	}
	for i, f := range cfg.Output.Formats {
		cfg.Output.Formats[i] = strings.ToLower(strings.TrimSpace(f))
	}
	if cfg.Summary.TimeMetric == "" {
		cfg.Summary.TimeMetric = TimePredictedExec
	}
}

// Validate rejects settings the evaluation cannot start with.
func (c Config) Validate() error {
	switch c.Executor.Driver {
	case DriverMySQL, DriverPostgres, DriverCatalog:
	default:
		return errors.Errorf("unsupported executor.driver %q", c.Executor.Driver)
	}
	switch c.Evaluation.Mode {
	case ModeF1, ModeVES, ModeCombined:
	default:
		return errors.Errorf("unsupported evaluation.mode %q", c.Evaluation.Mode)
	}
	if c.Evaluation.Workers < 1 {
		return errors.Errorf("evaluation.workers must be at least 1, got %d", c.Evaluation.Workers)
	}
	if c.Evaluation.TimeoutSeconds <= 0 {
		return errors.Errorf("evaluation.timeout_seconds must be positive, got %d", c.Evaluation.TimeoutSeconds)
	}
	switch c.Summary.TimeMetric {
	case TimePredictedExec, TimeTruthExec, TimeTotalAnswer:
	default:
		return errors.Errorf("unsupported summary.time_metric %q", c.Summary.TimeMetric)
	}
	for _, f := range c.Output.Formats {
		if f != "json" && f != "csv" {
			return errors.Errorf("unsupported output format %q", f)
		}
	}
	return nil
}

// Digest returns a short hash of the effective settings with secrets removed.
func (c Config) Digest() string {
	redacted := c
	redacted.Executor.DSN = redactDSN(c.Executor.DSN)
	redacted.Executor.Catalog.Password = ""
	redacted.Storage.S3.AccessKeyID = ""
	redacted.Storage.S3.SecretAccessKey = ""
	redacted.Storage.S3.SessionToken = ""
	data, err := yaml.Marshal(redacted)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// redactDSN drops the password from user:password@ DSNs and URLs.
func redactDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	prefix := dsn[:at]
	scheme := ""
	if i := strings.Index(prefix, "://"); i >= 0 {
		scheme = prefix[:i+3]
		prefix = prefix[i+3:]
	}
	if colon := strings.Index(prefix, ":"); colon >= 0 {
		prefix = prefix[:colon] + ":***"
	}
	return scheme + prefix + dsn[at:]
}

func ensureDatabaseInDSN(dsn string, dbName string) string {
	if dsn == "" || dbName == "" {
		return dsn
	}
	slash := strings.Index(dsn, "/")
	if slash < 0 {
		return dsn
	}
	query := strings.Index(dsn[slash+1:], "?")
	if query >= 0 {
		query = slash + 1 + query
	}
	afterSlash := dsn[slash+1:]
	if query >= 0 {
		afterSlash = dsn[slash+1 : query]
	}
	if strings.TrimSpace(afterSlash) != "" {
		return dsn
	}
	if query >= 0 {
		return dsn[:slash+1] + dbName + dsn[query:]
	}
	return dsn + dbName
}

func defaultConfig() Config {
	return Config{
		Executor: ExecutorConfig{
			Driver:             DriverCatalog,
			DSN:                "root:@tcp(127.0.0.1:3306)/",
			RowLimit:           rowLimitDefault,
			StatementTimeoutMs: statementTimeoutDefault,
			Catalog: CatalogConfig{
				URL:      catalogURLDefault,
				ServerID: catalogServerIDDefault,
				User:     "admin",
				Password: "admin",
			},
			RateLimit: RateLimitConfig{Burst: rateLimitBurstDefault},
		},
		Evaluation: EvaluationConfig{
			Mode:           ModeCombined,
			Workers:        workersDefault,
			TimeoutSeconds: timeoutSecondsDefault,
			Iterations:     iterationsDefault,
			MatchAttempts:  matchAttemptsDefault,
		},
		Output: OutputConfig{
			Dir:     "reports",
			Formats: []string{"json", "csv"},
			Archive: true,
		},
		Summary: SummaryConfig{TimeMetric: TimePredictedExec},
		Logging: Logging{
			ReportIntervalSeconds: reportIntervalDefault,
			LogFile:               "logs/vqlbench.log",
			MaxSizeMB:             100,
			MaxBackups:            3,
		},
	}
}

// Default returns the built-in configuration, used when no file is given.
func Default() Config {
	cfg := defaultConfig()
	normalizeConfig(&cfg)
	cfg.RunInfo = runinfo.FromEnv()
	return cfg
}
