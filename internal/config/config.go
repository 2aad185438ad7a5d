package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	DB       DBConfig       `mapstructure:"db"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Judge    JudgeConfig    `mapstructure:"judge"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Worker   WorkerConfig   `mapstructure:"worker"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// PipelineConfig controls window eligibility, conversion and grouping.
type PipelineConfig struct {
	MinAgents          int           `mapstructure:"min_agents"`
	MinActions         int           `mapstructure:"min_actions"`
	Lookback           time.Duration `mapstructure:"lookback"`
	MaxWindows         int           `mapstructure:"max_windows"`
	MaxPerWindow       int           `mapstructure:"max_per_window"`
	TargetTrajectories int           `mapstructure:"target_trajectories"`
	MaxDropout         float64       `mapstructure:"max_dropout"`
}

// JudgeConfig points at an OpenAI-compatible chat-completions endpoint used
// for relative reward scoring. An empty base URL disables the LLM judge and
// falls back to local heuristic scoring.
type JudgeConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKeyEnv string        `mapstructure:"api_key_env"`
	Model     string        `mapstructure:"model"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type BackendConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKeyEnv string        `mapstructure:"api_key_env"`
	Project   string        `mapstructure:"project"`
	BaseModel string        `mapstructure:"base_model"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type WorkerConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	BatchLimit    int           `mapstructure:"batch_limit"`
	AutoDeploy    bool          `mapstructure:"auto_deploy"`
	StaleAfter    time.Duration `mapstructure:"stale_after"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	LearningRate  float64       `mapstructure:"learning_rate"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8000")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 10)
	v.SetDefault("db.max_idle_conns", 2)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("db.auto_migrate", false)

	v.SetDefault("pipeline.min_agents", 2)
	v.SetDefault("pipeline.min_actions", 5)
	v.SetDefault("pipeline.lookback", "24h")
	v.SetDefault("pipeline.max_windows", 10)
	v.SetDefault("pipeline.max_per_window", 8)
	v.SetDefault("pipeline.target_trajectories", 1000)
	v.SetDefault("pipeline.max_dropout", 0.3)

	v.SetDefault("judge.base_url", "")
	v.SetDefault("judge.api_key_env", "JUDGE_API_KEY")
	v.SetDefault("judge.model", "gpt-4o-mini")
	v.SetDefault("judge.timeout", "60s")

	v.SetDefault("backend.base_url", "")
	v.SetDefault("backend.api_key_env", "WANDB_API_KEY")
	v.SetDefault("backend.project", "babylon-rl")
	v.SetDefault("backend.base_model", "Qwen/Qwen2.5-0.5B-Instruct")
	v.SetDefault("backend.timeout", "30s")

	v.SetDefault("worker.poll_interval", "5m")
	v.SetDefault("worker.batch_limit", 5)
	v.SetDefault("worker.auto_deploy", true)
	v.SetDefault("worker.stale_after", "2h")
	v.SetDefault("worker.sweep_interval", "10m")
	v.SetDefault("worker.learning_rate", 1e-5)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
