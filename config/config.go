// Package config 加载 TOML 配置（viper），支持环境变量覆盖、结构体校验与日志级别热更新。
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/wyfcoding/binpack/logging"
	"github.com/wyfcoding/binpack/xerrors"
)

// EnvPrefix 环境变量前缀，例如 BINPACK_SOLVER_MAX_ITERATIONS。
const EnvPrefix = "BINPACK"

// Config 顶级配置。
type Config struct {
	Version   string          `mapstructure:"version"   toml:"version"   json:"version"`
	Server    ServerConfig    `mapstructure:"server"    toml:"server"    json:"server"`
	Solver    SolverConfig    `mapstructure:"solver"    toml:"solver"    json:"solver"`
	Rounding  RoundingConfig  `mapstructure:"rounding"  toml:"rounding"  json:"rounding"`
	Batch     BatchConfig     `mapstructure:"batch"     toml:"batch"     json:"batch"`
	Log       LogConfig       `mapstructure:"log"       toml:"log"       json:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"   toml:"metrics"   json:"metrics"`
	Tracing   TracingConfig   `mapstructure:"tracing"   toml:"tracing"   json:"tracing"`
	Snowflake SnowflakeConfig `mapstructure:"snowflake" toml:"snowflake" json:"snowflake"`
}

// ServerConfig HTTP 服务参数。
type ServerConfig struct {
	Name         string        `mapstructure:"name"          toml:"name"          json:"name"          validate:"required"`
	Environment  string        `mapstructure:"environment"   toml:"environment"   json:"environment"   validate:"oneof=dev test prod"`
	Addr         string        `mapstructure:"addr"          toml:"addr"          json:"addr"          validate:"required"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"  toml:"read_timeout"  json:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" toml:"write_timeout" json:"write_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes" toml:"max_body_bytes" json:"max_body_bytes" validate:"min=0"`
	RateLimit    float64       `mapstructure:"rate_limit"    toml:"rate_limit"    json:"rate_limit"    validate:"min=0"` // 每秒求解请求数，0 不限
	RateBurst    int           `mapstructure:"rate_burst"    toml:"rate_burst"    json:"rate_burst"    validate:"min=0"`
}

// SolverConfig 列生成参数。
type SolverConfig struct {
	MaxIterations int           `mapstructure:"max_iterations" toml:"max_iterations" json:"max_iterations" validate:"min=1"`
	Epsilon       float64       `mapstructure:"epsilon"        toml:"epsilon"        json:"epsilon"        validate:"gt=0,lt=1"`
	GridDecimals  int           `mapstructure:"grid_decimals"  toml:"grid_decimals"  json:"grid_decimals"  validate:"min=-1,max=9"`
	MaxGridUnits  int64         `mapstructure:"max_grid_units" toml:"max_grid_units" json:"max_grid_units" validate:"min=0"`
	LPBackend     string        `mapstructure:"lp_backend"     toml:"lp_backend"     json:"lp_backend"     validate:"oneof=simplex gonum"`
	DenseSeed     bool          `mapstructure:"dense_seed"     toml:"dense_seed"     json:"dense_seed"`
	Timeout       time.Duration `mapstructure:"timeout"        toml:"timeout"        json:"timeout"`
}

// RoundingConfig 取整流水线参数。
type RoundingConfig struct {
	Strategy string `mapstructure:"strategy" toml:"strategy" json:"strategy" validate:"oneof=glue spectrum"`
	Seed     uint64 `mapstructure:"seed"     toml:"seed"     json:"seed"`
	Trials   int    `mapstructure:"trials"   toml:"trials"   json:"trials"   validate:"min=1"`
	Repair   bool   `mapstructure:"repair"   toml:"repair"   json:"repair"`
}

// strategyAliases 取整策略别名，与命令行和 HTTP 接口接受的写法一致。
var strategyAliases = map[string]string{
	"a":                "glue",
	"discretize-glue":  "glue",
	"b":                "spectrum",
	"rebuild-spectrum": "spectrum",
}

// Normalize 把策略名归一为规范写法（小写、别名展开）。
func (r *RoundingConfig) Normalize() {
	s := strings.ToLower(strings.TrimSpace(r.Strategy))
	if canonical, ok := strategyAliases[s]; ok {
		s = canonical
	}
	r.Strategy = s
}

// BatchConfig 批量求解参数。
type BatchConfig struct {
	Workers    int      `mapstructure:"workers"    toml:"workers"    json:"workers"    validate:"min=0"` // 0 表示 GOMAXPROCS
	Heuristics []string `mapstructure:"heuristics" toml:"heuristics" json:"heuristics" validate:"dive,oneof=ff bf ffd bfd harmonic hk"`
}

// LogConfig 日志输出与切割。
type LogConfig struct {
	Level      string `mapstructure:"level"       toml:"level"       json:"level"       validate:"omitempty,oneof=debug info warn warning error"`
	File       string `mapstructure:"file"        toml:"file"        json:"file"`
	MaxSize    int    `mapstructure:"max_size"    toml:"max_size"    json:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" toml:"max_backups" json:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"     toml:"max_age"     json:"max_age"`
	Compress   bool   `mapstructure:"compress"    toml:"compress"    json:"compress"`
	Console    bool   `mapstructure:"console"     toml:"console"     json:"console"`
}

// MetricsConfig Prometheus 指标暴露。
type MetricsConfig struct {
	Path    string `mapstructure:"path"    toml:"path"    json:"path"`
	Enabled bool   `mapstructure:"enabled" toml:"enabled" json:"enabled"`
}

// TracingConfig OpenTelemetry 追踪。
type TracingConfig struct {
	ServiceName  string  `mapstructure:"service_name"  toml:"service_name"  json:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" toml:"otlp_endpoint" json:"otlp_endpoint"`
	SamplerRatio float64 `mapstructure:"sampler_ratio" toml:"sampler_ratio" json:"sampler_ratio" validate:"min=0,max=1"`
	Enabled      bool    `mapstructure:"enabled"       toml:"enabled"       json:"enabled"`
}

// SnowflakeConfig 运行 ID 生成器。
type SnowflakeConfig struct {
	StartTime string `mapstructure:"start_time" toml:"start_time" json:"start_time"`
	Type      string `mapstructure:"type"       toml:"type"       json:"type"       validate:"omitempty,oneof=snowflake sonyflake"`
	MachineID int64  `mapstructure:"machine_id" toml:"machine_id" json:"machine_id" validate:"min=0,max=65535"`
}

// Default 返回可直接使用的默认配置。
func Default() *Config {
	return &Config{
		Version: "dev",
		Server: ServerConfig{
			Name:         "binpack",
			Environment:  "dev",
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
			MaxBodyBytes: 8 << 20,
			RateLimit:    20,
			RateBurst:    40,
		},
		Solver: SolverConfig{
			MaxIterations: 100,
			Epsilon:       1e-6,
			GridDecimals:  -1,
			LPBackend:     "simplex",
		},
		Rounding: RoundingConfig{
			Strategy: "glue",
			Seed:     1,
			Trials:   1,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
		},
		Metrics: MetricsConfig{Path: "/metrics", Enabled: true},
		Tracing: TracingConfig{
			ServiceName:  "binpack",
			OTLPEndpoint: "localhost:4317",
			SamplerRatio: 1,
		},
		Snowflake: SnowflakeConfig{Type: "sonyflake", MachineID: 1},
	}
}

var (
	validate = validator.New()

	mu       sync.Mutex
	onReload []func(*Config)
)

// RegisterReloadHook 注册配置热更新回调。
func RegisterReloadHook(hook func(*Config)) {
	if hook == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	onReload = append(onReload, hook)
}

// Validate 归一化策略别名后校验配置。
func Validate(c *Config) error {
	c.Rounding.Normalize()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", xerrors.ErrInvalidConfig, err)
	}
	return nil
}

// Load 从 path 加载配置，未出现的键保留 Default() 的值。
// watch 为 true 时监听文件变化，热更新日志级别并触发回调。
func Load(path string, watch bool) (*Config, *viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("read config error: %w", err)
	}

	conf := Default()
	if err := v.Unmarshal(conf); err != nil {
		return nil, nil, fmt.Errorf("unmarshal config error: %w", err)
	}
	if err := Validate(conf); err != nil {
		return nil, nil, err
	}

	if watch {
		v.OnConfigChange(func(event fsnotify.Event) {
			slog.Info("detecting config change", "file", event.Name)

			next := Default()
			if err := v.Unmarshal(next); err != nil {
				slog.Error("reload config unmarshal failed", "error", err)
				return
			}
			if err := Validate(next); err != nil {
				slog.Error("reload config validation failed", "error", err)
				return
			}

			logging.SetLevel(next.Log.Level)
			slog.Info("config hot-reloaded", "log_level", next.Log.Level)

			mu.Lock()
			hooks := append([]func(*Config){}, onReload...)
			mu.Unlock()
			for _, hook := range hooks {
				hook(next)
			}
		})
		v.WatchConfig()
	}

	return conf, v, nil
}

// PrintWithMask 脱敏打印当前生效配置。
func PrintWithMask(conf any) {
	data, err := json.Marshal(conf)
	if err != nil {
		slog.Error("failed to marshal config for printing", "error", err)
		return
	}

	var configMap map[string]any
	if err := json.Unmarshal(data, &configMap); err != nil {
		slog.Error("failed to unmarshal config for masking", "error", err)
		return
	}
	mask(configMap)

	slog.Info("current effective configuration", "config", configMap)
}

func mask(configMap map[string]any) {
	sensitiveKeys := []string{"password", "secret", "token", "endpoint"}

	for key, val := range configMap {
		if subMap, ok := val.(map[string]any); ok {
			mask(subMap)
			continue
		}
		for _, s := range sensitiveKeys {
			if strings.Contains(strings.ToLower(key), s) {
				configMap[key] = "******"
				break
			}
		}
	}
}
