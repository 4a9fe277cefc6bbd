package config

import (
	"fmt"
	"time"

	"gopherex.com/xmatch/internal/matching"
)

// 总配置
type Cfg struct {
	Name      string          `mapstructure:"name" yaml:"name"`
	LogLevel  string          `mapstructure:"log_level" yaml:"log_level"`
	LogFile   string          `mapstructure:"log_file" yaml:"log_file"`
	HTTP      HTTPConfig      `mapstructure:"http" yaml:"http"`
	Engine    EngineConfig    `mapstructure:"engine" yaml:"engine"`
	WAL       WALConfig       `mapstructure:"wal" yaml:"wal"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit" yaml:"ratelimit"`
	Nats      NatsConfig      `mapstructure:"nats" yaml:"nats"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Breaker   BreakerConfig   `mapstructure:"breaker" yaml:"breaker"`
	Etcd      EtcdConfig      `mapstructure:"etcd" yaml:"etcd"`
	Trace     TraceConfig     `mapstructure:"trace" yaml:"trace"`
}

// HTTP 配置
type HTTPConfig struct {
	Addr         string        `mapstructure:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	SubmitWait   time.Duration `mapstructure:"submit_wait" yaml:"submit_wait"` // 等撮合结果的上限
	DebugAddr    string        `mapstructure:"debug_addr" yaml:"debug_addr"`   // pprof + /metrics，空则不开
}

type EngineConfig struct {
	TickDecimals int32  `mapstructure:"tick_decimals" yaml:"tick_decimals"` // 价格精度：1 tick = 10^-n
	MatchDepth   string `mapstructure:"match_depth" yaml:"match_depth"`     // single / sweep
	MailboxSize  int    `mapstructure:"mailbox_size" yaml:"mailbox_size"`
	BatchMax     int    `mapstructure:"batch_max" yaml:"batch_max"`
	EventBusSize int    `mapstructure:"event_bus_size" yaml:"event_bus_size"`
}

type WALConfig struct {
	Enable  bool   `mapstructure:"enable" yaml:"enable"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
	BufSize int    `mapstructure:"buf_size" yaml:"buf_size"`
	Codec   string `mapstructure:"codec" yaml:"codec"` // binary / json
	// 非空时用 redis 锁保证同一个 wal 目录只有一个 matchd 在写
	LockKey string        `mapstructure:"lock_key" yaml:"lock_key"`
	LockTTL time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`
}

type RateLimitConfig struct {
	RPS   float64       `mapstructure:"rps" yaml:"rps"`
	Burst int           `mapstructure:"burst" yaml:"burst"`
	TTL   time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// URL 为空则用进程内 broker
type NatsConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// Addr 为空则最新成交只存内存
type RedisConfig struct {
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
}

// redis 的熔断
type BreakerConfig struct {
	Interval                time.Duration `mapstructure:"interval" yaml:"interval"`
	Timeout                 time.Duration `mapstructure:"timeout" yaml:"timeout"`
	TripConsecutiveFailures uint32        `mapstructure:"trip_consecutive_failures" yaml:"trip_consecutive_failures"`
}

// etcd 配置，Endpoints 为空则不注册
type EtcdConfig struct {
	Endpoints         []string `mapstructure:"endpoints" yaml:"endpoints"`
	DialTimeoutSecond int      `mapstructure:"dial_timeout_seconds" yaml:"dial_timeout_seconds"`
	BasePath          string   `mapstructure:"base_path" yaml:"base_path"`
	LeaseTTL          int64    `mapstructure:"lease_ttl" yaml:"lease_ttl"`
}

// Endpoint 为空则不导出 span
type TraceConfig struct {
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// Defaults 文件里没写的项
func Defaults() map[string]any {
	return map[string]any{
		"name":                              "matchd",
		"log_level":                         "info",
		"http.addr":                         ":8080",
		"http.read_timeout":                 "10s",
		"http.write_timeout":                "10s",
		"http.submit_wait":                  "2s",
		"engine.tick_decimals":              2,
		"engine.match_depth":                "single",
		"engine.mailbox_size":               4096,
		"engine.batch_max":                  256,
		"engine.event_bus_size":             1 << 16,
		"wal.enable":                        true,
		"wal.dir":                           "data/wal",
		"wal.codec":                         "binary",
		"wal.lock_ttl":                      "10s",
		"ratelimit.rps":                     1000,
		"ratelimit.burst":                   2000,
		"ratelimit.ttl":                     "10m",
		"redis.ttl":                         "24h",
		"breaker.interval":                  "60s",
		"breaker.timeout":                   "5s",
		"breaker.trip_consecutive_failures": 5,
		"etcd.dial_timeout_seconds":         5,
		"etcd.lease_ttl":                    10,
	}
}

// Validate 启动前检查；热更新只生效 log_level，其余项需要重启
func (c *Cfg) Validate() error {
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is empty")
	}
	if c.Engine.TickDecimals < 0 || c.Engine.TickDecimals > 12 {
		return fmt.Errorf("engine.tick_decimals out of range: %d", c.Engine.TickDecimals)
	}
	if _, err := matching.ParseMatchDepth(c.Engine.MatchDepth); err != nil {
		return err
	}
	if c.WAL.Enable && c.WAL.Dir == "" {
		return fmt.Errorf("wal.dir is empty but wal is enabled")
	}
	switch c.WAL.Codec {
	case "", "binary", "json":
	default:
		return fmt.Errorf("unknown wal.codec %q", c.WAL.Codec)
	}
	return nil
}
