package config

import (
	"context"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"gopherex.com/xmatch/pkg/logger"
)

type options struct {
	paths    []string
	file     string
	defaults map[string]any
	onChange func()
}

type Option func(*options)

// WithFile 指定配置文件（命令行 -c），不走按服务名查找
func WithFile(path string) Option {
	return func(o *options) { o.file = path }
}

// WithPaths 追加查找目录
func WithPaths(paths ...string) Option {
	return func(o *options) { o.paths = append(o.paths, paths...) }
}

// WithDefaults 文件里没写的 key 用默认值
func WithDefaults(defaults map[string]any) Option {
	return func(o *options) { o.defaults = defaults }
}

// OnChange 热更新成功后回调
func OnChange(fn func()) Option {
	return func(o *options) { o.onChange = fn }
}

func LoadAndWatch(service string, out any, opts ...Option) (*viper.Viper, error) {
	o := options{paths: []string{"./config", "."}}
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	for k, val := range o.defaults {
		v.SetDefault(k, val)
	}
	if o.file != "" {
		v.SetConfigFile(o.file)
	} else {
		// 约定：config/{service}.yaml
		v.SetConfigName(service)
		v.SetConfigType("yaml")
		for _, p := range o.paths {
			v.AddConfigPath(p)
		}
	}

	// 环境变量覆盖，例如：
	//   MATCHD_HTTP_ADDR 覆盖 http.addr
	//   MATCHD_WAL_DIR 覆盖 wal.dir
	v.SetEnvPrefix(strings.ToUpper(service))
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(out); err != nil {
		return nil, err
	}

	ctx := context.Background()
	logger.Info(ctx, "config loaded",
		zap.String("service", service),
		zap.String("file", v.ConfigFileUsed()),
	)

	// 监听文件变更，热更新到 out
	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Info(ctx, "config file changed", zap.String("service", service), zap.String("file", e.Name))
		if err := v.Unmarshal(out); err != nil {
			logger.Error(ctx, "reload config failed", zap.String("service", service), zap.Error(err))
			return
		}
		if o.onChange != nil {
			o.onChange()
		}
		logger.Info(ctx, "config reloaded", zap.String("service", service))
	})
	v.WatchConfig()

	return v, nil
}
