package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"gopherex.com/xmatch/internal/api"
	"gopherex.com/xmatch/internal/config"
	"gopherex.com/xmatch/internal/engine"
	"gopherex.com/xmatch/internal/gateway"
	"gopherex.com/xmatch/internal/intake"
	"gopherex.com/xmatch/internal/matching"
	"gopherex.com/xmatch/pkg/bootstrap"
	vipConfig "gopherex.com/xmatch/pkg/config"
	"gopherex.com/xmatch/pkg/logger"
	"gopherex.com/xmatch/pkg/metrics"
	"gopherex.com/xmatch/pkg/ratelimit"
	"gopherex.com/xmatch/pkg/register"
	"gopherex.com/xmatch/pkg/register/etcd"
	"gopherex.com/xmatch/pkg/trace"
	"gopherex.com/xmatch/pkg/xredis"
)

const serviceName = "matchd"

type App struct {
	cfg       *config.Cfg
	eng       *engine.Engine
	broker    gateway.Broker
	last      gateway.LastTradeStore
	publisher *gateway.Publisher
	limiter   *ratelimit.Store
	srv       *http.Server
	debug     *http.Server

	rdb      *redis.Client
	lock     *xredis.MasterLock
	etcd     *clientv3.Client
	reg      *etcd.EtcdRegister
	instance *register.Instance

	traceShutdown func(context.Context) error
}

// New 加载配置并把所有依赖建好；任何一步失败都会把已经建好的关掉
func New(ctx context.Context, cfgFile string) (_ *App, err error) {
	cfg := &config.Cfg{}
	opts := []vipConfig.Option{
		vipConfig.WithDefaults(config.Defaults()),
		vipConfig.OnChange(func() {
			if err := logger.SetLevel(cfg.LogLevel); err != nil {
				logger.Warn(context.Background(), "bad log_level", zap.String("log_level", cfg.LogLevel))
			}
		}),
	}
	if cfgFile != "" {
		opts = append(opts, vipConfig.WithFile(cfgFile))
	}
	if _, err := vipConfig.LoadAndWatch(serviceName, cfg, opts...); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger.InitWithFile(cfg.Name, cfg.LogLevel, cfg.LogFile)
	metrics.MustRegister()

	a := &App{cfg: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.traceShutdown, err = trace.InitTrace(cfg.Name, cfg.Trace.Endpoint); err != nil {
		return nil, err
	}
	if err = a.initLastTrade(ctx); err != nil {
		return nil, err
	}
	if err = a.initLock(ctx); err != nil {
		return nil, err
	}
	if err = a.initBroker(); err != nil {
		return nil, err
	}
	if err = a.initEngine(); err != nil {
		return nil, err
	}
	a.initHTTP()
	if err = a.initEtcd(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *App) initLastTrade(ctx context.Context) error {
	if a.cfg.Redis.Addr == "" {
		a.last = gateway.NewMemLastTrade()
		return nil
	}
	rdb, err := xredis.NewRedis(ctx, &xredis.Config{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	a.rdb = rdb
	a.last = gateway.NewBreakerLastTrade(
		gateway.NewRedisLastTrade(rdb, a.cfg.Redis.TTL),
		gateway.BreakerConfig{
			Name:                    "redis-last-trade",
			Timeout:                 a.cfg.Breaker.Timeout,
			Interval:                a.cfg.Breaker.Interval,
			TripConsecutiveFailures: a.cfg.Breaker.TripConsecutiveFailures,
		},
	)
	return nil
}

// initLock 同一个 wal 目录只能有一个进程写
func (a *App) initLock(ctx context.Context) error {
	key := a.cfg.WAL.LockKey
	if key == "" || !a.cfg.WAL.Enable {
		return nil
	}
	if a.rdb == nil {
		return errors.New("wal.lock_key needs redis.addr")
	}
	l := xredis.NewMasterLock(a.rdb, key, a.cfg.WAL.LockTTL)
	ok, err := l.TryAcquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire wal lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("wal lock %s is held by another instance", key)
	}
	a.lock = l
	logger.Info(ctx, "wal lock acquired", zap.String("key", key), zap.String("owner", l.ID()))
	return nil
}

func (a *App) initBroker() error {
	if a.cfg.Nats.URL == "" {
		a.broker = gateway.NewMemBroker()
		return nil
	}
	b, err := gateway.NewNatsBroker(a.cfg.Nats.URL)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	a.broker = b
	return nil
}

func (a *App) initEngine() error {
	depth, err := matching.ParseMatchDepth(a.cfg.Engine.MatchDepth)
	if err != nil {
		return err
	}
	var codec engine.CmdCodec = engine.BinaryCmdCodec{}
	if a.cfg.WAL.Codec == "json" {
		codec = engine.JSONCmdCodec{Version: 1}
	}
	a.eng = engine.NewEngine(engine.EngineConfig{
		EventBusSize: a.cfg.Engine.EventBusSize,
		ActorCfg: engine.ActorConfig{
			MailboxSize: a.cfg.Engine.MailboxSize,
			BatchMax:    a.cfg.Engine.BatchMax,
		},
		MatchDepth:   depth,
		WALDir:       a.cfg.WAL.Dir,
		EnableCmdWAL: a.cfg.WAL.Enable,
		WALBufSize:   a.cfg.WAL.BufSize,
		CmdCodec:     codec,
	})
	a.publisher = gateway.NewPublisher(a.eng.Events(), a.broker, a.last)
	return nil
}

func (a *App) initHTTP() {
	rl := a.cfg.RateLimit
	if rl.RPS > 0 {
		a.limiter = ratelimit.NewStore(rate.Limit(rl.RPS), rl.Burst, rl.TTL)
	}
	r := api.NewRouter(api.Options{
		Service:    a.cfg.Name,
		Engine:     a.eng,
		LastTrade:  a.last,
		Ticks:      intake.Ticks{Decimals: a.cfg.Engine.TickDecimals},
		SubmitWait: a.cfg.HTTP.SubmitWait,
		Limiter:    a.limiter,
		Prometheus: api.NewPrometheus(),
	})
	a.srv = api.NewServer(a.cfg.HTTP.Addr, r, a.cfg.HTTP.ReadTimeout, a.cfg.HTTP.WriteTimeout)
	if a.cfg.HTTP.DebugAddr != "" {
		a.debug = bootstrap.NewDebugServer(a.cfg.HTTP.DebugAddr)
	}
}

func (a *App) initEtcd() error {
	if len(a.cfg.Etcd.Endpoints) == 0 {
		return nil
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   a.cfg.Etcd.Endpoints,
		DialTimeout: time.Duration(a.cfg.Etcd.DialTimeoutSecond) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("connect etcd: %w", err)
	}
	a.etcd = cli
	a.reg = etcd.NewEtcdRegister(cli, a.cfg.Etcd.BasePath, a.cfg.Etcd.LeaseTTL)
	addr := advertiseAddr(a.cfg.HTTP.Addr)
	a.instance = &register.Instance{
		ID:   addr, // 简单用 addr 做 ID
		Name: a.cfg.Name,
		Addr: addr,
		MetaData: map[string]string{
			"match_depth":   a.cfg.Engine.MatchDepth,
			"tick_decimals": fmt.Sprint(a.cfg.Engine.TickDecimals),
		},
	}
	return nil
}

// advertiseAddr ":8080" 这种没写 host 的，用主机名补上
func advertiseAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil || host != "" {
		return listen
	}
	if h, err := os.Hostname(); err == nil {
		host = h
	}
	return net.JoinHostPort(host, port)
}

// Run 阻塞到 ctx 结束或某个组件出错，然后优雅退出
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.limiter != nil {
		a.limiter.StartJanitor(gctx, time.Minute)
	}
	g.Go(func() error {
		// 不跟 gctx 一起取消：engine.Stop 关掉事件通道后 publisher 把剩余事件发完再退出
		if err := a.publisher.Run(context.WithoutCancel(gctx)); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("publisher: %w", err)
		}
		return nil
	})
	if a.lock != nil {
		g.Go(func() error {
			var lost error
			a.lock.Keep(gctx, func(err error) {
				lost = errors.Join(fmt.Errorf("wal lock %s lost", a.cfg.WAL.LockKey), err)
			})
			return lost
		})
	}
	g.Go(func() error {
		logger.Info(gctx, "http server listening", zap.String("addr", a.srv.Addr))
		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if a.debug != nil {
		g.Go(func() error {
			logger.Info(gctx, "debug server listening", zap.String("addr", a.debug.Addr))
			if err := a.debug.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("debug server: %w", err)
			}
			return nil
		})
	}
	if a.reg != nil {
		g.Go(func() error {
			if err := a.reg.Register(gctx, a.instance); err != nil {
				return fmt.Errorf("etcd register: %w", err)
			}
			logger.Info(gctx, "registered to etcd", zap.String("id", a.instance.ID))
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		a.shutdown()
		return nil
	})
	return g.Wait()
}

// shutdown 顺序：先摘流量（etcd、http），再停撮合（flush cmd.wal）
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if a.reg != nil {
		// 续约已经随 ctx 停了，不删的话 key 也会在 ttl 后过期
		if err := a.reg.UnRegister(ctx, a.instance); err != nil {
			logger.Warn(ctx, "etcd unregister failed", zap.Error(err))
		}
	}
	if err := a.srv.Shutdown(ctx); err != nil {
		logger.Error(ctx, "http shutdown failed", zap.Error(err))
	}
	if a.debug != nil {
		_ = a.debug.Close()
	}
	a.eng.Stop()
	logger.Info(ctx, "engine stopped",
		zap.Strings("symbols", a.eng.Symbols()),
		zap.Uint64("dropped_events", a.eng.DroppedEvents()),
	)
}

// Close 释放外部连接，Run 返回后调用
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.broker != nil {
		_ = a.broker.Close()
	}
	if a.lock != nil {
		if err := a.lock.Release(ctx); err != nil {
			logger.Warn(ctx, "release wal lock failed", zap.Error(err))
		}
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
	if a.etcd != nil {
		_ = a.etcd.Close()
	}
	if a.traceShutdown != nil {
		if err := a.traceShutdown(ctx); err != nil {
			logger.Error(ctx, "shutdown tracer error", zap.Error(err))
		}
	}
	logger.Sync()
}
