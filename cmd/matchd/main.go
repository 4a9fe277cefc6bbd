package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"gopherex.com/xmatch/internal/app"
	"gopherex.com/xmatch/pkg/logger"
)

func main() {
	cfgFile := flag.String("c", "", "config file, default ./config/matchd.yaml")
	flag.Parse()
	os.Exit(run(*cfgFile))
}

func run(cfgFile string) int {
	// 1. 支持 Ctrl+C / kubernetes 停止信号的 context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 初始化 App（日志在这里面初始化，之前的错误只能走标准库 log）
	a, err := app.New(ctx, cfgFile)
	if err != nil {
		log.Printf("init matchd error: %v", err)
		return 1
	}
	defer a.Close()

	// 3. 跑到收到信号或者某个组件出错
	if err := a.Run(ctx); err != nil {
		logger.Error(ctx, "matchd exit with error", zap.Error(err))
		return 1
	}
	logger.Info(context.Background(), "matchd exit")
	return 0
}
