package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sophix-ma/Mindra/internal/biz"
	"github.com/Sophix-ma/Mindra/internal/conf"
	"github.com/Sophix-ma/Mindra/internal/logger"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

var (
	flagconf string
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs/config.yaml", "config path, eg: -conf config.yaml")
}

// CronApp Cron 应用结构
type CronApp struct {
	ledgerUsecase *biz.UsageLedgerUseCase
}

func main() {
	flag.Parse()

	// 初始化配置
	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}

	loggerInstance := logger.NewLogger(&logger.Config{
		Level:         "info",
		FilePath:      "logs/mindra-cron.log",
		MaxSize:       100,
		MaxAge:        30,
		MaxBackups:    10,
		Compress:      true,
		EnableConsole: true,
	})
	loggerInstance = log.With(loggerInstance,
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.name", "mindra-cron",
	)
	logHelper := log.NewHelper(loggerInstance)

	app, cleanup, err := wireApp(&bc, loggerInstance)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// 创建定时任务调度器（支持秒级调度）
	cronScheduler := cron.New(cron.WithSeconds())

	// 每日用量汇总 - 每天 00:05 执行，统计前一天的用量
	_, err = cronScheduler.AddFunc("0 5 0 * * *", func() {
		logHelper.Info("[CRON] Starting daily usage rollup...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		rollups, err := app.ledgerUsecase.RollupSince(ctx, time.Now().AddDate(0, 0, -1))
		if err != nil {
			logHelper.Errorf("[CRON] Error rolling up daily usage: %v", err)
			return
		}
		for _, r := range rollups {
			logHelper.Infof("[CRON] Daily usage: assignment=%s, records=%d, input_tokens=%d, output_tokens=%d, credit=%.4f",
				r.Assignment, r.Records, r.InputTokens, r.OutputTokens, r.CreditUsage)
		}
		logHelper.Info("[CRON] Finished daily usage rollup")
	})
	if err != nil {
		logHelper.Errorf("Failed to add daily usage rollup job: %v", err)
	}

	// 累计用量汇总 - 每周一 00:10 执行
	_, err = cronScheduler.AddFunc("0 10 0 * * 1", func() {
		logHelper.Info("[CRON] Starting weekly total usage rollup...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		rollups, err := app.ledgerUsecase.RollupSince(ctx, time.Time{})
		if err != nil {
			logHelper.Errorf("[CRON] Error rolling up total usage: %v", err)
			return
		}
		for _, r := range rollups {
			logHelper.Infof("[CRON] Total usage: assignment=%s, records=%d, input_tokens=%d, output_tokens=%d, credit=%.4f",
				r.Assignment, r.Records, r.InputTokens, r.OutputTokens, r.CreditUsage)
		}
		logHelper.Info("[CRON] Finished weekly total usage rollup")
	})
	if err != nil {
		logHelper.Errorf("Failed to add weekly usage rollup job: %v", err)
	}

	// 启动定时任务
	cronScheduler.Start()
	logHelper.Info("========================================")
	logHelper.Info("Cron jobs started successfully")
	logHelper.Info("Scheduled jobs:")
	logHelper.Info("  - Daily usage rollup: Every day at 00:05")
	logHelper.Info("  - Weekly total usage rollup: Every Monday at 00:10")
	logHelper.Info("========================================")

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logHelper.Info("Shutting down gracefully...")
	ctxStop := cronScheduler.Stop()
	<-ctxStop.Done()
	logHelper.Info("Cron jobs stopped")
}
