package main

import (
	"flag"
	"os"

	"github.com/Sophix-ma/Mindra/internal/conf"
	"github.com/Sophix-ma/Mindra/internal/logger"
	"github.com/Sophix-ma/Mindra/internal/metrics"
	"github.com/Sophix-ma/Mindra/internal/server"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/transport/http"

	_ "go.uber.org/automaxprocs"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	Name     = "mindra-sidebar"
	Version  = "v1.0.0"
	flagconf string
	id, _    = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs", "config path, eg: -conf config.yaml")
}

func newApp(logger log.Logger, hs *http.Server, mq *server.MQConsumerServer) *kratos.App {
	return kratos.New(
		kratos.ID(id),
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(
			hs,
			mq,
		),
	)
}

func main() {
	flag.Parse()

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

	logConfig := &logger.Config{
		Level:         "info",
		FilePath:      "logs/mindra-sidebar.log",
		MaxSize:       100,
		MaxAge:        30,
		MaxBackups:    10,
		Compress:      true,
		EnableConsole: true,
	}
	if bc.Log != nil {
		if bc.Log.Level != "" {
			logConfig.Level = bc.Log.Level
		}
		if bc.Log.FilePath != "" {
			logConfig.FilePath = bc.Log.FilePath
		}
		if bc.Log.MaxSize > 0 {
			logConfig.MaxSize = bc.Log.MaxSize
		}
		if bc.Log.MaxAge > 0 {
			logConfig.MaxAge = bc.Log.MaxAge
		}
		if bc.Log.MaxBackups > 0 {
			logConfig.MaxBackups = bc.Log.MaxBackups
		}
		logConfig.Compress = bc.Log.Compress
	}

	loggerInstance := logger.NewLogger(logConfig)
	loggerInstance = log.With(loggerInstance,
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service.id", id,
		"service.name", Name,
		"service.version", Version,
	)

	metrics.InitMetrics()

	app, cleanup, err := wireApp(&bc, loggerInstance)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	// start and wait for stop signal
	if err := app.Run(); err != nil {
		panic(err)
	}
}
