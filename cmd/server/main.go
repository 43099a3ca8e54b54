package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/caseflow-hq/caseflow/migrations"
	"github.com/caseflow-hq/caseflow/modules/tasks"
	"github.com/caseflow-hq/caseflow/modules/tasks/domain/operation"
	"github.com/caseflow-hq/caseflow/pkg/composables"
	"github.com/caseflow-hq/caseflow/pkg/configuration"
	"github.com/caseflow-hq/caseflow/pkg/eventbus"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Println(r)
			debug.PrintStack()
			os.Exit(1)
		}
	}()

	conf := configuration.Use()
	logger := conf.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	pool, err := pgxpool.New(ctx, conf.Database.Opts)
	cancel()
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	if conf.Database.AutoMigrate {
		if err := migrate(conf); err != nil {
			log.Fatalf("failed to apply migrations: %v", err)
		}
		logger.Info("migrations applied")
	}

	var rdb *redis.Client
	if conf.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     conf.Redis.URL,
			Password: conf.Redis.Password,
			DB:       conf.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
	}

	bus := eventbus.NewEventPublisher(logger)
	module, err := tasks.NewModule(conf, logger, bus, rdb)
	if err != nil {
		log.Fatalf("failed to build tasks module: %v", err)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	rootCtx = composables.WithPool(rootCtx, pool)
	rootCtx = composables.WithLogger(rootCtx, logrus.NewEntry(logger))

	if conf.Prometheus.Enabled {
		go serveMetrics(conf, logger)
	}

	if conf.Dispatcher.Enabled {
		go runDispatcher(rootCtx, conf, logger, module)
	}

	logger.WithFields(logrus.Fields{
		"env":        conf.GoAppEnvironment,
		"dispatcher": conf.Dispatcher.Enabled,
	}).Info("caseflow server started")

	<-rootCtx.Done()
	logger.Info("shutting down")
}

func migrate(conf *configuration.Configuration) error {
	db := stdlib.OpenDB(*mustParseConfig(conf.Database.Opts))
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return migrations.Up(ctx, db)
}

func mustParseConfig(dsn string) *pgx.ConnConfig {
	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		panic(err)
	}
	return cfg
}

// runDispatcher periodically drains pending reconfigurations and reports
// tasks stuck past the retry window.
func runDispatcher(ctx context.Context, conf *configuration.Configuration, logger *logrus.Logger, module *tasks.Module) {
	ticker := time.NewTicker(conf.Dispatcher.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		op := operation.New(operation.KindExecuteReconfigure)
		op.MaxTasks = conf.Dispatcher.MaxTasks
		op.RetryWindowHours = conf.Dispatcher.RetryWindowHours
		if _, err := module.Operations.Perform(ctx, op); err != nil {
			logger.WithError(err).Error("dispatcher reconfigure run failed")
		}

		failuresOp := operation.New(operation.KindExecuteReconfigureFailures)
		failuresOp.RetryWindowHours = conf.Dispatcher.RetryWindowHours
		if _, err := module.Operations.Perform(ctx, failuresOp); err != nil {
			logger.WithError(err).Error("dispatcher failures scan failed")
		}
	}
}

func serveMetrics(conf *configuration.Configuration, logger *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle(conf.Prometheus.Path, promhttp.Handler())
	addr := fmt.Sprintf(":%d", conf.Prometheus.Port)
	logger.Infof("serving metrics on %s%s", addr, conf.Prometheus.Path)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.WithError(err).Error("metrics server stopped")
	}
}
