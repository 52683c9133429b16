package worker

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/younes-bami/hrcut-app/internal/app"
	"github.com/younes-bami/hrcut-app/internal/config"
	"github.com/younes-bami/hrcut-app/internal/logger"
	"github.com/younes-bami/hrcut-app/internal/metrics"
	"github.com/younes-bami/hrcut-app/internal/validation"
	"github.com/younes-bami/hrcut-app/internal/worker"
)

var metricsAddr string

var intakeCmd = &cobra.Command{
	Use:   "intake",
	Short: "Consume create-customer commands from RabbitMQ (no HTTP API)",
	RunE:  runIntake,
}

func init() {
	intakeCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9102", "address for /metrics; empty disables")
}

func runIntake(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log := logger.Log
	defer func() { _ = log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.EnsureSchema(ctx); err != nil {
		return err
	}

	consumer, deliveries, err := a.OpenIntake()
	if err != nil {
		return fmt.Errorf("amqp intake: %w", err)
	}
	defer func() { _ = consumer.Close() }()

	w := worker.NewIntake(a.Service, validation.New("CustomerConsumer"), log, cfg.RabbitMQ.RequeueInvalid)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx, deliveries) })

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		ms := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			if err := ms.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return ms.Shutdown(shCtx)
		})
	}

	log.Info("intake worker started",
		zap.String("queue", cfg.RabbitMQ.Queue),
		zap.Int("prefetch", cfg.RabbitMQ.Prefetch))
	return g.Wait()
}
