package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/younes-bami/hrcut-app/internal/app"
	httpSrv "github.com/younes-bami/hrcut-app/internal/http"
	"github.com/younes-bami/hrcut-app/internal/logger"
	"github.com/younes-bami/hrcut-app/internal/validation"
	"github.com/younes-bami/hrcut-app/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the queue intake",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log := logger.Log
		defer func() { _ = log.Sync() }()

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

		// no HTTP without the async intake
		consumer, deliveries, err := a.OpenIntake()
		if err != nil {
			return fmt.Errorf("amqp intake: %w", err)
		}
		defer func() { _ = consumer.Close() }()
		brokerClosed := consumer.NotifyClose()

		server := httpSrv.NewServer(httpSrv.Deps{
			Config:    cfg,
			Customers: a.Service,
			Verifier:  a.Verifier,
			Logins:    a.Logins,
			Redis:     a.Redis,
			Log:       log,
		})
		intake := worker.NewIntake(a.Service, validation.New("CustomerConsumer"), log, cfg.RabbitMQ.RequeueInvalid)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return server.Start(cfg.HTTP.Addr)
		})
		g.Go(func() error {
			return intake.Run(gctx, deliveries)
		})
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return nil
			case aerr, ok := <-brokerClosed:
				if !ok || aerr == nil {
					return nil
				}
				return fmt.Errorf("amqp connection lost: %w", aerr)
			}
		})
		g.Go(func() error {
			<-gctx.Done()
			log.Info("shutting down")
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shCtx)
		})

		if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("serve stopped", zap.Error(err))
			return err
		}
		return nil
	},
}
