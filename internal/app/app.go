package app

import (
	"context"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/younes-bami/hrcut-app/internal/auth"
	"github.com/younes-bami/hrcut-app/internal/config"
	"github.com/younes-bami/hrcut-app/internal/db"
	"github.com/younes-bami/hrcut-app/internal/kafka"
	"github.com/younes-bami/hrcut-app/internal/rabbitmq"
	"github.com/younes-bami/hrcut-app/internal/repository"
	"github.com/younes-bami/hrcut-app/internal/service/customers"
)

// App holds the process-wide collaborators shared by the CLI commands.
type App struct {
	Cfg       config.Config
	Log       *zap.Logger
	Customers repository.CustomersRepository
	Logins    repository.AuthEventsRepository
	Service   *customers.Service
	Tokens    *auth.Tokens // nil when no signing secret is configured
	Verifier  auth.Verifier
	Redis     *redis.Client

	closers []func() error
}

// New connects every configured backend. Optional ones (Redis, ClickHouse,
// Kafka) are skipped when unset; the customer store is mandatory.
func New(cfg config.Config, log *zap.Logger) (_ *App, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Cfg: cfg, Log: log}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if err := a.openStore(); err != nil {
		return nil, err
	}
	if err := a.openAudit(); err != nil {
		return nil, err
	}

	a.Redis, err = db.NewRedisClient(db.RedisOptsFrom(cfg.Redis))
	if err != nil {
		return nil, fmt.Errorf("redis connect: %w", err)
	}
	if a.Redis != nil {
		a.closers = append(a.closers, a.Redis.Close)
	}

	if cfg.Auth.JWTSecret != "" {
		a.Tokens, err = auth.NewTokens(auth.TokenOpts{
			Secret:   []byte(cfg.Auth.JWTSecret),
			TTL:      cfg.Auth.TokenTTL,
			Issuer:   cfg.Auth.Issuer,
			Audience: cfg.Auth.Audience,
		})
		if err != nil {
			return nil, err
		}
	}
	switch cfg.Auth.Mode {
	case config.AuthModeRemote:
		a.Verifier = auth.NewRemoteVerifier(auth.RemoteOpts{
			BaseURL:       cfg.Auth.RemoteURL,
			Timeout:       cfg.Auth.RemoteTimeout,
			FailThreshold: cfg.Auth.Breaker.FailThreshold,
			OpenFor:       cfg.Auth.Breaker.OpenFor,
		})
	default:
		if a.Tokens == nil {
			return nil, errors.New("auth.jwt_secret is required in local mode")
		}
		a.Verifier = auth.NewLocalVerifier(a.Tokens)
	}

	var events customers.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		p := kafka.NewProducerFromConfig(kafka.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		a.closers = append(a.closers, p.Close)
		events = p
	}

	var issuer customers.TokenIssuer
	if a.Tokens != nil {
		issuer = a.Tokens
	}
	a.Service = customers.New(
		a.Customers,
		auth.NewBcryptHasher(cfg.Bcrypt.Cost),
		issuer,
		events,
		a.Logins,
		log,
		customers.Options{
			LoginScopes:      cfg.Auth.LoginScopes,
			LoginPermissions: cfg.Auth.LoginPermissions,
		},
	)
	return a, nil
}

func (a *App) openStore() error {
	cfg := a.Cfg
	switch cfg.Store.Driver {
	case config.StoreMongo:
		client, err := db.NewMongoClient(db.MongoOpts{URI: cfg.Mongo.URI, ConnectTimeout: cfg.Mongo.ConnectTimeout})
		if err != nil {
			return fmt.Errorf("mongo connect: %w", err)
		}
		a.closers = append(a.closers, func() error { return client.Disconnect(context.Background()) })
		coll := client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)
		a.Customers = repository.NewMongoCustomersRepository(coll)
	case config.StoreMySQL:
		dbx, err := db.NewMySQLConnection(cfg.MySQL.DSN, db.OptsFrom(cfg.MySQL))
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		a.closers = append(a.closers, dbx.Close)
		a.Customers = repository.NewMySQLCustomersRepository(dbx)
	case config.StoreMemory:
		a.Log.Warn("using in-memory customer store; data is lost on exit")
		a.Customers = repository.NewMemoryCustomersRepository()
	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	return nil
}

func (a *App) openAudit() error {
	if a.Cfg.ClickHouse.DSN == "" {
		a.Logins = repository.NewMemoryAuthEventsRepository()
		return nil
	}
	chDB, err := db.NewClickHouseConnection(a.Cfg.ClickHouse.DSN, db.OptsFrom(a.Cfg.ClickHouse))
	if err != nil {
		return fmt.Errorf("clickhouse connect: %w", err)
	}
	a.closers = append(a.closers, chDB.Close)
	a.Logins = repository.NewCHAuthEventsRepository(chDB)
	return nil
}

// EnsureSchema creates indexes and tables; safe to run on every start.
func (a *App) EnsureSchema(ctx context.Context) error {
	if err := a.Customers.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("customers schema: %w", err)
	}
	if err := a.Logins.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("login audit schema: %w", err)
	}
	return nil
}

// OpenIntake connects to the broker, declares the topology and starts a
// manual-ack consume. Any failure here is fatal for the caller.
func (a *App) OpenIntake() (*rabbitmq.Consumer, <-chan amqp.Delivery, error) {
	rc := a.Cfg.RabbitMQ
	consumer, err := rabbitmq.Dial(rc.URL)
	if err != nil {
		return nil, nil, err
	}
	if err := consumer.Setup(rabbitmq.Topology{
		Exchange:   rc.Exchange,
		Queue:      rc.Queue,
		RoutingKey: rc.RoutingKey,
		Prefetch:   rc.Prefetch,
	}); err != nil {
		_ = consumer.Close()
		return nil, nil, err
	}
	deliveries, err := consumer.Deliveries("hrcut-intake")
	if err != nil {
		_ = consumer.Close()
		return nil, nil, err
	}
	a.Log.Info("amqp intake bound",
		zap.String("exchange", rc.Exchange),
		zap.String("queue", rc.Queue),
		zap.String("routing_key", rc.RoutingKey))
	return consumer, deliveries, nil
}

// Close releases backends in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
