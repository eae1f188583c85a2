// Package bootstrap is the composition root: it connects the infrastructure
// named in the config and wires it into one kiosk session.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aq2208/kiosk-api/configs"
	"github.com/aq2208/kiosk-api/internal/adapter/cache"
	"github.com/aq2208/kiosk-api/internal/adapter/http"
	"github.com/aq2208/kiosk-api/internal/adapter/kafka"
	"github.com/aq2208/kiosk-api/internal/adapter/observ"
	"github.com/aq2208/kiosk-api/internal/adapter/queue"
	"github.com/aq2208/kiosk-api/internal/adapter/vending"
	domain "github.com/aq2208/kiosk-api/internal/entity"
	"github.com/aq2208/kiosk-api/internal/eventloop"
	"github.com/aq2208/kiosk-api/internal/logging"
	"github.com/aq2208/kiosk-api/internal/timeouts"
	"github.com/aq2208/kiosk-api/internal/usecase"
	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

type Kiosk struct {
	Loop    *eventloop.Runner
	Session *usecase.Session
	Router  *gin.Engine
	Log     *slog.Logger

	// Optional infrastructure; nil when not configured.
	Rabbit *amqp.Channel
	Dedup  kafka.Deduper
}

func InitWithConfig(cfg configs.Config) (*Kiosk, func(), error) {
	logging.Init(logging.Options{Component: cfg.App.Name, File: cfg.App.LogFile, Level: cfg.App.LogLevel})
	log := logging.New("bootstrap")

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Kiosk, func(), error) {
		cleanup()
		return nil, nil, err
	}

	backend, err := vending.NewClient(cfg.Vending.BaseURL, cfg.Vending.Timeout)
	if err != nil {
		return fail(err)
	}

	k := &Kiosk{Log: log}

	// durable order record
	var store usecase.OrderStore = cache.NewMemoryOrderStore()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = rdb.Close() })
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			return fail(fmt.Errorf("redis ping: %w", err))
		}
		store = cache.NewRedisOrderStore(rdb, cfg.Kiosk.ID, cfg.Redis.OrderTTL)
		k.Dedup = cache.NewRedisDedupStore(rdb, cfg.Kiosk.ID, cfg.Redis.DedupTTL)
	} else {
		log.Warn("redis not configured; order record will not survive restarts")
	}

	// outcome events + command queue
	var pub usecase.OutcomePublisher
	if cfg.Rabbit.URL != "" {
		conn, err := amqp.Dial(cfg.Rabbit.URL)
		if err != nil {
			return fail(fmt.Errorf("rabbitmq dial: %w", err))
		}
		closers = append(closers, func() { _ = conn.Close() })
		ch, err := conn.Channel()
		if err != nil {
			return fail(fmt.Errorf("rabbitmq channel: %w", err))
		}
		producer, err := queue.NewRabbitProducer(ch)
		if err != nil {
			return fail(err)
		}
		if err := queue.DeclareCommandQueue(ch, cfg.Rabbit.CommandsQueue, cfg.Kiosk.ID); err != nil {
			return fail(err)
		}
		pub = producer
		k.Rabbit = ch
	}

	reg := prometheus.DefaultRegisterer
	rec := observ.NewRecorder(reg)

	k.Loop = eventloop.NewRunner(clock.New(), logging.New("loop"))
	k.Session = usecase.NewSession(k.Loop, backend, store, pub, rec, SessionConfig(cfg), logging.New("session"))

	h := http.NewKioskHandler(k.Session, cfg.HTTP.ActionTimeout)
	k.Router = http.NewRouter(h, prometheus.DefaultGatherer, logging.New("http"))

	return k, cleanup, nil
}

// SessionConfig maps the kiosk section of the config onto the engine.
func SessionConfig(cfg configs.Config) usecase.SessionConfig {
	p := cfg.Kiosk.Payment
	return usecase.SessionConfig{
		KioskID:    cfg.Kiosk.ID,
		PointLabel: cfg.Kiosk.PointLabel,
		Language:   cfg.Kiosk.Language,
		Overlay:    cfg.Kiosk.Overlay,
		Timeouts: timeouts.Durations{
			Status:  cfg.Kiosk.Timeouts.Status,
			Receipt: cfg.Kiosk.Timeouts.Receipt,
			Success: cfg.Kiosk.Timeouts.Success,
			Catalog: cfg.Kiosk.Timeouts.Catalog,
			Payment: cfg.Kiosk.Timeouts.Payment,
		},
		Lifecycle: usecase.LifecycleConfig{
			CryptoDeadline:  p.CryptoDeadline,
			CryptoCadence:   p.CryptoCadence,
			CallTimeout:     p.CallTimeout,
			DefaultInterval: domain.PollInterval{MaxTimeInSeconds: p.DefaultMaxTime, NumberOfTries: p.DefaultAttempts},
		},
	}
}
