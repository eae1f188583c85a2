package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aq2208/kiosk-api/configs"
	"github.com/aq2208/kiosk-api/internal/adapter/kafka"
	"github.com/aq2208/kiosk-api/internal/adapter/queue"
	"github.com/aq2208/kiosk-api/internal/bootstrap"
	"github.com/aq2208/kiosk-api/internal/logging"
	"github.com/aq2208/kiosk-api/internal/usecase"
	"golang.org/x/sync/errgroup"
)

type App struct {
	cfg   configs.Config
	kiosk *bootstrap.Kiosk
}

func InitWithConfig(cfg configs.Config) (*App, func(), error) {
	k, cleanup, err := bootstrap.InitWithConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	return &App{cfg: cfg, kiosk: k}, cleanup, nil
}

// Run serves until ctx is cancelled or a component fails, then shuts the
// HTTP server down gracefully and stops the event loop.
func (a *App) Run(ctx context.Context) error {
	log := a.kiosk.Log
	g, ctx := errgroup.WithContext(ctx)

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() { loopDone <- a.kiosk.Loop.Run(loopCtx) }()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	// first catalog load; an empty code is recovered from the store
	if err := a.kiosk.Session.Do(ctx, func(s *usecase.Session) error {
		s.LoadCatalog(a.cfg.Kiosk.ScanCode)
		return nil
	}); err != nil {
		return err
	}

	if a.kiosk.Rabbit != nil {
		if err := a.setupQueue(); err != nil {
			return err
		}
	}
	if len(a.cfg.Kafka.Brokers) > 0 {
		consumer, err := a.setupKafkaListener()
		if err != nil {
			return err
		}
		g.Go(func() error {
			defer consumer.Group.Close()
			return consumer.Start(ctx)
		})
	}

	srv := &http.Server{
		Addr:         a.cfg.App.HTTPAddr,
		Handler:      a.kiosk.Router,
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}
	g.Go(func() error {
		log.Info("kiosk-api listening", "addr", srv.Addr, "kiosk_id", a.cfg.Kiosk.ID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		log.Info("kiosk-api shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) setupQueue() error {
	h := queue.NewCommandHandler(a.kiosk.Session)

	router := queue.NewRouter(a.kiosk.Rabbit,
		queue.WithPrefetch(a.cfg.Rabbit.Prefetch),
		queue.WithTimeout(5*time.Second),
		queue.WithLogger(logging.New("rmq")))
	router.Register(a.cfg.Rabbit.CommandsQueue, queue.JSONHandler[usecase.KioskCommandMsg]{HandleFunc: h.HandleCommand})

	return router.Start()
}

func (a *App) setupKafkaListener() (*kafka.Consumer, error) {
	grp, err := kafka.NewGroup(a.cfg.Kafka.Brokers, a.cfg.Kafka.GroupID, a.cfg.App.Name)
	if err != nil {
		return nil, err
	}

	log := logging.New("kafka")
	h := kafka.NewStatusChangedHandler(a.kiosk.Session, a.kiosk.Dedup, log)
	return kafka.NewConsumer(grp, []string{a.cfg.Kafka.TopicStatus}, h.Handle, log), nil
}
