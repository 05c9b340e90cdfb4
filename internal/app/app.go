package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sharetube/watchparty/internal/controller"
	"github.com/sharetube/watchparty/internal/metrics"
	"github.com/sharetube/watchparty/internal/player"
	"github.com/sharetube/watchparty/internal/repository/connection/inmemory"
	partyrepo "github.com/sharetube/watchparty/internal/repository/party"
	"github.com/sharetube/watchparty/internal/service/party"
	"github.com/sharetube/watchparty/internal/store"
	"github.com/sharetube/watchparty/internal/store/memory"
	natsstore "github.com/sharetube/watchparty/internal/store/nats"
	redisstore "github.com/sharetube/watchparty/internal/store/redis"
	"github.com/sharetube/watchparty/pkg/ctxlogger"
	"github.com/sharetube/watchparty/pkg/redisclient"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreNats   = "nats"
)

type AppConfig struct {
	Host                    string        `json:"host"`
	Port                    int           `json:"port"`
	LogLevel                string        `json:"log_level"`
	Store                   string        `json:"store"`
	RedisHost               string        `json:"redis_host"`
	RedisPort               int           `json:"redis_port"`
	RedisPassword           string        `json:"-"`
	NatsURL                 string        `json:"nats_url"`
	NatsBucket              string        `json:"nats_bucket"`
	PartyTTL                time.Duration `json:"party_ttl"`
	PartyID                 string        `json:"party_id"`
	LinkScheme              string        `json:"link_scheme"`
	AllowParticipantControl bool          `json:"allow_participant_control"`
	MediaURL                string        `json:"media_url"`
	MediaTitle              string        `json:"media_title"`
	MediaSubtitle           string        `json:"media_subtitle"`
	MediaDuration           float64       `json:"media_duration"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	switch cfg.Store {
	case StoreMemory:
	case StoreRedis, StoreNats:
		if cfg.PartyTTL <= 0 {
			return fmt.Errorf("party ttl must be greater than 0")
		}
	default:
		return fmt.Errorf("unknown store %q", cfg.Store)
	}

	if cfg.MediaDuration < 0 {
		return fmt.Errorf("media duration must not be negative")
	}

	return nil
}

func newLogger(level string) (*slog.Logger, error) {
	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, err
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

// newStore connects the configured backend. The returned func releases it.
func newStore(ctx context.Context, cfg *AppConfig, logger *slog.Logger) (store.Store, func(), error) {
	switch cfg.Store {
	case StoreRedis:
		rc, err := redisclient.NewRedisClient(ctx, &redisclient.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create redis client: %w", err)
		}

		s := redisstore.NewRepo(rc, cfg.PartyTTL, logger)
		return s, func() {
			s.Close()
			rc.Close()
		}, nil
	case StoreNats:
		nc, err := nats.Connect(cfg.NatsURL,
			nats.Name("watchparty"),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to nats: %w", err)
		}

		s, err := natsstore.NewStore(ctx, nc, &natsstore.Config{
			Bucket: cfg.NatsBucket,
			TTL:    cfg.PartyTTL,
		}, logger)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}

		return s, func() {
			s.Close()
			nc.Close()
		}, nil
	default:
		s := memory.NewStore(logger)
		return s, func() { s.Close() }, nil
	}
}

type application struct {
	handler    http.Handler
	controller interface{ ForwardEvents(context.Context) }
	service    interface{ Close(context.Context) error }
	closeStore func()
}

func newApplication(ctx context.Context, cfg *AppConfig, logger *slog.Logger) (*application, error) {
	s, closeStore, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	sim := player.NewSim()
	if cfg.MediaURL != "" {
		sim.Load(player.Media{
			Title:    cfg.MediaTitle,
			Subtitle: cfg.MediaSubtitle,
			URL:      cfg.MediaURL,
		}, cfg.MediaDuration)
	}

	partyService := party.NewService(partyrepo.NewRepo(s, logger), sim, logger, party.Config{
		PartyID:                 cfg.PartyID,
		LinkScheme:              cfg.LinkScheme,
		AllowParticipantControl: cfg.AllowParticipantControl,
	})
	connectionRepo := inmemory.NewRepo(logger)
	c := controller.NewController(partyService, sim, connectionRepo, logger, controller.Config{
		MediaDuration: cfg.MediaDuration,
	})

	return &application{
		handler:    c.GetMux(),
		controller: c,
		service:    partyService,
		closeStore: closeStore,
	}, nil
}

// close leaves the active party before the store goes away.
func (a *application) close(ctx context.Context) error {
	defer a.closeStore()
	return a.service.Close(ctx)
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	metrics.InitMetrics()

	a, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}

	eventsCtx, stopEvents := context.WithCancel(ctx)
	defer stopEvents()
	go a.controller.ForwardEvents(eventsCtx)

	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: a.handler}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		if err := a.close(shutdownCtx); err != nil {
			logger.WarnContext(shutdownCtx, "failed to close party service", "error", err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr, "store", cfg.Store)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-serverCtx.Done()

	return nil
}
