package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/sharetube/jukebox/internal/advance"
	"github.com/sharetube/jukebox/internal/cache"
	"github.com/sharetube/jukebox/internal/controller"
	"github.com/sharetube/jukebox/internal/engine"
	"github.com/sharetube/jukebox/internal/events"
	"github.com/sharetube/jukebox/internal/lock"
	"github.com/sharetube/jukebox/internal/playback"
	"github.com/sharetube/jukebox/internal/provider"
	"github.com/sharetube/jukebox/internal/repository/connection/inmemory"
	roomRepo "github.com/sharetube/jukebox/internal/repository/room"
	roomMongo "github.com/sharetube/jukebox/internal/repository/room/mongo"
	roomRedis "github.com/sharetube/jukebox/internal/repository/room/redis"
	"github.com/sharetube/jukebox/internal/service/room"
	"github.com/sharetube/jukebox/pkg/ctxlogger"
	"github.com/sharetube/jukebox/pkg/redisclient"
	"github.com/sharetube/jukebox/pkg/validator"
)

const (
	StoreRedis = "redis"
	StoreMongo = "mongo"
	LockMemory = "memory"
	LockRedis  = "redis"
)

type AppConfig struct {
	Host          string `json:"host" validate:"required"`
	Port          int    `json:"port" validate:"gte=1,lte=65535"`
	LogLevel      string `json:"log_level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	RedisPort     int    `json:"redis_port" validate:"gte=1,lte=65535"`
	RedisHost     string `json:"redis_host" validate:"required"`
	RedisPassword string `json:"-"`
	RedisDB       int    `json:"redis_db" validate:"gte=0"`

	StoreBackend  string        `json:"store_backend" validate:"oneof=redis mongo"`
	RoomTTL       time.Duration `json:"room_ttl" validate:"gt=0"`
	MongoURI      string        `json:"-"`
	MongoDatabase string        `json:"mongo_database"`
	LockBackend   string        `json:"lock_backend" validate:"oneof=memory redis"`
	NATSURL       string        `json:"nats_url"`
	RedisEvents   bool          `json:"redis_events"`

	ProviderURL          string        `json:"provider_url" validate:"required,url"`
	ProviderTimeout      time.Duration `json:"provider_timeout" validate:"gt=0"`
	ProviderAttempts     int           `json:"provider_attempts" validate:"gte=1,lte=10"`
	ProviderBackoff      time.Duration `json:"provider_backoff" validate:"gt=0"`
	ProviderMaxBackoff   time.Duration `json:"provider_max_backoff" validate:"gtefield=ProviderBackoff"`
	QueueTickInterval    time.Duration `json:"queue_tick_interval" validate:"gt=0"`
	RotationTickInterval time.Duration `json:"rotation_tick_interval" validate:"gt=0"`
	IdleSweepInterval    time.Duration `json:"idle_sweep_interval" validate:"gte=0"`
	IdleTimeout          time.Duration `json:"idle_timeout" validate:"gt=0"`
	PrepareOffset        time.Duration `json:"prepare_offset"`
	SoftOffset           time.Duration `json:"soft_offset"`
	HardTolerance        time.Duration `json:"hard_tolerance"`
	LockCooldown         time.Duration `json:"lock_cooldown"`
	LockTTL              time.Duration `json:"lock_ttl"`
	LockWait             time.Duration `json:"lock_wait" validate:"gte=0"`
	AdvanceTimeout       time.Duration `json:"advance_timeout"`

	VoteSkipRatio   float64       `json:"vote_skip_ratio" validate:"gt=0,lte=1"`
	CoopVoteRatio   float64       `json:"coop_vote_ratio" validate:"gt=0,lte=1"`
	AutoplayMax     int           `json:"autoplay_max" validate:"gte=0"`
	DriftIgnore     time.Duration `json:"drift_ignore" validate:"gte=0"`
	DriftHard       time.Duration `json:"drift_hard" validate:"gtfield=DriftIgnore"`
	DriftJitter     time.Duration `json:"drift_jitter" validate:"gte=0"`
	CacheSize       int           `json:"cache_size" validate:"gte=1"`
	CacheTTL        time.Duration `json:"cache_ttl" validate:"gt=0"`
	ConflictRetries int           `json:"conflict_retries" validate:"gte=1,lte=10"`
	WriteTimeout    time.Duration `json:"write_timeout" validate:"gt=0"`
}

func (cfg *AppConfig) engineConfig(interval time.Duration) engine.Config {
	return engine.Config{
		Interval:          interval,
		PrepareOffset:     cfg.PrepareOffset,
		SoftOffset:        cfg.SoftOffset,
		HardTolerance:     cfg.HardTolerance,
		LockCooldown:      cfg.LockCooldown,
		LockTTL:           cfg.LockTTL,
		AdvanceTimeout:    cfg.AdvanceTimeout,
		IdleSweepInterval: cfg.IdleSweepInterval,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

func (cfg *AppConfig) Validate() error {
	if errs, ok := validator.NewValidator().Validate(cfg); !ok {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Message)
		}

		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}

	if cfg.StoreBackend == StoreMongo && (cfg.MongoURI == "" || cfg.MongoDatabase == "") {
		return errors.New("invalid config: mongo store needs mongo uri and database")
	}

	// both engines share the lock cool-down, so it must outlast either tick
	for _, interval := range []time.Duration{cfg.QueueTickInterval, cfg.RotationTickInterval} {
		if err := cfg.engineConfig(interval).Validate(); err != nil {
			return err
		}
	}

	return nil
}

func newLogger(level string) (*slog.Logger, error) {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	return slog.New(&h), nil
}

func newStore(ctx context.Context, cfg *AppConfig, rc *redis.Client) (roomRepo.Store, func(), error) {
	if cfg.StoreBackend != StoreMongo {
		return roomRedis.NewRepo(rc, cfg.RoomTTL), func() {}, nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	closeFn := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Disconnect(ctx)
	}

	repo := roomMongo.NewRepo(client.Database(cfg.MongoDatabase))
	if err := repo.EnsureIndexes(ctx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("failed to create mongo indexes: %w", err)
	}

	return repo, closeFn, nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	rc, err := redisclient.NewRedisClient(&redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	store, closeStore, err := newStore(ctx, cfg, rc)
	if err != nil {
		return err
	}
	defer closeStore()

	var (
		locker    lock.Locker
		memLocker *lock.InMemory
	)
	if cfg.LockBackend == LockRedis {
		locker = lock.NewRedis(rc, uuid.NewString())
	} else {
		memLocker = lock.NewInMemory()
		locker = memLocker
	}

	connRepo := inmemory.NewRepo()
	publishers := events.Multi{events.NewHub(connRepo, cfg.WriteTimeout, logger)}
	if cfg.RedisEvents {
		publishers = append(publishers, events.NewRedisPublisher(rc, logger))
	}
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("jukebox"))
		if err != nil {
			return fmt.Errorf("failed to connect to nats: %w", err)
		}
		defer nc.Drain()
		publishers = append(publishers, events.NewNATSPublisher(nc, logger))
	}

	tracks := provider.NewRetrying(
		provider.NewHTTPProvider(cfg.ProviderURL, cfg.ProviderTimeout),
		provider.RetryPolicy{
			MaxAttempts:     cfg.ProviderAttempts,
			InitialInterval: cfg.ProviderBackoff,
			MaxInterval:     cfg.ProviderMaxBackoff,
			Multiplier:      2,
		},
		logger,
	)
	roomCache := cache.NewRoomCache(cfg.CacheSize, cfg.CacheTTL)
	selector := advance.NewSelector(advance.Config{AutoplayMax: cfg.AutoplayMax}, tracks, logger)

	roomService := room.NewService(room.Deps{
		Store:     store,
		Cache:     roomCache,
		Locker:    locker,
		Selector:  selector,
		Provider:  tracks,
		Publisher: publishers,
		Logger:    logger,
	}, room.Config{
		VoteSkipRatio:   cfg.VoteSkipRatio,
		CoopVoteRatio:   cfg.CoopVoteRatio,
		ConflictRetries: cfg.ConflictRetries,
		LockTTL:         cfg.LockTTL,
		LockWait:        cfg.LockWait,
		Drift: playback.Thresholds{
			Ignore: cfg.DriftIgnore,
			Hard:   cfg.DriftHard,
			Jitter: cfg.DriftJitter,
		},
	})

	engineDeps := engine.Deps{
		Store:     store,
		Locker:    locker,
		Selector:  selector,
		Publisher: publishers,
		Cache:     roomCache,
		Logger:    logger,
	}
	engines := []*engine.Engine{
		engine.NewQueueEngine(engineDeps, cfg.engineConfig(cfg.QueueTickInterval)),
		engine.NewRotationEngine(engineDeps, cfg.engineConfig(cfg.RotationTickInterval)),
	}

	controller := controller.NewController(roomService, connRepo, logger, cfg.WriteTimeout)
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           controller.GetMux(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)
	for _, e := range engines {
		g.Go(func() error {
			return e.Run(gCtx)
		})
	}

	if memLocker != nil {
		g.Go(func() error {
			pruneLocks(gCtx, memLocker, cfg.LockTTL, logger)
			return nil
		})
	}

	g.Go(func() error {
		logger.InfoContext(gCtx, "starting server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}

		return nil
	})

	// graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		logger.InfoContext(shutdownCtx, "shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}

		return nil
	})

	return g.Wait()
}

// pruneLocks drops expired keys left behind by the in-memory locker.
func pruneLocks(ctx context.Context, l *lock.InMemory, every time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Prune(); n > 0 {
				logger.DebugContext(ctx, "expired locks pruned", "count", n)
			}
		}
	}
}
