package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ivankudzin/matchcore/internal/config"
	"github.com/ivankudzin/matchcore/internal/jobs/reconcile"
	"github.com/ivankudzin/matchcore/internal/repo/memory"
	pgrepo "github.com/ivankudzin/matchcore/internal/repo/postgres"
	redrepo "github.com/ivankudzin/matchcore/internal/repo/redis"
	authsvc "github.com/ivankudzin/matchcore/internal/services/auth"
	blocksvc "github.com/ivankudzin/matchcore/internal/services/blocks"
	convsvc "github.com/ivankudzin/matchcore/internal/services/conversations"
	identitysvc "github.com/ivankudzin/matchcore/internal/services/identity"
	matchessvc "github.com/ivankudzin/matchcore/internal/services/matches"
	"github.com/ivankudzin/matchcore/internal/services/notify"
	ratesvc "github.com/ivankudzin/matchcore/internal/services/rate"
	relsvc "github.com/ivankudzin/matchcore/internal/services/relationships"
	swipesvc "github.com/ivankudzin/matchcore/internal/services/swipes"
	"github.com/ivankudzin/matchcore/internal/transport/http/handlers"
)

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	dispatcher *notify.Dispatcher
	closers    []func() error
	httpRouter http.Handler

	stopJobs context.CancelFunc
	jobs     sync.WaitGroup
}

// storage holds the per-driver repositories already shaped as service
// dependencies. Cross-service fields are filled in by New.
type storage struct {
	engine  matchessvc.Dependencies
	swipes  swipesvc.Dependencies
	blocks  blocksvc.Dependencies
	convs   convsvc.Dependencies
	rel     relsvc.Dependencies
	users   identitysvc.Dependencies
	inbox   notify.InboxStore
	scanner reconcile.Scanner
	ping    handlers.Pinger
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, log)

	app := &App{cfg: cfg, logger: log, httpRouter: r}

	var st storage
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		log.Warn("using in-memory store, data is lost on restart")
		st = memoryStorage(memory.NewStore())
	default:
		var pool *pgxpool.Pool
		if p, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN); err != nil {
			log.Warn("postgres init failed, continuing in degraded mode", zap.Error(err))
		} else {
			pool = p
		}
		if pool != nil && cfg.Store.Migrate {
			if err := pgrepo.Migrate(ctx, pool); err != nil {
				log.Warn("postgres migration failed", zap.Error(err))
			}
		}
		app.postgres = pool
		st = postgresStorage(pool)
	}

	health := map[string]handlers.Pinger{"postgres": st.ping}
	limiter := ratesvc.NewLimiter(nil, nil)
	if cfg.Redis.Addr != "" {
		app.redis = redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		st.users.Cache = redrepo.NewIdentityCacheRepo(app.redis, cfg.Identity.CacheTTL)
		limiter = ratesvc.NewLimiter(redrepo.NewRateRepo(app.redis), limitRules(cfg.Limits))
		health["redis"] = pingFunc(func(ctx context.Context) error {
			return app.redis.Ping(ctx).Err()
		})
	} else {
		log.Warn("redis is not configured, identity cache and rate limits are off")
	}

	st.users.Logger = log
	identityService := identitysvc.NewService(st.users)
	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTAccessTTL)
	authService := authsvc.NewService(jwtManager, identityService)
	if cfg.Identity.AutoRegister {
		authService.AttachRegistrar(identityService)
	}

	var inbox *notify.Inbox
	publishers := notify.Fanout{}
	if cfg.Notify.Inbox {
		publishers = append(publishers, notify.NewInboxPublisher(st.inbox))
		inbox = notify.NewInbox(st.inbox, cfg.Notify.InboxMaxLimit)
	}
	if len(cfg.Notify.Kafka.Brokers) > 0 {
		if producer, err := notify.NewKafkaProducer(cfg.Notify.Kafka.Brokers, cfg.Notify.Kafka.ClientID); err != nil {
			log.Warn("kafka init failed, notifications will not be streamed", zap.Error(err))
		} else {
			kafkaPublisher := notify.NewKafkaPublisher(producer, cfg.Notify.Kafka.Topic)
			publishers = append(publishers, kafkaPublisher)
			app.closers = append(app.closers, kafkaPublisher.Close)
		}
	}
	if cfg.Notify.NATS.URL != "" {
		if conn, err := notify.ConnectNats(cfg.Notify.NATS.URL, cfg.Notify.Kafka.ClientID); err != nil {
			log.Warn("nats init failed, realtime notifications are off", zap.Error(err))
		} else {
			natsPublisher := notify.NewNatsPublisher(conn, cfg.Notify.NATS.SubjectPrefix)
			publishers = append(publishers, natsPublisher)
			app.closers = append(app.closers, natsPublisher.Close)
		}
	}
	app.dispatcher = notify.NewDispatcher(notify.Dependencies{
		Publisher: publishers,
		Logger:    log,
	}, notify.Config{
		QueueSize:      cfg.Notify.QueueSize,
		Workers:        cfg.Notify.Workers,
		PublishTimeout: cfg.Notify.PublishTimeout,
	})
	app.dispatcher.Start()

	st.engine.Notifier = app.dispatcher
	st.engine.Logger = log
	engine := matchessvc.NewEngine(st.engine, matchessvc.Config{MaxListLimit: cfg.Engine.MaxListLimit})

	st.swipes.Engine = engine
	st.swipes.Notifier = app.dispatcher
	st.swipes.Logger = log
	swipeService := swipesvc.NewService(st.swipes, swipesvc.Config{
		MaxBatchSize: cfg.Engine.MaxBatchSize,
		MaxListLimit: cfg.Engine.MaxListLimit,
	})

	st.blocks.Cascader = engine
	st.blocks.Logger = log
	blockService := blocksvc.NewService(st.blocks)

	st.convs.Notifier = app.dispatcher
	st.convs.Logger = log
	conversationService := convsvc.NewService(st.convs, convsvc.Config{
		MaxMessageLength:    cfg.Engine.MaxMessageLength,
		MaxHistoryLimit:     cfg.Engine.MaxHistoryLimit,
		MaxConversationList: cfg.Engine.MaxConversationList,
	})

	st.rel.Facts = engine
	relationshipService := relsvc.NewService(st.rel, relsvc.Config{MaxListLimit: cfg.Engine.MaxListLimit})

	RegisterRoutes(r, Dependencies{
		AuthService:         authService,
		Resolver:            identityService,
		RateLimiter:         limiter,
		SwipeService:        swipeService,
		MatchEngine:         engine,
		BlockService:        blockService,
		ConversationService: conversationService,
		RelationshipService: relationshipService,
		Inbox:               inbox,
		HealthChecks:        health,
		Logger:              log,
	})

	app.server = &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	if cfg.Reconcile.Enabled {
		job := reconcile.New(st.scanner, engine, reconcile.Config{
			Interval:  cfg.Reconcile.Interval,
			BatchSize: cfg.Reconcile.BatchSize,
		}, log)
		jobCtx, cancel := context.WithCancel(context.Background())
		app.stopJobs = cancel
		app.jobs.Add(1)
		go func() {
			defer app.jobs.Done()
			if err := job.Run(jobCtx); err != nil {
				log.Error("reconcile job stopped", zap.Error(err))
			}
		}()
	}

	return app, nil
}

func postgresStorage(pool *pgxpool.Pool) storage {
	tx := pgrepo.NewPairTransactor(pool)
	swipeRepo := pgrepo.NewSwipeRepo(pool)
	matchRepo := pgrepo.NewMatchRepo(pool)
	messageRepo := pgrepo.NewMessageRepo(pool)
	blockRepo := pgrepo.NewBlockRepo(pool)
	userRepo := pgrepo.NewUserRepo(pool)

	st := newStorage(tx, swipeRepo, matchRepo, messageRepo, blockRepo)
	st.users = identitysvc.Dependencies{Users: userRepo, Registrar: userRepo}
	st.inbox = pgrepo.NewNotificationRepo(pool)
	st.scanner = pgrepo.NewReconcileRepo(pool)
	st.ping = pingFunc(func(ctx context.Context) error {
		if pool == nil {
			return errors.New("postgres pool is nil")
		}
		return pool.Ping(ctx)
	})
	return st
}

func memoryStorage(store *memory.Store) storage {
	tx := memory.NewTransactor()
	swipeRepo := memory.NewSwipeRepo(store)
	matchRepo := memory.NewMatchRepo(store)
	messageRepo := memory.NewMessageRepo(store)
	blockRepo := memory.NewBlockRepo(store)
	userRepo := memory.NewUserRepo(store)

	st := newStorage(tx, swipeRepo, matchRepo, messageRepo, blockRepo)
	st.users = identitysvc.Dependencies{Users: userRepo, Registrar: userRepo}
	st.inbox = memory.NewNotificationRepo(store)
	st.scanner = memory.NewReconcileRepo(store)
	return st
}

// The repository sets each driver must provide. Both the postgres and the
// memory repositories satisfy them.
type (
	swipeRepo interface {
		matchessvc.SwipeStore
		swipesvc.SwipeStore
		relsvc.SwipeStore
	}
	matchRepo interface {
		matchessvc.MatchStore
		swipesvc.MatchCounter
		convsvc.MatchStore
	}
	messageRepo interface {
		matchessvc.MessageStore
		convsvc.MessageStore
	}
	blockRepo interface {
		blocksvc.BlockStore
		relsvc.BlockStore
	}
)

func newStorage(tx matchessvc.Transactor, swipes swipeRepo, matches matchRepo, messages messageRepo, blocks blockRepo) storage {
	return storage{
		engine: matchessvc.Dependencies{Tx: tx, Swipes: swipes, Matches: matches, Messages: messages, Blocks: blocks},
		swipes: swipesvc.Dependencies{Tx: tx, Swipes: swipes, Blocks: blocks, Matches: matches},
		blocks: blocksvc.Dependencies{Tx: tx, Blocks: blocks},
		convs:  convsvc.Dependencies{Tx: tx, Messages: messages, Matches: matches, Blocks: blocks},
		rel:    relsvc.Dependencies{Tx: tx, Swipes: swipes, Matches: matches, Blocks: blocks},
	}
}

func limitRules(limits config.LimitsConfig) map[string][]ratesvc.Rule {
	return map[string][]ratesvc.Rule{
		ratesvc.ActionSwipe: {
			{Limit: limits.SwipesPer10Seconds, Window: 10 * time.Second},
			{Limit: limits.SwipesPerMinute, Window: time.Minute},
		},
		ratesvc.ActionMessage: {
			{Limit: limits.MessagesPer10Seconds, Window: 10 * time.Second},
			{Limit: limits.MessagesPerMinute, Window: time.Minute},
		},
		ratesvc.ActionBlock: {
			{Limit: limits.BlocksPerMinute, Window: time.Minute},
		},
	}
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the listener first, then drains queued notifications
// before closing the stores they may still write to.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.stopJobs != nil {
		a.stopJobs()
		a.jobs.Wait()
	}
	if a.dispatcher != nil {
		if err := a.dispatcher.Close(ctx); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}

	return shutdownErr
}

func (a *App) Handler() http.Handler {
	return a.httpRouter
}
