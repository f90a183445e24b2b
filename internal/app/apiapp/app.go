package apiapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/IdrisKulubi/demo-site-sub001/internal/config"
	"github.com/IdrisKulubi/demo-site-sub001/internal/domain/enums"
	s3infra "github.com/IdrisKulubi/demo-site-sub001/internal/infra/s3"
	pgrepo "github.com/IdrisKulubi/demo-site-sub001/internal/repo/postgres"
	redrepo "github.com/IdrisKulubi/demo-site-sub001/internal/repo/redis"
	authsvc "github.com/IdrisKulubi/demo-site-sub001/internal/services/auth"
	cachesvc "github.com/IdrisKulubi/demo-site-sub001/internal/services/cache"
	candidatesvc "github.com/IdrisKulubi/demo-site-sub001/internal/services/candidates"
	"github.com/IdrisKulubi/demo-site-sub001/internal/services/chat"
	matchessvc "github.com/IdrisKulubi/demo-site-sub001/internal/services/matches"
	messagesvc "github.com/IdrisKulubi/demo-site-sub001/internal/services/messages"
	ratesvc "github.com/IdrisKulubi/demo-site-sub001/internal/services/rate"
	swipesvc "github.com/IdrisKulubi/demo-site-sub001/internal/services/swipes"
)

const schemaTimeout = 10 * time.Second

type App struct {
	cfg        config.Config
	logger     *zap.Logger
	server     *http.Server
	postgres   *pgxpool.Pool
	redis      *goredis.Client
	channel    *chat.Channel
	stopRelay  context.CancelFunc
	httpRouter http.Handler
}

// New wires the service. Postgres is required for every write; Redis and S3
// are optional and the app degrades without them (no cache, no rate limits,
// single-instance chat, no photo links).
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is nil")
	}

	r := chi.NewRouter()
	ApplyMiddlewares(r, cfg.HTTP, log)

	pool, err := pgrepo.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, err
	}
	schemaCtx, cancel := context.WithTimeout(ctx, schemaTimeout)
	if err := pgrepo.ApplySchema(schemaCtx, pool); err != nil {
		log.Warn("postgres schema not applied, continuing in degraded mode", zap.Error(err))
	}
	cancel()

	var (
		redisClient *goredis.Client
		cacheStore  cachesvc.Store
		windowStore ratesvc.WindowStore
		broker      chat.Broker
	)
	if c, err := redrepo.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); err != nil {
		log.Warn("redis init failed, continuing without cache, rate limits and chat relay", zap.Error(err))
	} else {
		redisClient = c
		cacheStore = redrepo.NewCacheRepo(c)
		windowStore = redrepo.NewRateRepo(c)
		broker = redrepo.NewPubSubRepo(c)
	}

	var photoSigner candidatesvc.PhotoSigner
	if c, err := s3infra.NewClient(s3infra.Config{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		Region:    cfg.S3.Region,
		UseSSL:    cfg.S3.UseSSL,
	}); err != nil {
		log.Warn("s3 init failed, photos will not be signed", zap.Error(err))
	} else {
		photoSigner = s3infra.NewPhotoSigner(c, cfg.S3.Bucket, cfg.S3.PhotoTTL)
	}

	txManager := pgrepo.NewTxManager(pool)
	profileRepo := pgrepo.NewProfileRepo(pool)
	candidateRepo := pgrepo.NewCandidateRepo(pool)
	swipeRepo := pgrepo.NewSwipeRepo(pool)
	matchRepo := pgrepo.NewMatchRepo(pool)
	messageRepo := pgrepo.NewMessageRepo(pool)

	cache := cachesvc.New(cacheStore, log.Named("cache"), cfg.Cache.OpTimeout)
	limiter := ratesvc.NewLimiter(windowStore, map[string]ratesvc.Rule{
		ratesvc.BucketSwipe:      {Limit: cfg.Limits.Swipe.Limit, Window: cfg.Limits.Swipe.Window},
		ratesvc.BucketCandidates: {Limit: cfg.Limits.Candidates.Limit, Window: cfg.Limits.Candidates.Window},
		ratesvc.BucketMessage:    {Limit: cfg.Limits.Message.Limit, Window: cfg.Limits.Message.Window},
	}, cfg.Cache.OpTimeout, log.Named("rate"))
	jwtManager := authsvc.NewJWTManager(cfg.Auth.JWTSecret, 0)

	matchesService := matchessvc.NewService(matchessvc.Dependencies{
		MatchStore:  matchRepo,
		LikeLookup:  swipeRepo,
		Cache:       cache,
		PhotoSigner: photoSigner,
		Logger:      log.Named("matches"),
	}, matchessvc.Config{
		MatchTTL: cfg.Cache.MatchTTL,
	})

	hub := chat.NewHub(cfg.Chat.SubscriberBuffer, log.Named("hub"))
	channel := chat.NewChannel(hub, broker, matchesService, chat.Config{
		PublishTimeout: cfg.Chat.PublishTimeout,
		ChannelPrefix:  cfg.Chat.ChannelPrefix,
	}, log.Named("chat"))
	matchesService.AttachPublisher(channel)

	candidatesService := candidatesvc.NewService(candidatesvc.Dependencies{
		Candidates:  candidateRepo,
		Profiles:    profileRepo,
		Swipes:      swipeRepo,
		Cache:       cache,
		RateGate:    limiter,
		PhotoSigner: photoSigner,
		Logger:      log.Named("candidates"),
	}, candidatesvc.Config{
		PageSize:      cfg.Candidates.PageSize,
		CandidatesTTL: cfg.Cache.CandidatesTTL,
		ProfileTTL:    cfg.Cache.ProfileTTL,
		GenderPolicy:  enums.ParseGenderPolicy(cfg.Candidates.GenderPolicy),
	})
	swipeService := swipesvc.NewService(swipesvc.Dependencies{
		Tx:         txManager,
		SwipeStore: swipeRepo,
		Matches:    matchesService,
		Profiles:   candidatesService,
		Candidates: candidatesService,
		RateGate:   limiter,
		Logger:     log.Named("swipes"),
	})
	messageService := messagesvc.NewService(messagesvc.Dependencies{
		Store:     messageRepo,
		Matches:   matchesService,
		Publisher: channel,
		RateGate:  limiter,
		Logger:    log.Named("messages"),
	}, messagesvc.Config{
		MaxLength:    cfg.Chat.MaxMessageLength,
		HistoryLimit: cfg.Chat.HistoryPageSize,
	})

	relayCtx, stopRelay := context.WithCancel(context.Background())
	if err := channel.Start(relayCtx); err != nil {
		log.Warn("chat relay not started, delivering to local subscribers only", zap.Error(err))
	}

	RegisterRoutes(r, Dependencies{
		Tokens:     jwtManager,
		Candidates: candidatesService,
		Swipes:     swipeService,
		Matches:    matchesService,
		Messages:   messageService,
		Stream:     channel,
		Logger:     log,
		Config:     cfg,
	})

	return &App{
		cfg:        cfg,
		logger:     log,
		server:     newServer(cfg.HTTP, r),
		postgres:   pool,
		redis:      redisClient,
		channel:    channel,
		stopRelay:  stopRelay,
		httpRouter: r,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info("api server started", zap.String("addr", a.cfg.HTTP.Addr))
	err := a.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error

	if err := a.server.Shutdown(ctx); err != nil {
		shutdownErr = err
	}
	if a.stopRelay != nil {
		a.stopRelay()
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
