package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Hossein925/f-maharat/internal/attachment"
	"github.com/Hossein925/f-maharat/internal/blob"
	"github.com/Hossein925/f-maharat/internal/common/database"
	"github.com/Hossein925/f-maharat/internal/common/mqtt"
	rediscommon "github.com/Hossein925/f-maharat/internal/common/redis"
	"github.com/Hossein925/f-maharat/internal/config"
	"github.com/Hossein925/f-maharat/internal/domain"
	"github.com/Hossein925/f-maharat/internal/listener"
	"github.com/Hossein925/f-maharat/internal/localstore"
	"github.com/Hossein925/f-maharat/internal/metrics"
	"github.com/Hossein925/f-maharat/internal/mutation"
	"github.com/Hossein925/f-maharat/internal/remote"
	"github.com/Hossein925/f-maharat/internal/syncer"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Credentials is a national id / password pair used as a confirmation gate.
type Credentials struct {
	NationalID string
	Password   string
}

// Deps are the collaborators of a SyncService.
type Deps struct {
	Remote      remote.Gateway
	Local       localstore.HospitalStore
	Mutations   *mutation.Gateway
	Attachments *attachment.Cache
	Listener    listener.Listener
	Metrics     *metrics.Recorder
	Logger      *zap.Logger

	// RefreshTimeout bounds each refresh; zero means no bound.
	RefreshTimeout time.Duration
	Admin          Credentials
	Now            func() time.Time
}

// SyncService keeps the hospital snapshot current and runs business
// operations against it.
type SyncService struct {
	orchestrator   *syncer.Orchestrator
	mutations      *mutation.Gateway
	attachments    *attachment.Cache
	listener       listener.Listener
	logger         *zap.Logger
	metrics        *metrics.Recorder
	refreshTimeout time.Duration
	admin          Credentials
	now            func() time.Time

	mu        sync.RWMutex
	hospitals []domain.Hospital
	offline   bool

	trigger   chan struct{}
	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	runMu     sync.Mutex
	cancel    context.CancelFunc
	closers   []func() error
}

// New creates a service from deps.
func New(deps Deps) *SyncService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	mutations := deps.Mutations
	if mutations == nil {
		mutations = mutation.NewGateway(deps.Remote, logger, mutation.WithMetrics(deps.Metrics))
	}
	return &SyncService{
		orchestrator:   syncer.NewOrchestrator(deps.Remote, deps.Local, logger, deps.Metrics),
		mutations:      mutations,
		attachments:    deps.Attachments,
		listener:       deps.Listener,
		logger:         logger,
		metrics:        deps.Metrics,
		refreshTimeout: deps.RefreshTimeout,
		admin:          deps.Admin,
		now:            now,
		hospitals:      []domain.Hospital{},
		trigger:        make(chan struct{}, 1),
		ready:          make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// NewSyncService connects every backend named by cfg and builds the service.
// Collectors are registered on reg when it is non-nil.
func NewSyncService(cfg *config.Config, logger *zap.Logger, reg prometheus.Registerer) (*SyncService, error) {
	ctx := context.Background()
	var closers []func() error
	fail := func(err error) (*SyncService, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		return nil, err
	}

	rec := metrics.New(reg)

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return fail(fmt.Errorf("failed to connect to database: %w", err))
	}
	closers = append(closers, func() error { return database.Close(db) })
	gw := remote.NewPostgresGateway(db, logger)

	var redisClient *redis.Client
	needRedis := cfg.Local.Driver == "redis" || cfg.Sync.TriggerMode == config.TriggerRedis
	if needRedis {
		redisClient = rediscommon.NewRedisClient(&cfg.Redis)
		closers = append(closers, func() error { return rediscommon.Close(redisClient) })
		if err := rediscommon.Ping(ctx, redisClient); err != nil {
			return fail(fmt.Errorf("failed to connect to redis: %w", err))
		}
	}

	var local localstore.Store
	switch cfg.Local.Driver {
	case "redis":
		local = localstore.NewRedisStore(redisClient, cfg.Local.KeyPrefix)
	default:
		sqlite, err := localstore.NewSQLiteStore(cfg.Local.Path)
		if err != nil {
			return fail(fmt.Errorf("failed to open local store: %w", err))
		}
		local = sqlite
	}
	closers = append(closers, local.Close)

	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return fail(fmt.Errorf("failed to open blob store: %w", err))
	}
	var fetcher attachment.Fetcher
	if cfg.Attachment.FetchMode == "store" {
		fetcher = attachment.NewStoreFetcher(blobs)
	} else {
		fetcher = attachment.NewHTTPFetcher(cfg.Attachment.FetchTimeout)
	}
	cache := attachment.NewCache(blobs, local, fetcher, logger, attachment.WithMetrics(rec))

	opts := []mutation.Option{
		mutation.WithCascade(cfg.Sync.CascadeDeletes),
		mutation.WithMetrics(rec),
	}
	var ln listener.Listener
	switch cfg.Sync.TriggerMode {
	case config.TriggerNotify:
		ln = listener.NewPostgresListener(cfg.Database.GetURL(), cfg.Sync.NotifyChannel, logger)
	case config.TriggerRedis:
		ln = listener.NewRedisListener(redisClient, cfg.Sync.NotifyChannel, logger)
		opts = append(opts, mutation.WithPublisher(listener.NewRedisPublisher(redisClient, cfg.Sync.NotifyChannel)))
	case config.TriggerMQTT:
		mqttClient, err := mqtt.NewClient(&cfg.MQTT, logger)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() error { mqttClient.Disconnect(); return nil })
		ln = listener.NewMQTTListener(mqttClient, cfg.Sync.TopicPrefix, mqttClient.QoS(), logger)
		opts = append(opts, mutation.WithPublisher(listener.NewMQTTPublisher(mqttClient, cfg.Sync.TopicPrefix, mqttClient.QoS())))
	default:
		ln = listener.NewPollingListener(cfg.Sync.PollInterval, logger)
	}

	s := New(Deps{
		Remote:         gw,
		Local:          local,
		Mutations:      mutation.NewGateway(gw, logger, opts...),
		Attachments:    cache,
		Listener:       ln,
		Metrics:        rec,
		Logger:         logger,
		RefreshTimeout: cfg.Sync.RefreshTimeout,
		Admin:          Credentials{NationalID: cfg.Admin.NationalID, Password: cfg.Admin.Password},
	})
	s.closers = closers

	logger.Info("Sync service initialized",
		zap.String("trigger_mode", cfg.Sync.TriggerMode),
		zap.String("local_store", cfg.Local.Driver),
		zap.String("blob_driver", string(blobs.Driver())),
		zap.Bool("cascade_deletes", cfg.Sync.CascadeDeletes),
	)
	return s, nil
}

// Start subscribes to change notifications, loads the initial snapshot and
// runs the resync loop until ctx is done. Notifications that arrive while a
// refresh runs are coalesced into one follow-up refresh.
func (s *SyncService) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.runMu.Lock()
	s.cancel = cancel
	s.runMu.Unlock()
	defer cancel()
	defer close(s.done)

	s.logger.Info("Starting sync service", zap.Duration("refresh_timeout", s.refreshTimeout))

	// Subscribe first so changes made during the initial load queue a resync.
	if s.listener != nil {
		unsubscribe, err := s.listener.Subscribe(ctx, s.onChange)
		if err != nil {
			return fmt.Errorf("failed to subscribe to changes: %w", err)
		}
		defer unsubscribe()
	}

	if err := s.refresh(ctx); err != nil {
		return fmt.Errorf("initial load failed: %w", err)
	}
	s.readyOnce.Do(func() { close(s.ready) })

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sync service loop stopped")
			return nil
		case <-s.trigger:
			if err := s.refresh(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("Resync failed", zap.Error(err))
			}
		}
	}
}

// Stop ends the resync loop and closes the backends opened by NewSyncService.
func (s *SyncService) Stop(ctx context.Context) error {
	s.runMu.Lock()
	cancel := s.cancel
	s.runMu.Unlock()
	if cancel != nil {
		cancel()
		select {
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Ready is closed once the initial snapshot is loaded.
func (s *SyncService) Ready() <-chan struct{} {
	return s.ready
}

// Hospitals returns the current snapshot. Callers must not modify it.
func (s *SyncService) Hospitals() []domain.Hospital {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hospitals
}

// Offline reports whether the snapshot came from the local store because
// the last refresh failed.
func (s *SyncService) Offline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.offline
}

// RequestRefresh schedules a refresh. It never blocks; requests made while
// one is pending collapse into it.
func (s *SyncService) RequestRefresh() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *SyncService) onChange(table string) {
	s.metrics.Notification()
	s.logger.Debug("Change notification", zap.String("table", table))
	s.RequestRefresh()
}

func (s *SyncService) refresh(ctx context.Context) error {
	if s.refreshTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.refreshTimeout)
		defer cancel()
	}
	snap, err := s.orchestrator.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.hospitals = snap.Hospitals
	s.offline = snap.Offline
	s.mu.Unlock()
	return nil
}
