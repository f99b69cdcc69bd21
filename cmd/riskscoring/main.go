package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/wyfcoding/paymentrisk/internal/riskscoring/application"
	"github.com/wyfcoding/paymentrisk/internal/riskscoring/domain"
	riskcache "github.com/wyfcoding/paymentrisk/internal/riskscoring/infrastructure/cache"
	"github.com/wyfcoding/paymentrisk/internal/riskscoring/infrastructure/classifier"
	"github.com/wyfcoding/paymentrisk/internal/riskscoring/infrastructure/geo"
	"github.com/wyfcoding/paymentrisk/internal/riskscoring/infrastructure/messaging"
	"github.com/wyfcoding/paymentrisk/internal/riskscoring/infrastructure/notification"
	"github.com/wyfcoding/paymentrisk/internal/riskscoring/infrastructure/persistence/memory"
	"github.com/wyfcoding/paymentrisk/internal/riskscoring/infrastructure/persistence/mysql"
	"github.com/wyfcoding/paymentrisk/internal/riskscoring/infrastructure/seed"
	grpc_server "github.com/wyfcoding/paymentrisk/internal/riskscoring/interfaces/grpc"
	http_server "github.com/wyfcoding/paymentrisk/internal/riskscoring/interfaces/http"
	"github.com/wyfcoding/paymentrisk/pkg/cache"
	"github.com/wyfcoding/paymentrisk/pkg/config"
	"github.com/wyfcoding/paymentrisk/pkg/db"
	"github.com/wyfcoding/paymentrisk/pkg/logger"
	"github.com/wyfcoding/paymentrisk/pkg/metrics"
	"github.com/wyfcoding/paymentrisk/pkg/middleware"
	"github.com/wyfcoding/paymentrisk/pkg/mq"
	"github.com/wyfcoding/paymentrisk/pkg/ratelimit"
	"github.com/wyfcoding/paymentrisk/pkg/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "configs/riskscoring/config.toml", "path to config file")
	flag.Parse()

	// 1. Config
	cfg, err := config.Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("load config failed: %v", err))
	}

	// 2. Logger
	if err := logger.Init(logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}); err != nil {
		panic(fmt.Sprintf("init logger failed: %v", err))
	}

	if err := run(cfg); err != nil {
		logger.Fatal(context.Background(), "server exited with error", "error", err)
	}
}

// closer 按注册的逆序释放资源
type closer struct {
	fns []func()
}

func (c *closer) add(fn func()) { c.fns = append(c.fns, fn) }

func (c *closer) closeAll() {
	for i := len(c.fns) - 1; i >= 0; i-- {
		c.fns[i]()
	}
}

func run(cfg *config.Config) error {
	bootCtx := context.Background()
	var resources closer
	defer resources.closeAll()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.ServiceName)
	}

	location, err := time.LoadLocation(cfg.Scoring.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Scoring.Timezone, err)
	}

	// 3. Storage
	checks := map[string]http_server.ReadinessCheck{}
	var (
		repo  domain.Repository
		audit domain.AuditLog
	)
	if cfg.Database.Driver == "memory" {
		memRepo := memory.NewRepository()
		if _, err := seed.Apply(bootCtx, memRepo); err != nil {
			return err
		}
		repo, audit = memRepo, memory.NewAuditLog()
		logger.Warn(bootCtx, "using in-memory storage, data is lost on restart")
	} else {
		database, err := db.Init(db.Config{
			Driver:             cfg.Database.Driver,
			DSN:                cfg.Database.DSN,
			MaxOpenConns:       cfg.Database.MaxOpenConns,
			MaxIdleConns:       cfg.Database.MaxIdleConns,
			ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
			LogEnabled:         cfg.Database.LogEnabled,
			SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
		})
		if err != nil {
			return err
		}
		resources.add(func() { _ = database.Close() })
		if cfg.Database.AutoMigrate {
			if err := mysql.AutoMigrate(database.DB); err != nil {
				return fmt.Errorf("migrate db failed: %w", err)
			}
		}
		repo, audit = mysql.NewRepository(database.DB), mysql.NewAuditLog(database.DB)
		checks["database"] = database.Ping
	}

	schemeCache, err := cache.NewLocalCache(cfg.Scoring.SchemeCacheTTL, 64)
	if err != nil {
		return fmt.Errorf("init scheme cache: %w", err)
	}
	resources.add(func() { _ = schemeCache.Close() })
	repo = riskcache.NewSchemeCachingRepository(repo, schemeCache)

	// 4. Redis: rate limiting and per-vendor serialisation
	var (
		apiMiddleware []gin.HandlerFunc
		locker        domain.VendorLocker
	)
	if cfg.Redis.Enabled {
		rdb, err := cache.New(cache.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			MaxPoolSize:  cfg.Redis.MaxPoolSize,
			ConnTimeout:  cfg.Redis.ConnTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return err
		}
		resources.add(func() { _ = rdb.Close() })
		checks["redis"] = rdb.Ping

		if cfg.RateLimit.Enabled {
			apiMiddleware = append(apiMiddleware, middleware.RateLimitMiddleware(ratelimit.NewRedisRateLimiter(rdb.GetClient()), cfg.RateLimit))
		}
		if cfg.Scoring.SerializePerVendor {
			locker = riskcache.NewVendorLocker(rdb, cfg.Scoring.VendorLockTTL)
		}
	} else if cfg.RateLimit.Enabled {
		logger.Warn(bootCtx, "redis disabled, rate limiting is off")
	}

	// 5. Events and notifications
	var producer *mq.KafkaProducer
	if cfg.Kafka.Enabled {
		producer = mq.NewProducer(mq.KafkaConfig{
			Brokers:        cfg.Kafka.Brokers,
			GroupID:        cfg.Kafka.GroupID,
			MaxRetries:     cfg.Kafka.MaxRetries,
			RetryBackoff:   cfg.Kafka.RetryBackoff,
			SessionTimeout: cfg.Kafka.SessionTimeout,
		})
	}

	var publisher domain.EventPublisher = messaging.NewLogAlertPublisher()
	if producer != nil {
		publisher = messaging.NewKafkaAlertPublisher(producer, cfg.Kafka.AlertTopic, producer.Close)
	}

	notifier, err := newNotifier(cfg.Notification, producer)
	if err != nil {
		return err
	}

	// 6. Classifier, geo, ids
	cls := classifier.New(classifier.Config{
		BaseURL:            cfg.Classifier.BaseURL,
		Timeout:            cfg.Classifier.Timeout,
		BreakerMaxFailures: cfg.Classifier.BreakerMaxFailures,
		BreakerOpenTimeout: cfg.Classifier.BreakerOpenTimeout,
	})
	if err := cls.Ping(bootCtx); err != nil {
		logger.Warn(bootCtx, "risk classifier unreachable, rule-based fallback will be used", "url", cfg.Classifier.BaseURL, "error", err)
	}

	districts := make([]geo.District, 0, len(cfg.Geo.Districts))
	for _, d := range cfg.Geo.Districts {
		districts = append(districts, geo.District{Name: d.Name, Latitude: d.Latitude, Longitude: d.Longitude})
	}
	locator := geo.NewTableLocator(districts, cfg.Geo.FallbackDistricts, 0)

	ids, err := utils.NewIDGenerator(cfg.Scoring.NodeID)
	if err != nil {
		return err
	}

	// 7. Application
	runner := application.NewBackgroundRunner(cfg.Scoring.BackgroundTimeout, m, nil)
	scoring := application.NewScoringService(application.ScoringDeps{
		Repo:       repo,
		Audit:      audit,
		Classifier: cls,
		Publisher:  publisher,
		Notifier:   notifier,
		Locator:    locator,
		Locker:     locker,
		IDs:        ids,
		Runner:     runner,
		Metrics:    m,
		Location:   location,
	})
	alerts := application.NewAlertService(repo, audit, m, nil)
	vendors := application.NewVendorQuery(repo, nil)

	// 8. Interfaces
	gin.SetMode(gin.ReleaseMode)
	handler := http_server.NewRiskHandler(scoring, alerts, vendors, checks)
	router := http_server.NewRouter(handler, m, cfg.Metrics.Path, apiMiddleware...)

	grpcChecks := make(map[string]grpc_server.Check, len(checks))
	for name, check := range checks {
		grpcChecks[name] = grpc_server.Check(check)
	}
	grpcSrv := grpc_server.NewServer(grpcChecks, grpc.MaxConcurrentStreams(cfg.GRPC.MaxConcurrentStreams))

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}

	// 9. Start
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		logger.Info(ctx, "gRPC server starting", "addr", addr)
		return grpcSrv.GRPC().Serve(lis)
	})

	g.Go(func() error {
		logger.Info(ctx, "HTTP server starting", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go grpcSrv.Watch(watchCtx, 10*time.Second)

	// 10. Graceful Shutdown
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-quit:
			logger.Info(ctx, "shutting down servers...")
		case <-ctx.Done():
			logger.Info(ctx, "context cancelled, shutting down...")
		}
		stopWatch()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error(shutdownCtx, "http shutdown failed", "error", err)
		}
		grpcSrv.GracefulStop()
		if err := runner.Shutdown(shutdownCtx); err != nil {
			logger.Error(shutdownCtx, "background tasks did not drain", "error", err)
		}
		if err := publisher.Close(); err != nil {
			logger.Error(shutdownCtx, "close publisher failed", "error", err)
		}
		return nil
	})

	return g.Wait()
}

// newNotifier 按配置选择高危告警通知渠道；kafka 渠道与告警事件共用生产者
func newNotifier(cfg config.NotificationConfig, producer *mq.KafkaProducer) (domain.Notifier, error) {
	switch cfg.Channel {
	case "", "log":
		return notification.NewCriticalAlertNotifier(notification.LogSender{}, cfg.Recipients), nil
	case "kafka":
		if producer == nil {
			return nil, errors.New("notification channel kafka requires kafka.enabled")
		}
		return notification.NewCriticalAlertNotifier(notification.NewKafkaSender(producer, cfg.Topic), cfg.Recipients), nil
	case "webhook":
		if cfg.WebhookURL == "" {
			return nil, errors.New("notification channel webhook requires notification.webhook_url")
		}
		return notification.NewCriticalAlertNotifier(notification.NewWebhookSender(10*time.Second), []string{cfg.WebhookURL}), nil
	case "smtp":
		return notification.NewCriticalAlertNotifier(notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}), cfg.Recipients), nil
	default:
		return nil, fmt.Errorf("unknown notification channel %q", cfg.Channel)
	}
}
