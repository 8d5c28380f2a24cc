package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reqstream-gateway/middleware/reqstream"
	"reqstream-gateway/middleware/reqstream/application"
	"reqstream-gateway/middleware/reqstream/domain"
	"reqstream-gateway/middleware/reqstream/infra"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("gateway stopped", zap.Error(err))
	}
}

func newLogger(cfg config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	if cfg.LogDevelopment {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func run(ctx context.Context, cfg config, logger *zap.Logger) error {
	target, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return fmt.Errorf("invalid UPSTREAM_URL: %w", err)
	}

	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Warn("proxy error", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}

	g, gctx := errgroup.WithContext(ctx)

	var rateStore *infra.Store
	if cfg.Rate.Enabled {
		rateStore = infra.NewStore(cfg.Rate.RPS, cfg.Rate.Burst)
		rateStore.StartJanitor(gctx)
	}

	sources := make([]domain.Source, 0, len(cfg.ListenAddrs))
	servers := make([]*http.Server, 0, len(cfg.ListenAddrs))
	for _, addr := range cfg.ListenAddrs {
		opts := []reqstream.SourceOption{reqstream.WithLogger(logger)}
		if rateStore != nil {
			opts = append(opts, reqstream.WithRateLimit(reqstream.RateLimit{
				Store:              rateStore,
				KeyHeader:          cfg.Rate.KeyHeader,
				TrustXForwardedFor: cfg.Rate.TrustXFF,
				RetryAfter:         cfg.Rate.RetryAfter,
				AddHeaders:         cfg.Rate.AddHeaders,
			}))
		}
		src := reqstream.NewSource(addr, opts...)
		sources = append(sources, src)
		servers = append(servers, &http.Server{
			Addr:              addr,
			Handler:           src,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       90 * time.Second,
		})
	}

	seq, err := application.NewSequence(application.Config{
		HighWaterMark: cfg.HighWaterMark,
		Logger:        logger,
	}, sources...)
	if err != nil {
		return err
	}
	notifier := seq.Notifier()
	notifier.Subscribe(infra.NewOverloadLogger(logger, cfg.OverloadLogEvery, 5))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := infra.NewMetrics(reg, seq)
	if err != nil {
		return err
	}
	notifier.Subscribe(metrics)

	feed := infra.NewEventFeed(logger)
	notifier.Subscribe(feed)

	statsStore, closeStats, err := newStatsStore(ctx, cfg.Stats)
	if err != nil {
		return err
	}
	defer closeStats()
	recorder := application.NewStatsRecorder(statsStore, logger, 0, 0)
	notifier.Subscribe(recorder)
	g.Go(func() error {
		recorder.Run(gctx)
		return nil
	})

	dispatcher := &application.Dispatcher{
		Source:  seq,
		Pool:    infra.NewChanPool(cfg.Workers),
		Handler: proxyHandler(proxy),
		Logger:  logger,
	}
	dispatched := make(chan struct{})
	g.Go(func() error {
		defer close(dispatched)
		err := dispatcher.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	for _, srv := range servers {
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	var admin *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		mux.Handle("/events", feed)
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok\n"))
		})
		admin = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		g.Go(func() error {
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", admin.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		// sem leitor, nada religa as fontes: o que sobrou no buffer recebe 503.
		<-dispatched
		leftovers := seq.Drain()
		for _, rc := range leftovers {
			rc.Response.Finish(domain.StatusServiceUnavailable, "Service Unavailable")
		}
		if len(leftovers) > 0 {
			logger.Info("drained buffered requests", zap.Int("count", len(leftovers)))
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			_ = srv.Shutdown(shutdownCtx)
		}
		feed.Close()
		if admin != nil {
			_ = admin.Shutdown(shutdownCtx)
		}
		return nil
	})

	logger.Info("gateway started",
		zap.Strings("listen", cfg.ListenAddrs),
		zap.Stringer("upstream", target),
		zap.Int("high_water_mark", seq.Cap()),
		zap.Int("workers", cfg.Workers),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)
	logger.Info("rate",
		zap.Bool("enabled", cfg.Rate.Enabled),
		zap.Float64("rps", cfg.Rate.RPS),
		zap.Int("burst", cfg.Rate.Burst),
		zap.String("key_header", cfg.Rate.KeyHeader),
		zap.Bool("trust_xff", cfg.Rate.TrustXFF),
	)
	logger.Info("stats",
		zap.Bool("redis", cfg.Stats.Enabled),
		zap.String("redis_addr", cfg.Stats.RedisAddr),
		zap.String("bucket", cfg.Stats.Bucket),
		zap.Duration("ttl", cfg.Stats.TTL),
	)

	err = g.Wait()
	st := seq.Stats()
	logger.Info("gateway stopped",
		zap.Uint64("accepted", st.Accepted),
		zap.Uint64("shed", st.Shed),
		zap.Uint64("stats_dropped", recorder.Dropped()),
	)
	return err
}

// proxyHandler encaminha cada contexto puxado da sequência para o upstream.
func proxyHandler(proxy *httputil.ReverseProxy) application.HandlerFunc {
	return func(_ context.Context, rc domain.RequestContext) {
		req, res, ok := reqstream.HTTP(rc)
		if !ok {
			rc.Response.Finish(domain.StatusInternalError, "Internal Server Error")
			return
		}
		proxy.ServeHTTP(res, req)
		res.End()
	}
}

func newStatsStore(ctx context.Context, cfg statsConfig) (domain.StatsStore, func(), error) {
	if !cfg.Enabled {
		return infra.NewMemoryStatsStore(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	_, err := rdb.Ping(pingCtx).Result()
	cancel()
	if err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis stats ping: %w", err)
	}

	store := infra.NewRedisStatsStore(
		rdb,
		infra.WithStatsPrefix(cfg.Prefix),
		infra.WithStatsTTL(cfg.TTL),
		infra.WithStatsBucket(cfg.Bucket),
		infra.WithStatsTrackSources(cfg.TrackSources),
	)
	return store, func() { _ = rdb.Close() }, nil
}
