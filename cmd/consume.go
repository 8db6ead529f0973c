package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/interview-worker/internal/ai/gemini"
	"github.com/spigell/interview-worker/internal/events"
	"github.com/spigell/interview-worker/internal/handlers"
	"github.com/spigell/interview-worker/internal/health"
	"github.com/spigell/interview-worker/internal/logger"
	"github.com/spigell/interview-worker/internal/metrics"
	"github.com/spigell/interview-worker/internal/secrets"
	"github.com/spigell/interview-worker/internal/storage/gormstore"
	"github.com/spigell/interview-worker/internal/stream"
)

const shutdownTimeout = 5 * time.Second

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Consume interview events from the stream until interrupted",
	Run: func(_ *cobra.Command, _ []string) {
		consume()
	},
}

func init() {
	rootCmd.AddCommand(consumeCmd)

	consumeCmd.Flags().String("consumer", "", "consumer name inside the group (default is consumer_<hostname>)")
	consumeCmd.Flags().Bool("unique-consumer", false, "append a random suffix to the default consumer name, for several workers on one host")
	consumeCmd.Flags().String("metrics-addr", "", "listen address for /healthz, /readyz and /metrics. Default is unset.")

	viper.BindPFlag("stream.consumer", consumeCmd.Flags().Lookup("consumer"))
	viper.BindPFlag("stream.unique-consumer", consumeCmd.Flags().Lookup("unique-consumer"))
	viper.BindPFlag("metrics.addr", consumeCmd.Flags().Lookup("metrics-addr"))
}

func consume() {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"), zap.String("service", app))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil || config.Redis == nil || config.Stream == nil || config.Database == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting the interview-worker", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	store, err := gormstore.Open(config.Database.Driver, config.Database.DSN, logger)
	if err != nil {
		logger.Fatal("opening the database", zap.Error(err))
	}
	defer store.Close()

	analyzer, reporter, err := newAnalyzers(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("creating the completion service client", zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	pipeline := metrics.New(metrics.WithRegistry(registry))

	router := events.NewRouter(logger)
	if _, err := handlers.Register(router, handlers.Deps{
		Sessions:      store,
		Conversations: store,
		Feedback:      store,
		Results:       store,
		Analyzer:      analyzer,
		Reporter:      reporter,
		Metrics:       pipeline,
		Logger:        logger,
	}); err != nil {
		logger.Fatal("registering handlers", zap.Error(err))
	}

	consumerName := resolveConsumerName(config.Stream.Consumer, config.Stream.UniqueConsumer)
	consumerLogger := logger.With(zap.String("consumer", consumerName))

	client := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})

	broker, err := stream.NewRedisBroker(client, stream.RedisOptions{
		Stream:       config.Stream.Key,
		Group:        config.Stream.Group,
		Consumer:     consumerName,
		DeadLetter:   config.Stream.DeadLetter,
		ClaimMinIdle: config.Stream.ClaimMinIdle,
	}, consumerLogger)
	if err != nil {
		logger.Fatal("creating the stream broker", zap.Error(err))
	}

	consumer := stream.NewConsumer(broker, router, stream.Options{
		BatchSize:     config.Stream.BatchSize,
		Block:         config.Stream.Block,
		MaxDeliveries: config.Stream.MaxDeliveries,
		ErrorBackoff:  config.Stream.ErrorBackoff,
	}, consumerLogger, pipeline)

	var server *http.Server
	if config.Metrics != nil && config.Metrics.Addr != "" {
		server = &http.Server{
			Addr: config.Metrics.Addr,
			Handler: health.NewRouter(health.NewHandler(consumer, map[string]health.Pinger{
				"redis":    broker,
				"database": store,
			}), registry),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("serving health and metrics", zap.String("addr", config.Metrics.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() { done <- consumer.Start(ctx) }()

	select {
	case sig := <-signals:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		consumer.Stop()
		err = <-done
	case err = <-done:
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		_ = server.Shutdown(shutdownCtx)
		cancel()
	}

	if closeErr := broker.Close(); closeErr != nil {
		logger.Warn("closing the redis connection", zap.Error(closeErr))
	}

	if err != nil {
		logger.Fatal("consumer failed", zap.Error(err))
	}
}

func newAnalyzers(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (*gemini.Analyzer, *gemini.Reporter, error) {
	if cfg == nil || cfg.Gemini == nil {
		logger.Warn("ai is not configured, analyses will use fallback results")
		return gemini.NewAnalyzer(nil, logger), gemini.NewReporter(nil, logger), nil
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
	})
	if errors.Is(err, secrets.ErrNotConfigured) {
		logger.Warn("completion service is not configured, analyses will use fallback results",
			zap.Error(err),
			zap.String("hint", "set ai.gemini.api-key-file or INTERVIEW_WORKER_AI_GEMINI_API_KEY"),
		)
		return gemini.NewAnalyzer(nil, logger), gemini.NewReporter(nil, logger), nil
	}
	if err != nil {
		return nil, nil, err
	}

	generator, err := gemini.NewGenerator(ctx, gemini.Options{
		APIKey:       apiKey,
		Model:        cfg.Gemini.Model,
		Timeout:      cfg.RequestTimeout,
		MaxLogLength: cfg.Gemini.MaxLogLength,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	return gemini.NewAnalyzer(generator, logger), gemini.NewReporter(generator, logger), nil
}

func resolveConsumerName(configured string, unique bool) string {
	if name := strings.TrimSpace(configured); name != "" {
		return name
	}

	host, _ := os.Hostname()
	instance := ""
	if unique {
		instance = uuid.NewString()[:8]
	}
	return stream.DefaultConsumerName(host, instance)
}

// redacted returns a copy of the config safe to log.
func redacted(config *Config) Config {
	out := *config
	if config.Redis != nil {
		r := *config.Redis
		if r.Password != "" {
			r.Password = "***"
		}
		out.Redis = &r
	}
	if config.AI != nil && config.AI.Gemini != nil {
		ai := *config.AI
		g := *config.AI.Gemini
		if g.APIKey != "" {
			g.APIKey = "***"
		}
		ai.Gemini = &g
		out.AI = &ai
	}
	return out
}
