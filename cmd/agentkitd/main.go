package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"AgentKit-Chain/internal/api"
	"AgentKit-Chain/internal/config"
	"AgentKit-Chain/internal/observability/alerting"
	"AgentKit-Chain/internal/observability/metrics"
	"AgentKit-Chain/internal/session"
	redisstore "AgentKit-Chain/internal/storage/redis"
	"AgentKit-Chain/internal/turn"
	"AgentKit-Chain/internal/validation"
	"AgentKit-Chain/internal/web3"
	"AgentKit-Chain/internal/web3/keys"
	"AgentKit-Chain/pkg/logger"
)

// main 是 AgentKit 守护进程的入口。
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("agentkitd", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", os.Getenv("AGENTKIT_CONFIG"), "配置文件路径（JSON 或 YAML）")
	addr := flags.String("addr", "", "监听地址，覆盖配置文件与 PORT")
	logLevel := flags.String("log-level", "", "日志级别：debug、info、warn、error")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Address = *addr
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		OutputPaths: cfg.Log.OutputPaths,
		Audit: logger.AuditConfig{
			Enabled:    cfg.Log.Audit.Enabled,
			Path:       cfg.Log.Audit.Path,
			MaxSizeMB:  cfg.Log.Audit.MaxSizeMB,
			MaxBackups: cfg.Log.Audit.MaxBackups,
			MaxAgeDays: cfg.Log.Audit.MaxAgeDays,
		},
	}); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Named("agentkitd")

	chain, err := web3.ParseChain(cfg.Chain.Type)
	if err != nil {
		return err
	}

	provisioner, err := newProvisioner(cfg, chain)
	if err != nil {
		return err
	}

	cache, closeCache, err := newStatusCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	factory, err := session.NewAgentFactory(session.AgentFactoryConfig{
		Chain:        chain,
		LLMBaseURL:   cfg.LLM.BaseURL,
		LLMTimeout:   cfg.LLM.Timeout(),
		SystemPrompt: cfg.Agent.SystemPrompt,
		MaxSteps:     cfg.Agent.MaxSteps,
		StatusCache:  cache,
		StatusTTL:    cfg.Chain.StatusCacheTTL(),
		Logger:       logger.Named("agent"),
	})
	if err != nil {
		return err
	}

	manager, err := session.NewManager(provisioner, factory,
		session.WithSerializedTurns(*cfg.Agent.SerializeTurns),
		session.WithInitializeTimeout(cfg.Server.InitializeTimeout()),
		session.WithAlerts(newAlerts(cfg)),
	)
	if err != nil {
		return err
	}
	defer manager.Close()

	metricsEnabled := *cfg.Metrics.Enabled
	if metricsEnabled && cfg.Metrics.Address != "" {
		go func() {
			if err := metrics.StartServer(ctx, cfg.Metrics.Address); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("metrics server stopped", slog.String("error", err.Error()))
			}
		}()
	}

	server := api.NewServer(cfg.Server.Address, manager,
		turn.NewAggregator(turn.WithTimeout(cfg.Agent.TurnTimeout())),
		api.WithLLMDefaults(validation.Defaults{
			ModelName:   cfg.LLM.DefaultModel,
			Temperature: cfg.LLM.DefaultTemperature,
		}),
		api.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
		api.WithTimeouts(cfg.Server.ReadHeaderTimeout(), cfg.Server.ShutdownTimeout()),
		api.WithMetrics(metricsEnabled && cfg.Metrics.Address == ""),
	)

	log.Info("starting agent server",
		slog.String("address", cfg.Server.Address),
		slog.String("chain", string(chain)),
		slog.String("key_strategy", cfg.Keys.Strategy),
		slog.String("cache", cfg.Chain.Cache.Driver),
	)
	if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		if api.IsAddrInUse(err) {
			return fmt.Errorf("Port %s is already in use. Please try a different port by setting the PORT environment variable.", port(cfg.Server.Address))
		}
		return fmt.Errorf("Failed to start server: %w", err)
	}
	log.Info("agent server stopped")
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if strings.TrimSpace(path) == "" {
		cfg = config.Default()
	} else if cfg, err = config.Load(path); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置校验失败: %w", err)
	}
	return cfg, nil
}

func newProvisioner(cfg *config.Config, chain web3.Chain) (keys.Provisioner, error) {
	switch cfg.Keys.Strategy {
	case config.StrategyGenerated:
		return keys.NewGeneratedProvisioner(chain.KeyScheme())
	default:
		return keys.NewDerivedProvisioner(keys.DerivedConfig{
			Authority: cfg.Keys.DeriveURL,
			Path:      cfg.Keys.DerivePath,
			Scheme:    chain.KeyScheme(),
			Timeout:   cfg.Keys.Timeout(),
		})
	}
}

func newStatusCache(ctx context.Context, cfg *config.Config) (web3.StatusCache, func(), error) {
	switch cfg.Chain.Cache.Driver {
	case config.CacheNone:
		return nil, func() {}, nil
	case config.CacheRedis:
		rc := cfg.Chain.Cache.Redis
		cache, err := redisstore.NewStatusCache(ctx, redisstore.Config{
			Address:  rc.Address,
			Password: rc.Password,
			DB:       rc.DB,
			Prefix:   rc.Prefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("连接 Redis 失败: %w", err)
		}
		return cache, func() { _ = cache.Close() }, nil
	default:
		return web3.NewMemoryCache(), func() {}, nil
	}
}

func newAlerts(cfg *config.Config) alerting.Dispatcher {
	notifiers := []alerting.Notifier{&alerting.LogNotifier{}}
	if url := strings.TrimSpace(cfg.Alerts.WebhookURL); url != "" {
		notifiers = append(notifiers, &alerting.WebhookNotifier{URL: url})
	}
	return alerting.NewFanout(notifiers...)
}

func port(addr string) string {
	if _, p, err := net.SplitHostPort(addr); err == nil {
		return p
	}
	return addr
}
