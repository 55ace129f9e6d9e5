package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gmw "github.com/Laisky/gin-middlewares/v6"
	glog "github.com/Laisky/go-utils/v5/log"
	"github.com/Laisky/zap"
	"github.com/gin-gonic/gin"
	_ "github.com/joho/godotenv/autoload"

	"github.com/didgateway/llm-gateway/common/config"
	"github.com/didgateway/llm-gateway/common/graceful"
	"github.com/didgateway/llm-gateway/common/logger"
	"github.com/didgateway/llm-gateway/identity"
	"github.com/didgateway/llm-gateway/middleware"
	"github.com/didgateway/llm-gateway/relay/billing"
	relaycontroller "github.com/didgateway/llm-gateway/relay/controller"
	"github.com/didgateway/llm-gateway/relay/mcp"
	"github.com/didgateway/llm-gateway/relay/pricing"
	"github.com/didgateway/llm-gateway/relay/provider"
	"github.com/didgateway/llm-gateway/router"
)

func main() {
	os.Exit(run())
}

func run() int {
	hostname, _ := os.Hostname()
	logger.SetupLogger(hostname)

	if code, msg := config.Validate(); code != config.ExitCodeOK {
		logger.Logger.Error("invalid configuration", zap.String("reason", msg))
		return code
	}
	logger.Logger.Info("llm-gateway starting",
		zap.String("network", config.Network),
		zap.Bool("debug", config.DebugEnabled))

	if os.Getenv("GIN_MODE") != gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	pricingRegistry, err := pricing.NewRegistry(config.PricingDir, config.PricingMultiplier)
	if err != nil {
		logger.Logger.Error("pricing init failed", zap.Error(err))
		return config.ExitCodeInvalidConfig
	}
	pricing.InitGlobal(pricingRegistry)

	providerRegistry := provider.NewRegistry()
	if err := providerRegistry.LoadBuiltins(); err != nil {
		logger.Logger.Error("provider init failed", zap.Error(err))
		return config.ExitCodeFatal
	}
	provider.InitGlobal(providerRegistry)

	var verifier identity.Verifier
	if config.SkipAuth {
		logger.Logger.Warn("SKIP_AUTH is set, all requests run as a placeholder DID")
		verifier = &identity.StaticVerifier{}
	} else {
		verifier = identity.NewHTTPVerifier(config.AuthServiceURL, config.ServiceKey)
	}

	hooks := billing.NewComposite()
	var ledger *billing.Ledger
	if config.LedgerEnabled {
		ledger, err = billing.OpenLedger()
		if err != nil {
			logger.Logger.Error("ledger init failed", zap.Error(err))
			return config.ExitCodeFatal
		}
		hooks.Append(ledger)
	}

	var mcpProxy *mcp.Proxy
	if config.MCPConfigFile != "" {
		mcpCfg, err := mcp.LoadConfig(config.MCPConfigFile)
		if err != nil {
			logger.Logger.Error("mcp config invalid", zap.Error(err))
			return config.ExitCodeInvalidConfig
		}
		mcpProxy = mcp.NewProxy(mcpCfg, logger.Logger.Named("mcp"))
		defer mcpProxy.Close()
	}

	orchestrator := relaycontroller.NewOrchestrator(pricingRegistry, providerRegistry, hooks)

	logLevel := glog.LevelInfo
	if config.DebugEnabled {
		logLevel = glog.LevelDebug
	}

	server := gin.New()
	server.RedirectTrailingSlash = false
	server.Use(
		gin.Recovery(),
		gmw.NewLoggerMiddleware(
			gmw.WithLoggerMwColored(),
			gmw.WithLevel(logLevel.String()),
			gmw.WithLogger(logger.Logger.Named("gin")),
		),
	)
	// gzip would break SSE, never add it here
	server.Use(middleware.RequestId())

	router.SetRouter(server, &router.Deps{
		Orchestrator: orchestrator,
		Providers:    providerRegistry,
		Pricing:      pricingRegistry,
		Ledger:       ledger,
		MCPProxy:     mcpProxy,
		Verifier:     verifier,
	})

	addr := config.Host + ":" + config.Port
	httpServer := &http.Server{Addr: addr, Handler: server}

	errCh := make(chan error, 1)
	go func() {
		logger.Logger.Info("server started", zap.String("address", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		logger.Logger.Error("http server failed", zap.Error(err))
		return config.ExitCodeFatal
	case sig := <-quit:
		logger.Logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	graceful.SetDraining()
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(config.ShutdownTimeoutSec)*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error("http shutdown failed", zap.Error(err))
	}
	if err := graceful.Drain(shutdownCtx); err != nil {
		logger.Logger.Error("drain incomplete", zap.Error(err))
	}
	return config.ExitCodeOK
}
