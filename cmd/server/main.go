// AgentPayments - an HTTP gate that charges AI agents per request while
// leaving ordinary browser traffic alone.
package main

import (
	"context"
	"os"

	"github.com/mattnewell-cam/AgentPayments/internal/config"
	"github.com/mattnewell-cam/AgentPayments/internal/logging"
	"github.com/mattnewell-cam/AgentPayments/internal/server"
)

// Build info - set by ldflags
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	logger := logging.New("info", "text")

	logger.Info("starting agentpayments",
		"version", Version,
		"commit", Commit,
		"build_time", BuildTime,
	)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"env", cfg.Env,
		"verify_url", cfg.VerifyURL,
		"min_payment", cfg.MinPayment,
	)

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
