// Package main is the entry point for the quick3d scene viewer.
package main

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/quick3d/internal/config"
	"github.com/Faultbox/quick3d/internal/logger"
	"github.com/Faultbox/quick3d/internal/viewer"
)

func main() {
	// Parse CLI flags first
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== quick3d ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	if err := run(cfg); err != nil {
		logger.Error("viewer error", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}

	logger.Info("viewer closed normally")
}

func run(cfg *config.Config) error {
	v, err := viewer.New(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer v.Close()

	return v.Run()
}
