package main

import (
	"github.com/nadavgil/water-metering-collector/internal/config"
	"github.com/nadavgil/water-metering-collector/internal/logging"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName)
}
