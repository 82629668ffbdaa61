// Package main is the entry point for the contract promoter.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/stacklok/contract-promoter/cmd/contract-promoter/app"
	"github.com/stacklok/contract-promoter/internal/config"
	"github.com/stacklok/contract-promoter/internal/logging"
)

// getLogLevel reads CONTRACT_PROMOTER_LOG_LEVEL, falling back to LOG_LEVEL.
// Defaults to info when neither is set or the value is invalid.
func getLogLevel() slog.Level {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	levelStr := v.GetString("LOG_LEVEL")
	if levelStr == "" {
		levelStr = os.Getenv("LOG_LEVEL")
	}

	level, ok := logging.ParseLevel(levelStr)
	if !ok {
		slog.Warn("Invalid LOG_LEVEL, using INFO", "value", levelStr)
	}
	return level
}

func main() {
	// Logs go to stderr; stdout carries command output such as summaries
	handler, sync := logging.NewHandler(logging.WithLevel(getLogLevel()))
	slog.SetDefault(slog.New(handler))

	err := app.NewRootCmd().Execute()
	_ = sync()
	if err != nil {
		os.Exit(1)
	}
}
