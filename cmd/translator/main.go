// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command translator starts the contract translation HTTP server.
//
// This is the main entry point for the containerized translator service.
// It reads configuration from environment variables and starts the server.
//
// # Environment Variables
//
//   - TRANSLATOR_PORT: HTTP server port (default: 12220)
//   - LLM_BACKEND_TYPE: capability backend - openai, static (default: static)
//   - TRANSLATOR_STORE_PATH: artifact store directory (default: ./data/translator)
//   - TRANSLATOR_CORPUS_PATH: JSONL example corpus (optional)
//   - WEAVIATE_URL: Weaviate vector DB URL for few-shot retrieval (optional)
//   - EMBEDDING_SERVICE_URL: embedding service for retrieval (optional)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: solforge-otel-collector:4317)
//   - TRANSLATOR_LOG_LEVEL: debug, info, warn, error (default: info)
//   - TRANSLATOR_LOG_DIR: directory for file logs (optional)
//
// # Usage
//
//	# Build
//	go build -o translator ./cmd/translator
//
//	# Run
//	./translator
//
//	# Or via container
//	podman-compose up translator
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/AleutianAI/solforge/pkg/logging"
	"github.com/AleutianAI/solforge/services/translator"
)

func main() {
	logger := logging.New(logging.Config{
		Level:   parseLogLevel(os.Getenv("TRANSLATOR_LOG_LEVEL")),
		LogDir:  os.Getenv("TRANSLATOR_LOG_DIR"),
		Service: "translator",
		JSON:    true,
	})
	defer logger.Close()
	slog.SetDefault(logger.Slog())

	// Build configuration from environment variables
	cfg := translator.Config{
		Port:         getEnvInt("TRANSLATOR_PORT", 12220),
		Backend:      getEnvString("LLM_BACKEND_TYPE", "static"),
		StorePath:    getEnvString("TRANSLATOR_STORE_PATH", "./data/translator"),
		CorpusPath:   os.Getenv("TRANSLATOR_CORPUS_PATH"),
		WeaviateURL:  os.Getenv("WEAVIATE_URL"),
		EmbedURL:     os.Getenv("EMBEDDING_SERVICE_URL"),
		OTelEndpoint: getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "solforge-otel-collector:4317"),
	}

	slog.Info("Starting translator",
		"port", cfg.Port,
		"backend", cfg.Backend,
		"store_path", cfg.StorePath,
		"corpus_path", cfg.CorpusPath,
	)

	svc, err := translator.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create translator: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Translator error: %v", err)
	}
}

// parseLogLevel maps the env value to a logging level, info by default.
func parseLogLevel(value string) logging.Level {
	switch value {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
