package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/ronappleton/rubricflow/internal/config"
	"github.com/ronappleton/rubricflow/internal/generation"
	"github.com/ronappleton/rubricflow/internal/kvstore"
	"github.com/ronappleton/rubricflow/internal/logging"
	"github.com/ronappleton/rubricflow/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// env is what the one-shot commands need, built without the fx graph.
type env struct {
	cfg    config.Config
	logger *zap.Logger
	client *generation.Client
	close  func()
}

// loadEnv reads the config named by --config, opens the configured store so
// a saved API key is honored, and builds the model client.
func loadEnv(cmd *cobra.Command) (*env, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	// progress lines share stderr with the logger
	if os.Getenv("APP_LOG_LEVEL") == "" {
		cfg.Logging.Level = "warn"
	}
	logger, stopLogger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	kv, closeStore, err := kvstore.Open(cmd.Context(), cfg.Store)
	if err != nil {
		_ = stopLogger(context.Background())
		return nil, fmt.Errorf("open store: %w", err)
	}
	sess := session.New(kv, cfg.OpenAI.APIKey, logger)

	client := generation.NewClient(generation.OptionsFromConfig(cfg.OpenAI), sess, nil, logger)

	return &env{
		cfg:    cfg,
		logger: logger,
		client: client,
		close: func() {
			_ = closeStore()
			_ = stopLogger(context.Background())
		},
	}, nil
}

// readImage loads an image file as a data URL.
func readImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return generation.EncodeImage(http.DetectContentType(data), data), nil
}
