package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ronappleton/rubricflow/internal/cli"
	"github.com/ronappleton/rubricflow/internal/config"
	"github.com/ronappleton/rubricflow/internal/generation"
	grpcserver "github.com/ronappleton/rubricflow/internal/grpc"
	"github.com/ronappleton/rubricflow/internal/httpserver"
	"github.com/ronappleton/rubricflow/internal/kvstore"
	"github.com/ronappleton/rubricflow/internal/logging"
	"github.com/ronappleton/rubricflow/internal/metrics"
	"github.com/ronappleton/rubricflow/internal/otel"
	"github.com/ronappleton/rubricflow/internal/session"
	"github.com/ronappleton/rubricflow/internal/tutor"
	"github.com/ronappleton/rubricflow/internal/workflow"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	rootCmd := cli.NewRootCommand()

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		startServer(configPath)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", generation.UserMessage(err))
		stop()
		os.Exit(1)
	}
}

func startServer(configPath string) {
	app := fx.New(
		config.Module(configPath),
		logging.Module(),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
		otel.Module(),
		metrics.Module(),
		kvstore.Module(),
		session.Module(),
		generation.Module(),
		fx.Provide(func(c *generation.Client) workflow.Generator { return c }),
		fx.Provide(func(c *generation.Client) tutor.Chatter { return c }),
		workflow.Module(),
		tutor.Module(),
		grpcserver.Module,
		httpserver.Module(),
	)

	app.Run()
}
