package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xaudioproject/webapiclient/internal/audio"
	"github.com/xaudioproject/webapiclient/internal/config"
	"github.com/xaudioproject/webapiclient/internal/dispatch"
	"github.com/xaudioproject/webapiclient/internal/mockserver"
	"github.com/xaudioproject/webapiclient/internal/websocket"
)

type options struct {
	configFile string
	envFile    string
	debug      bool
	listen     string

	logger *zap.Logger
}

func main() {
	opts := &options{}
	rootCmd := newRootCmd(opts)

	err := rootCmd.Execute()
	if opts.logger != nil {
		opts.logger.Sync()
	}
	if err != nil {
		if opts.logger == nil {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "xap-client",
		Short: "Stream an audio file to the XAP speech translation service",
		Long: `Authenticates against the XAP speech translation service, streams the
configured audio file over a WebSocket connection and prints transcription,
translation and audio events as they arrive.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(opts.debug)
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			opts.logger = logger
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd.Context(), opts)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "configuration.json", "path to the JSON configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional dotenv file with overrides")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable development logging")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a loopback streaming server for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts)
		},
	}
	serveCmd.Flags().StringVar(&opts.listen, "listen", ":8080", "address to listen on")
	rootCmd.AddCommand(serveCmd)

	return rootCmd
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func runTranslate(ctx context.Context, opts *options) error {
	logger := opts.logger

	cfg, err := config.Load(opts.configFile, opts.envFile)
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		return err
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", zap.Error(err))
		return err
	}

	input, err := os.ReadFile(cfg.Audio.Input)
	if err != nil {
		logger.Error("Failed to read audio file", zap.String("path", cfg.Audio.Input), zap.Error(err))
		return err
	}
	logger.Info("Read audio file", zap.String("path", cfg.Audio.Input), zap.Int("bytes", len(input)))

	var dispatchOpts []dispatch.Option
	if cfg.Audio.Output != "" {
		dispatchOpts = append(dispatchOpts, dispatch.WithAudioSink(audio.NewRecorder(cfg.Audio.Output, cfg.Audio.SampleRate)))
	}
	dispatcher := dispatch.NewDispatcher(os.Stdout, logger, dispatchOpts...)

	session := websocket.NewSession(websocket.SessionConfig{
		Endpoint:    cfg.WS.URL,
		Credentials: cfg.Credentials(),
		From:        cfg.Audio.From,
		To:          cfg.Audio.To,
		SampleRate:  cfg.Audio.SampleRate,
	}, dispatcher, logger)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := session.Run(ctx, input); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("Session interrupted")
			return nil
		}
		logger.Error("Session failed", zap.Error(err))
		return err
	}

	logger.Info("Session finished")
	return nil
}

func runServe(opts *options) error {
	logger := opts.logger

	cfg, err := config.Load(opts.configFile, opts.envFile)
	if err != nil {
		logger.Error("Failed to load configuration", zap.Error(err))
		return err
	}
	if err := cfg.ValidateCredentials(); err != nil {
		logger.Error("Invalid configuration", zap.Error(err))
		return err
	}

	e := mockserver.NewEcho(mockserver.NewServer(cfg.Credentials(), logger))

	go func() {
		if err := e.Start(opts.listen); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Loopback server started", zap.String("address", opts.listen))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server exited")
	return nil
}
