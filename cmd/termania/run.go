package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/keyvez/termania/internal/controller"
	"github.com/keyvez/termania/internal/llm"
	"github.com/keyvez/termania/internal/logx"
	"github.com/keyvez/termania/internal/telemetry"
)

var (
	flagSession string
	flagTick    time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "host the control core headless",
	Long: `run starts the controller without a GUI: pane plugins are polled on a
fixed tick, the Text Tap socket accepts control connections, and the LLM
client is polled in-loop while a prompt is pending.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if flagSession != "" {
			cfg.ApplySession(flagSession)
		}
		if flagSocket != "" {
			cfg.TextTap.SocketPath = flagSocket
		}

		logger := logx.New(os.Stderr)
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logx.WithContext(ctx, logger)

		telemetry.Version = Version
		tel, err := telemetry.Init(ctx, telemetry.Config{
			Endpoint: cfg.OTEL.Endpoint,
			Headers:  cfg.OTEL.Headers,
		})
		if err != nil {
			return err
		}

		ctl, err := controller.New(cfg, tel, logger)
		if err != nil {
			tel.Shutdown(ctx)
			return err
		}
		defer ctl.Close(context.Background())

		logger.Info("termania running",
			"panes", ctl.PaneCount(),
			"socket", cfg.TextTap.SocketPath,
			"tick", flagTick)

		ticker := time.NewTicker(flagTick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.Info("shutting down")
				return nil
			case <-ticker.C:
				ctl.Poll(ctx)
				if ctl.LLMStatus() == llm.Waiting {
					ctl.LLMPoll(ctx)
				}
			}
		}
	},
}

func init() {
	runCmd.Flags().StringVar(&flagSession, "session", "", "named session from the config to apply")
	runCmd.Flags().DurationVar(&flagTick, "tick", 50*time.Millisecond, "poll interval")
	rootCmd.AddCommand(runCmd)
}
