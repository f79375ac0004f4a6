// Package logx wires up the process logger. The rest of the codebase takes a
// pslog.Logger or pulls one from the context via pslog.Ctx.
package logx

import (
	"context"
	"io"
	"log"

	"pkt.systems/pslog"
)

// New builds the process logger writing console-mode records to w, honoring
// PSLOG_* environment overrides.
func New(w io.Writer) pslog.Logger {
	return pslog.LoggerFromEnv(
		pslog.WithEnvWriter(w),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
}

// WithContext attaches the logger to ctx and redirects the stdlib log
// package through it, so third-party code logs structured too.
func WithContext(ctx context.Context, logger pslog.Logger) context.Context {
	log.SetOutput(pslog.LogLogger(logger).Writer())
	return pslog.ContextWithLogger(ctx, logger)
}
