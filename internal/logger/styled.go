package logger

import (
	"fmt"
	"log/slog"

	"github.com/pterm/pterm"

	"github.com/thushan/gateway/internal/core/domain"
)

// StyledLogger wraps slog.Logger with theme-aware formatting methods for
// the gateway's domain concepts (pipelines, virtual models) in place of
// the teacher's endpoint-centric helpers.
type StyledLogger struct {
	logger *slog.Logger
	theme  *Theme
}

func NewStyledLogger(l *slog.Logger, theme *Theme) *StyledLogger {
	return &StyledLogger{logger: l, theme: theme}
}

// NewWithTheme builds both the base slog.Logger and its styled wrapper in
// one call, the constructor shape the teacher exposes from main.
func NewWithTheme(cfg *Config) (*slog.Logger, *StyledLogger, func(), error) {
	base, cleanup, err := New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	styled := NewStyledLogger(base, GetTheme(cfg.Theme))
	return base, styled, cleanup, nil
}

func (sl *StyledLogger) Debug(msg string, args ...any) { sl.logger.Debug(msg, args...) }
func (sl *StyledLogger) Info(msg string, args ...any)  { sl.logger.Info(msg, args...) }
func (sl *StyledLogger) Warn(msg string, args ...any)  { sl.logger.Warn(msg, args...) }
func (sl *StyledLogger) Error(msg string, args ...any) { sl.logger.Error(msg, args...) }

// InfoWithPipeline styles the pipeline ID the way the teacher styles an
// endpoint URL.
func (sl *StyledLogger) InfoWithPipeline(msg, pipelineID string, args ...any) {
	styled := fmt.Sprintf("%s %s", msg, pterm.Style{*sl.theme.Pipeline}.Sprint(pipelineID))
	sl.logger.Info(styled, args...)
}

func (sl *StyledLogger) WarnWithPipeline(msg, pipelineID string, args ...any) {
	styled := fmt.Sprintf("%s %s", msg, pterm.Style{*sl.theme.Pipeline}.Sprint(pipelineID))
	sl.logger.Warn(styled, args...)
}

func (sl *StyledLogger) ErrorWithPipeline(msg, pipelineID string, args ...any) {
	styled := fmt.Sprintf("%s %s", msg, pterm.Style{*sl.theme.Pipeline}.Sprint(pipelineID))
	sl.logger.Error(styled, args...)
}

func (sl *StyledLogger) InfoWithVirtualModel(msg, virtualModel string, args ...any) {
	styled := fmt.Sprintf("%s %s", msg, pterm.Style{*sl.theme.Virtual}.Sprint(virtualModel))
	sl.logger.Info(styled, args...)
}

// InfoPipelineStatus styles a pipeline's status transition the way the
// teacher colours endpoint health (healthy/degraded/blocked).
func (sl *StyledLogger) InfoPipelineStatus(msg, pipelineID string, status domain.PipelineStatus, args ...any) {
	var c pterm.Color
	switch status {
	case domain.PipelineRuntime:
		c = sl.theme.Healthy
	case domain.PipelineError:
		c = sl.theme.Blocked
	default:
		c = sl.theme.Degraded
	}
	styled := fmt.Sprintf("%s %s is %s", msg,
		pterm.Style{*sl.theme.Pipeline}.Sprint(pipelineID),
		pterm.Style{c}.Sprint(status.String()))
	sl.logger.Info(styled, args...)
}

// GetUnderlying exposes the raw slog.Logger for callers that need it
// (e.g. passing to a library that accepts *slog.Logger directly).
func (sl *StyledLogger) GetUnderlying() *slog.Logger { return sl.logger }

func (sl *StyledLogger) WithAttrs(attrs ...slog.Attr) *StyledLogger {
	args := make([]any, 0, len(attrs)*2)
	for _, a := range attrs {
		args = append(args, a.Key, a.Value)
	}
	return &StyledLogger{logger: sl.logger.With(args...), theme: sl.theme}
}

func (sl *StyledLogger) With(args ...any) *StyledLogger {
	return &StyledLogger{logger: sl.logger.With(args...), theme: sl.theme}
}
