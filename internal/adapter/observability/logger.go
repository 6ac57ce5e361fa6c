// Package observability adapts the shared structured logger to the
// logging ports of the use case layers.
package observability

import (
	"context"

	"github.com/bkyoung/pr-optimizer/internal/adapter/httpx"
	"github.com/bkyoung/pr-optimizer/internal/usecase/pipeline"
)

// PipelineLogger adapts httpx.Logger to pipeline.Logger so the
// orchestrator logs through the same infrastructure as the HTTP
// clients.
type PipelineLogger struct {
	logger httpx.Logger
}

// NewPipelineLogger creates a pipeline logger adapter.
func NewPipelineLogger(logger httpx.Logger) pipeline.Logger {
	return &PipelineLogger{logger: logger}
}

func (l *PipelineLogger) LogInfo(ctx context.Context, message string, fields map[string]interface{}) {
	l.logger.LogInfo(ctx, message, fields)
}

func (l *PipelineLogger) LogWarning(ctx context.Context, message string, fields map[string]interface{}) {
	l.logger.LogWarning(ctx, message, fields)
}

func (l *PipelineLogger) LogError(ctx context.Context, message string, fields map[string]interface{}) {
	l.logger.LogError(ctx, message, fields)
}
