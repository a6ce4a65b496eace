package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"quiz-agent-service/internal/metrics"
)

type observedProvider struct {
	inner  Provider
	logger *zap.Logger
}

// WithObservation logs every call with its purpose and latency and records
// it in the request duration histogram.
func WithObservation(p Provider, logger *zap.Logger) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &observedProvider{inner: p, logger: logger.Named("llm")}
}

func (o *observedProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	purpose := PurposeFrom(ctx)

	resp, err := o.inner.Generate(ctx, req)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = errorStatus(err)
	}
	metrics.LLMDuration.WithLabelValues(purpose, status).Observe(elapsed.Seconds())

	fields := []zap.Field{
		zap.String("purpose", purpose),
		zap.String("model", o.inner.ModelID()),
		zap.Duration("latency", elapsed),
		zap.String("status", status),
	}
	if resp != nil {
		fields = append(fields,
			zap.Int("input_tokens", resp.Usage.InputTokens),
			zap.Int("output_tokens", resp.Usage.OutputTokens),
		)
	}
	if err != nil {
		o.logger.Warn("model request failed", append(fields, zap.Error(err))...)
	} else {
		o.logger.Debug("model request", fields...)
	}
	return resp, err
}

func (o *observedProvider) ModelID() string { return o.inner.ModelID() }

func errorStatus(err error) string {
	switch err.(type) {
	case *ErrRateLimit:
		return "rate_limited"
	case *ErrInvalidResponse:
		return "invalid"
	case *ErrMaxTokensExceeded:
		return "truncated"
	default:
		if err == context.DeadlineExceeded || err == context.Canceled {
			return "timeout"
		}
		return "unavailable"
	}
}
