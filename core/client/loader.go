package client

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// HTTPLoader loads clips from the urls audio frames point to.
type HTTPLoader struct {
	client *http.Client
}

func NewHTTPLoader() *HTTPLoader {
	return &HTTPLoader{
		client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

func (l *HTTPLoader) Load(ctx context.Context, ref string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "load clip", trace.WithAttributes(
		attribute.String("clip.url", ref),
	))
	defer span.End()

	audio, err := l.load(ctx, ref)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("clip.bytes", len(audio)))
	return audio, nil
}

func (l *HTTPLoader) load(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to load clip: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("failed to load clip: unexpected status %s", resp.Status)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read clip: %w", err)
	}
	return audio, nil
}
