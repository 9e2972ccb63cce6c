// Package telemetry counts what happens during read-aloud sessions and
// exposes the counters in the Prometheus text format.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/dgnsrekt/readalong/internal/playback"
)

const meterName = "github.com/dgnsrekt/readalong"

// Recorder owns the meter provider and the counters.
type Recorder struct {
	provider *sdkmetric.MeterProvider
	meter    metric.Meter
	handler  http.Handler

	clips     metric.Int64Counter
	skipped   metric.Int64Counter
	fallbacks metric.Int64Counter
	glossary  metric.Int64Counter
	starts    metric.Int64Counter
}

// New creates a recorder with its own Prometheus registry.
func New() (*Recorder, error) {
	reg := promclient.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", "readalong"))
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)

	r := &Recorder{
		provider: provider,
		meter:    provider.Meter(meterName),
		handler:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
	if err := r.initCounters(); err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, err
	}
	return r, nil
}

func (r *Recorder) initCounters() error {
	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := r.meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}
	r.clips = counter("readalong_clips", "Clips that finished playing, by result.")
	r.skipped = counter("readalong_units_skipped", "Image units skipped with describe-images off.")
	r.fallbacks = counter("readalong_timecode_fallbacks", "Easy-read units highlighted with standard timings.")
	r.glossary = counter("readalong_glossary_opened", "Glossary definitions opened.")
	r.starts = counter("readalong_playback_starts", "Times sequential playback started.")
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("create counters: %w", err)
	}
	return nil
}

// Observe records a sequencer event. Pass it to Sequencer.Subscribe.
func (r *Recorder) Observe(ev playback.Event) {
	ctx := context.Background()
	switch ev.Type {
	case playback.EventClipEnded:
		result := "ended"
		if ev.Err != nil {
			result = "failed"
		}
		r.clips.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	case playback.EventSkipped:
		r.skipped.Add(ctx, 1)
	case playback.EventPlayState:
		if ev.State.Playing {
			r.starts.Add(ctx, 1)
		}
	}
}

// Fallback records an easy-read timecode fallback for unit id.
func (r *Recorder) Fallback(id string) {
	r.fallbacks.Add(context.Background(), 1)
}

// GlossaryOpened records a definition being shown.
func (r *Recorder) GlossaryOpened(term string) {
	r.glossary.Add(context.Background(), 1)
}

// Gauge registers an observable gauge read from fn at scrape time.
func (r *Recorder) Gauge(name, desc string, fn func() int64) error {
	_, err := r.meter.Int64ObservableGauge(name,
		metric.WithDescription(desc),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(fn())
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("create gauge %s: %w", name, err)
	}
	return nil
}

// Handler serves the metrics.
func (r *Recorder) Handler() http.Handler {
	return r.handler
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.handler)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the meter provider.
func (r *Recorder) Shutdown(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}
