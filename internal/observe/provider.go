package observe

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitProvider installs a MeterProvider whose readings are exported to
// registry (the Prometheus default registry when nil) and registers it as
// the global OTel provider. The returned handler serves /metrics.
//
// Call shutdown from main() to flush the provider.
func InitProvider(registry *prometheus.Registry) (handler http.Handler, shutdown func(context.Context) error, err error) {
	var opts []promexporter.Option
	if registry != nil {
		opts = append(opts, promexporter.WithRegisterer(registry))
	}

	exporter, err := promexporter.New(opts...)
	if err != nil {
		return nil, nil, err
	}

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(mp)

	if registry != nil {
		handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	} else {
		handler = promhttp.Handler()
	}
	return handler, mp.Shutdown, nil
}
