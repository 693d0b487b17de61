package tracing

import (
	"fmt"

	"github.com/honeycombio/honeycomb-opentelemetry-go"
	"github.com/honeycombio/otel-config-go/otelconfig"
	"go.opentelemetry.io/otel"
)

var GlobalTracer = otel.Tracer("backoffice-client")

// HoneycombSetup configures the OpenTelemetry SDK via the honeycomb distro.
// Returns a shutdown function that must be called before exit. When tracing
// is disabled the returned shutdown is a no-op.
func HoneycombSetup(enabled bool, serviceName string) (func(), error) {
	if !enabled {
		return func() {}, nil
	}

	bsp := honeycomb.NewBaggageSpanProcessor()
	otelShutdown, err := otelconfig.ConfigureOpenTelemetry(
		otelconfig.WithSpanProcessor(bsp),
		otelconfig.WithServiceName(serviceName),
	)
	if err != nil {
		return nil, fmt.Errorf("configure opentelemetry: %w", err)
	}

	return otelShutdown, nil
}
