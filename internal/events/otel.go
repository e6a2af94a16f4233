package events

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/mlmoleman/EPA133a-G07-A2/internal/events"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}
