package planner

import (
	"go.opentelemetry.io/otel"
)

const scopeName = "github.com/koscakluka/ema-room/core/planner"

var (
	tracer = otel.Tracer(scopeName)
)
