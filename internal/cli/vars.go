package cli

import (
	"github.com/valter-silva-au/agentboard/internal/core"
	"github.com/valter-silva-au/agentboard/internal/observability"
)

// Service instances, set during app initialization in app.go.
var (
	BasePath    string
	Coord       core.Coordinator
	EventLog    observability.EventLog
	MetricsCalc observability.MetricsCalculator
)
