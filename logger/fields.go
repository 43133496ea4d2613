package logger

import (
	"go.uber.org/zap"
)

// Standard field names for consistent structured logging.
// Use these constants instead of raw strings to ensure consistency.
const (
	FieldComponent = "component"
	FieldOperation = "operation"

	// Files and paths
	FieldFile   = "file"
	FieldOutput = "output"
	FieldFormat = "format"
	FieldLine   = "line"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError = "error"

	// Counts and sizes
	FieldCount = "count"
	FieldSize  = "size"

	// Pipeline-specific
	FieldGraph     = "graph"
	FieldGraphID   = "graph_id"
	FieldNodeID    = "node_id"
	FieldClass     = "class"
	FieldModule    = "module_path"
	FieldClasses   = "classes"
	FieldFunctions = "functions"
	FieldEvents    = "events"
	FieldURI       = "uri"
)

// ComponentLogger returns a named logger for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	store := graphstore.New(logger.ComponentLogger("graphstore"))
func ComponentLogger(name string) *zap.SugaredLogger {
	return Logger.Named(name)
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return zap.NewNop().Sugar()
	}
	return l
}
