package config

// Default configuration values.
const (
	DefaultLogLevel        = "warn"
	DefaultOutput          = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultTelemetryBuffer = 1024
)

// ConfigFileNames are searched, in order, when no file is given.
var ConfigFileNames = []string{"leapentity.yaml", "leapentity.yml"}

func defaults() map[string]any {
	return map[string]any{
		"log_level":        DefaultLogLevel,
		"output":           DefaultOutput,
		"offline":          false,
		"telemetry.buffer": DefaultTelemetryBuffer,
	}
}
