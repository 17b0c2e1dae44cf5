package config

import "fmt"

// EnvironmentMissingError is returned when required target metadata was not supplied.
type EnvironmentMissingError struct {
	Key string
}

func (e *EnvironmentMissingError) Error() string {
	return fmt.Sprintf("target %s not specified: pass --%s or --target, set %s, or use --host", e.Key, e.Key, envNames[e.Key][0])
}
