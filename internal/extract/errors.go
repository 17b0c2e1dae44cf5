package extract

import "fmt"

// ExtractError is returned when an archive could not be unpacked.
type ExtractError struct {
	Archive string
	Err     error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extraction of %s failed: %v", e.Archive, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}
