package fetch

import "fmt"

// DownloadError is returned when an archive could not be retrieved.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download of %s failed: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
