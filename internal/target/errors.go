package target

import (
	"errors"
	"fmt"
	"strings"
)

// UnsupportedTargetError is returned when a target has no prebuilt archive.
type UnsupportedTargetError struct {
	Raw        string
	Normalized string
}

func (e *UnsupportedTargetError) Error() string {
	return fmt.Sprintf("unsupported target %q (normalized %q) for mach-dxcompiler; supported targets: %s",
		e.Raw, e.Normalized, strings.Join(Supported(), ", "))
}

// IsUnsupported returns true if err is or wraps an UnsupportedTargetError.
func IsUnsupported(err error) bool {
	var target *UnsupportedTargetError
	return errors.As(err, &target)
}
