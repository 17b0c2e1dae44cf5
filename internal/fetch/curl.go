package fetch

import (
	"context"

	"github.com/Norgate-AV/machdxc/internal/command"
)

// CurlTransport shells out to curl.
type CurlTransport struct {
	runner *command.Runner
	binary string
}

// NewCurlTransport creates a transport running binary (default "curl").
func NewCurlTransport(runner *command.Runner, binary string) *CurlTransport {
	if binary == "" {
		binary = "curl"
	}

	return &CurlTransport{runner: runner, binary: binary}
}

// Download runs curl --fail --location --output dest url.
func (t *CurlTransport) Download(ctx context.Context, url, dest string) error {
	return t.runner.Run(ctx, t.binary,
		"--fail",
		"--location",
		"--silent",
		"--show-error",
		"--output", dest,
		url,
	)
}
