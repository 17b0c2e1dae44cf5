package extract

import (
	"context"

	"github.com/Norgate-AV/machdxc/internal/command"
)

// TarExtractor shells out to tar, which detects the compression itself.
type TarExtractor struct {
	runner *command.Runner
	binary string
}

// NewTarExtractor creates an extractor running binary (default "tar").
func NewTarExtractor(runner *command.Runner, binary string) *TarExtractor {
	if binary == "" {
		binary = "tar"
	}

	return &TarExtractor{runner: runner, binary: binary}
}

// Extract runs tar -xf archive -C outDir.
func (x *TarExtractor) Extract(ctx context.Context, archive, outDir string) error {
	return x.runner.Run(ctx, x.binary, "-xf", archive, "-C", outDir)
}
