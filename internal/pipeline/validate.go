package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"

	"av1conv/internal/model"
	"av1conv/internal/util"
)

// durationTolerance is how far the output duration may drift from the source.
const durationTolerance = 1.0

var errEmptyOutput = errors.New("output is empty")

// validate probes a finished encode and checks it against the source: it must
// be non-empty, carry a video stream and match the source duration.
func (c *Coordinator) validate(ctx context.Context, src model.MediaDescriptor, output string) error {
	size, err := util.FileSize(output)
	if err != nil {
		return fmt.Errorf("stat output: %w", err)
	}
	if size == 0 {
		return errEmptyOutput
	}
	out, err := c.prober.Probe(ctx, output)
	if err != nil {
		return fmt.Errorf("probe output: %w", err)
	}
	if src.DurationSec > 0 && out.DurationSec > 0 {
		if d := math.Abs(src.DurationSec - out.DurationSec); d > durationTolerance {
			return fmt.Errorf("duration mismatch: source %.2fs, output %.2fs", src.DurationSec, out.DurationSec)
		}
	}
	return nil
}
