// Package scan invokes the external scanner binaries and parses their
// reports into typed findings. Every invocation uses a discrete
// argument list, never an interpolated shell string: repository URLs
// and tokens are attacker-influenceable. A failure in one scanner is
// isolated to that scanner.
package scan

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// runBuffered executes the scanner and returns its stdout. Suitable for
// bounded-size JSON output only.
func runBuffered(ctx context.Context, timeout time.Duration, bin string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%s timed out after %s", bin, timeout)
		}
		return nil, fmt.Errorf("%s failed: %v: %s", bin, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// runStreamed executes a scanner that writes its report itself via an
// --output flag, bounding peak memory regardless of report size. Stdout
// is progress chatter only; it is captured alongside stderr for the
// failure message instead of interleaving with the service log.
func runStreamed(ctx context.Context, timeout time.Duration, bin string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%s timed out after %s", bin, timeout)
		}
		return fmt.Errorf("%s failed: %v: %s", bin, err, output.String())
	}
	return nil
}
