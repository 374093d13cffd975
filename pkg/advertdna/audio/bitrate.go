package audio

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"time"
)

// ErrNoBitrate is returned when the transcoder output carries no bitrate.
var ErrNoBitrate = errors.New("no bitrate reported")

var bitratePattern = regexp.MustCompile(`bitrate:\s*(\d+)\s*kb/s`)

// ParseBitrate extracts the container bitrate in kb/s from ffmpeg's
// diagnostic banner, e.g. "Duration: 00:00:10.03, start: 0.0, bitrate: 128 kb/s".
func ParseBitrate(diagnostics string) (int, error) {
	m := bitratePattern.FindStringSubmatch(diagnostics)
	if m == nil {
		return 0, ErrNoBitrate
	}
	kbps, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("parsing bitrate %q: %w", m[1], err)
	}
	return kbps, nil
}

// MeasureBitrate runs the transcoder against path without an output file and
// parses the bitrate it reports. ffmpeg exits non-zero in that mode, so the
// exit status is ignored whenever the banner was printed.
func MeasureBitrate(ctx context.Context, binary, path string) (int, error) {
	if binary == "" {
		binary = "ffmpeg"
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, binary, "-hide_banner", "-i", path)
	out, runErr := cmd.CombinedOutput()
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	kbps, err := ParseBitrate(string(out))
	if err != nil {
		if runErr != nil {
			return 0, fmt.Errorf("%s failed: %v (%w)", binary, runErr, err)
		}
		return 0, err
	}
	return kbps, nil
}
