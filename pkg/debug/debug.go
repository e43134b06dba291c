// Package debug holds the process-wide debug switches set from the command line.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Enabled raises the log level to debug.
var Enabled bool

// Frames turns on one line per processed frame (pose, lighting, progress).
// These are too noisy for the structured log and go straight to Output.
var Frames bool

// Output receives frame traces. Defaults to stderr.
var Output io.Writer = os.Stderr

var mu sync.Mutex

// FrameLog writes a frame trace when Frames is set. Safe for concurrent
// sessions; lines from different sessions do not interleave.
func FrameLog(format string, args ...any) {
	if !Frames {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	fmt.Fprintf(Output, format, args...)
}
