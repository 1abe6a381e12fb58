package osfs

import (
	"bytes"
	"os"

	"github.com/natefinch/atomic"
)

// WriteFileAtomic writes data to path through a temp file + rename, so a
// crash between write and close never leaves a partially written file.
// Used for the small bookkeeping files the backends keep alongside the
// whiteboard itself (never for the whiteboard slots, which are written
// O_DIRECT/O_SYNC without rename semantics per spec §4.D).
func (Real) WriteFileAtomic(path string, data []byte, _ os.FileMode) error {
	return atomic.WriteFile(path, bytes.NewReader(data))
}
