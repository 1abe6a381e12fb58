package alignbuf

import (
	"os"

	"golang.org/x/sys/unix"
)

// OpenFlags returns the os.OpenFile flags needed to bypass the page cache on
// a whiteboard device or backing file, composed with the caller's own
// read/write flag. Both O_DIRECT and O_SYNC are requested: O_DIRECT avoids
// caching the data, O_SYNC ensures the write is durable before it returns,
// matching the cross-host visibility requirement in spec §4.D (a host must
// observe another host's write without relying on local cache coherency).
func OpenFlags(rw int) int {
	return rw | unix.O_DIRECT | os.O_SYNC
}
