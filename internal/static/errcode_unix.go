//go:build unix

package static

import (
	"errors"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// errorCode names the errno behind err ("EISDIR", "EACCES", ...).
func errorCode(err error) string {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return "UNKNOWN"
	}
	if name := unix.ErrnoName(errno); name != "" {
		return name
	}
	return "ERRNO_" + strconv.Itoa(int(errno))
}
