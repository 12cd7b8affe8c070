//go:build !unix

package static

import (
	"errors"
	"io/fs"
	"strconv"
	"syscall"
)

func errorCode(err error) string {
	var errno syscall.Errno
	switch {
	case errors.Is(err, fs.ErrPermission):
		return "EACCES"
	case errors.As(err, &errno):
		return "ERRNO_" + strconv.FormatUint(uint64(errno), 10)
	default:
		return "UNKNOWN"
	}
}
