package static

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var errEscapesRoot = errors.New("path escapes root directory")

// resolve turns a request path into a slash-separated name relative to the
// root. Anything from the first '?' on is dropped. A path whose ".."
// segments would climb above the root is rejected.
func resolve(requestPath string) (string, error) {
	if i := strings.IndexByte(requestPath, '?'); i >= 0 {
		requestPath = requestPath[:i]
	}

	depth := 0
	for _, segment := range strings.Split(requestPath, "/") {
		switch segment {
		case "", ".":
		case "..":
			depth--
			if depth < 0 {
				return "", errEscapesRoot
			}
		default:
			depth++
		}
	}

	name := strings.TrimPrefix(path.Clean("/"+requestPath), "/")
	if name == "" {
		name = "."
	}
	return name, nil
}

// displayPath joins a resolved name onto the root for log output.
func displayPath(root, name string) string {
	return filepath.Join(root, filepath.FromSlash(name))
}

// rootEscapeError returns the error root reports for a name that leaves it,
// such as a symlink pointing outside. os does not export that error, so it
// is captured from an open of "..". Nil if it cannot be observed.
func rootEscapeError(root *os.Root) error {
	f, err := root.Open("..")
	if err == nil {
		_ = f.Close()
		return nil
	}

	var pathErr *os.PathError
	if !errors.As(err, &pathErr) || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return pathErr.Err
}
