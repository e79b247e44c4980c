package requester

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// writeFile streams r to path atomically via a temp file in the same
// directory.
func writeFile(path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, eris.Wrapf(err, "requester: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return 0, eris.Wrap(err, "requester: create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return 0, eris.Wrap(err, "requester: write body")
	}
	if err := tmp.Close(); err != nil {
		return 0, eris.Wrap(err, "requester: close temp file")
	}

	if err := os.Rename(tmpName, path); err != nil {
		return 0, eris.Wrapf(err, "requester: rename to %s", path)
	}
	return n, nil
}
