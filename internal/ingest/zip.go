package ingest

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// extractSinglePayload extracts the lone payload file from the registry
// archive to destPath. The export format guarantees exactly one file.
func extractSinglePayload(archivePath, destPath string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return eris.Wrap(err, "ingest: open archive")
	}
	defer r.Close() //nolint:errcheck

	var files []*zip.File
	for _, f := range r.File {
		if !f.FileInfo().IsDir() {
			files = append(files, f)
		}
	}
	if len(files) != 1 {
		return eris.Errorf("ingest: expected exactly 1 file in archive, got %d", len(files))
	}

	rc, err := files[0].Open()
	if err != nil {
		return eris.Wrap(err, "ingest: open archive entry")
	}
	defer rc.Close() //nolint:errcheck

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return eris.Wrap(err, "ingest: create cache dir")
	}

	out, err := os.Create(destPath)
	if err != nil {
		return eris.Wrap(err, "ingest: create payload file")
	}
	defer out.Close() //nolint:errcheck

	if _, err := io.Copy(out, rc); err != nil {
		return eris.Wrap(err, "ingest: extract payload")
	}
	return nil
}
