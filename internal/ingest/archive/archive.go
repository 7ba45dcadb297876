// Package archive pulls recognized export files out of a zip bundle.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/khoahotran/linkgraph/internal/ingest/export"
	"github.com/khoahotran/linkgraph/pkg/apperror"
)

// DefaultMaxEntryBytes caps the decompressed size of a single member.
const DefaultMaxEntryBytes = 64 << 20

// IsZip reports whether name looks like an archive upload.
func IsZip(name string) bool {
	return strings.EqualFold(path.Ext(name), ".zip")
}

// Extract returns the recognized members of data keyed by base name. Directory
// entries, hidden files and unrecognized names are skipped. The first member
// with a given base name wins.
func Extract(data []byte, maxEntryBytes int64) ([]export.File, error) {
	if maxEntryBytes <= 0 {
		maxEntryBytes = DefaultMaxEntryBytes
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperror.NewInvalidArchive("cannot open zip", err)
	}

	seen := make(map[string]bool)
	files := make([]export.File, 0, len(export.RecognizedFiles))
	for _, f := range zr.File {
		raw := strings.ReplaceAll(f.Name, `\`, "/")
		if f.FileInfo().IsDir() || strings.HasSuffix(raw, "/") {
			continue
		}
		name := path.Clean(strings.TrimPrefix(raw, "./"))
		base := path.Base(name)
		if hidden(name) {
			continue
		}
		if !export.IsRecognized(base) || seen[base] {
			continue
		}

		content, err := readEntry(f, maxEntryBytes)
		if err != nil {
			return nil, apperror.NewInvalidArchive(fmt.Sprintf("cannot read %s", f.Name), err)
		}
		seen[base] = true
		files = append(files, export.File{Name: base, Content: content})
	}
	return files, nil
}

// hidden rejects dot files, parent references and anything under a macOS
// resource fork folder. name must already be cleaned.
func hidden(name string) bool {
	for _, part := range strings.Split(name, "/") {
		if part == "." {
			continue
		}
		if part == ".." || strings.HasPrefix(part, ".") || part == "__MACOSX" {
			return true
		}
	}
	return false
}

func readEntry(f *zip.File, limit int64) ([]byte, error) {
	if f.UncompressedSize64 > uint64(limit) {
		return nil, fmt.Errorf("entry is %d bytes, limit %d", f.UncompressedSize64, limit)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(content)) > limit {
		return nil, fmt.Errorf("entry exceeds %d bytes", limit)
	}
	return content, nil
}
