package generate

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"time"
)

// ArchiveName is the download name of the bundled certificates.
const ArchiveName = "certificates.zip"

// WriteArchive writes docs into a ZIP stream in row order.
func WriteArchive(w io.Writer, docs []Document) error {
	zw := zip.NewWriter(w)
	now := time.Now()

	for _, doc := range docs {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     doc.Name,
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return fmt.Errorf("archive %s: %w", doc.Name, err)
		}
		if _, err := fw.Write(doc.Data); err != nil {
			return fmt.Errorf("archive %s: %w", doc.Name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	return nil
}

// Archive returns docs bundled as ZIP bytes.
func Archive(docs []Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteArchive(&buf, docs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
