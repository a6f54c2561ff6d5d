package vrew

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Pack writes the archive: project.json first, then every media entry at the
// archive root, all uncompressed.
func Pack(w io.Writer, doc *Document, media []Media, modified time.Time) error {
	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode %s: %w", ProjectFile, err)
	}

	zw := zip.NewWriter(w)
	if err := storeEntry(zw, ProjectFile, bytes.TrimSuffix(body.Bytes(), []byte("\n")), modified); err != nil {
		return err
	}
	for _, m := range media {
		if err := storeEntry(zw, m.Name, m.Data, modified); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

// PackBytes is Pack into memory.
func PackBytes(doc *Document, media []Media, modified time.Time) ([]byte, error) {
	var buf bytes.Buffer
	if err := Pack(&buf, doc, media, modified); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func storeEntry(zw *zip.Writer, name string, data []byte, modified time.Time) error {
	hdr := &zip.FileHeader{Name: name, Method: zip.Store, Modified: modified}
	fw, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("create entry %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("write entry %s: %w", name, err)
	}
	return nil
}
