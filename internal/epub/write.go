package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"time"
)

// Bytes serializes the document back into an EPUB archive
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo writes the document as an EPUB archive. The mimetype entry is
// always written first and stored uncompressed. Sections are re-rendered only
// when they were modified.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	zw := zip.NewWriter(cw)
	modTime := time.Now()

	mimetype := []byte(epubMimetype)
	if e, ok := d.byPath[mimetypePath]; ok && len(bytes.TrimSpace(e.data)) > 0 {
		mimetype = bytes.TrimSpace(e.data)
	}
	if err := writeEntry(zw, mimetypePath, mimetype, zip.Store, modTime); err != nil {
		return cw.n, err
	}

	rendered := make(map[string][]byte)
	for _, sec := range d.sections {
		if !sec.modified {
			continue
		}
		data, err := sec.render()
		if err != nil {
			return cw.n, err
		}
		rendered[sec.item.path] = data
	}

	for _, e := range d.entries {
		if e.name == mimetypePath {
			continue
		}
		data := e.data
		switch {
		case e.name == d.opfPath:
			data = d.opf
		case rendered[e.name] != nil:
			data = rendered[e.name]
		}
		method := e.method
		if method != zip.Store {
			method = zip.Deflate
		}
		if err := writeEntry(zw, e.name, data, method, modTime); err != nil {
			return cw.n, err
		}
	}

	if err := zw.Close(); err != nil {
		return cw.n, fmt.Errorf("finalize epub: %w", err)
	}
	return cw.n, nil
}

func writeEntry(zw *zip.Writer, name string, data []byte, method uint16, modTime time.Time) error {
	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   method,
		Modified: modTime,
	})
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := fw.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
