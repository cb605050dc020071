package api

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// Multipart is a multipart/form-data request body. Files are read when the
// request is encoded.
type Multipart struct {
	fields []formField
	files  []formField
}

type formField struct {
	name  string
	value string
}

func NewMultipart() *Multipart {
	return &Multipart{}
}

// Field adds a text field. Empty values are skipped.
func (m *Multipart) Field(name, value string) *Multipart {
	if value != "" {
		m.fields = append(m.fields, formField{name: name, value: value})
	}
	return m
}

// File attaches the file at path under name. An empty path is skipped.
func (m *Multipart) File(name, path string) *Multipart {
	if path != "" {
		m.files = append(m.files, formField{name: name, value: path})
	}
	return m
}

func (m *Multipart) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, f := range m.fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	for _, f := range m.files {
		if err := writeFile(w, f.name, f.value); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func writeFile(w *multipart.Writer, field, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", field, err)
	}
	defer file.Close()

	filename := filepath.Base(path)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	header.Set("Content-Type", imageType(filename))

	part, err := w.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, file)
	return err
}

// imageType derives image/<ext> from the file name, defaulting to JPEG.
func imageType(filename string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	switch ext {
	case "":
		return "image/jpeg"
	case "jpg":
		return "image/jpeg"
	default:
		return "image/" + ext
	}
}
