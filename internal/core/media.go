package core

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
)

// Media is an in-memory image handle. It can be read any number of times,
// so the engine and each oracle may inspect it independently.
type Media struct {
	Name     string
	MIMEType string
	data     []byte
}

// NewMedia wraps raw image bytes. The MIME type is sniffed from the content.
func NewMedia(name string, data []byte) (*Media, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("media %q is empty", name)
	}
	return &Media{
		Name:     name,
		MIMEType: http.DetectContentType(data),
		data:     data,
	}, nil
}

// ReadMedia consumes r fully and wraps its content.
func ReadMedia(name string, r io.Reader) (*Media, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read media: %w", err)
	}
	return NewMedia(name, data)
}

// Open returns a fresh reader over the image bytes.
func (m *Media) Open() io.Reader {
	return bytes.NewReader(m.data)
}

// Bytes returns a copy of the image bytes.
func (m *Media) Bytes() []byte {
	return bytes.Clone(m.data)
}

// Size returns the image size in bytes.
func (m *Media) Size() int {
	return len(m.data)
}

// Base64 returns the standard base64 encoding of the image.
func (m *Media) Base64() string {
	return base64.StdEncoding.EncodeToString(m.data)
}

// DataURL returns the image as a data: URL.
func (m *Media) DataURL() string {
	return "data:" + m.MIMEType + ";base64," + m.Base64()
}
