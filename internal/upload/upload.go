// Package upload turns a schedule photo on disk into an inline payload that
// extraction providers can send.
package upload

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ErrRead is returned when the image cannot be read.
var ErrRead = errors.New("could not read image file")

// Image is an encoded upload. The content is passed through uninspected.
type Image struct {
	Name     string
	MIMEType string
	Data     []byte
}

// Base64 returns the standard base64 encoding of the image bytes.
func (i *Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// DataURL returns the image as a data: URL.
func (i *Image) DataURL() string {
	return "data:" + i.MIMEType + ";base64," + i.Base64()
}

// Open reads the file at path.
func Open(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	defer f.Close()
	return Encode(f, filepath.Base(path), "")
}

// Encode reads r fully. If mimeType is empty it is taken from the file name
// extension, falling back to content sniffing.
func Encode(r io.Reader, name, mimeType string) (*Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	if mimeType == "" {
		mimeType = mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	// Drop parameters such as "; charset=utf-8".
	if mt, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = mt
	}
	return &Image{Name: name, MIMEType: mimeType, Data: data}, nil
}
