package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

var (
	// ErrArtifactRequired indicates a submit call arrived without a file.
	ErrArtifactRequired = errors.New("submission file is required")
	// ErrArtifactTooLarge indicates the uploaded file exceeded the configured limit.
	ErrArtifactTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrArtifactTypeNotAllowed indicates the MIME type is not permitted.
	ErrArtifactTypeNotAllowed = errors.New("file type not allowed")
)

// FileStorage abstracts the blob store: it accepts bytes and returns a
// durable URL. Cloudinary implements it in production.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// artifact is a validated, fully read upload ready to hand to the blob store.
type artifact struct {
	Name    string
	Mime    string
	Payload []byte
}

func (a artifact) Reader() io.Reader {
	return bytes.NewReader(a.Payload)
}

// readArtifact drains and validates an uploaded file. Validation happens
// before any storage or database write so a rejected file has no side
// effects.
func readArtifact(file *multipart.FileHeader, maxSize int64) (artifact, error) {
	if file == nil {
		return artifact{}, ErrArtifactRequired
	}

	if file.Size > maxSize {
		return artifact{}, ErrArtifactTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		return artifact{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, maxSize+1)); err != nil {
		return artifact{}, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(buf.Len()) > maxSize {
		return artifact{}, ErrArtifactTooLarge
	}
	if buf.Len() == 0 {
		return artifact{}, ErrArtifactRequired
	}

	mime := mimetype.Detect(buf.Bytes())
	if !isAllowedArtifactType(mime) {
		return artifact{}, fmt.Errorf("%w: %s", ErrArtifactTypeNotAllowed, mime.String())
	}

	return artifact{
		Name:    sanitizeFileName(file.Filename),
		Mime:    mime.String(),
		Payload: buf.Bytes(),
	}, nil
}

func isAllowedArtifactType(mime *mimetype.MIME) bool {
	if strings.HasPrefix(mime.String(), "image/") {
		return true
	}

	allowed := []string{
		"application/pdf",
		"application/zip",
		"application/x-zip-compressed",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"text/plain",
	}
	for _, a := range allowed {
		if mime.Is(a) {
			return true
		}
	}

	return false
}

func sanitizeFileName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("submission-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}
