package analyzer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aescanero/vocalmetrics/internal/audio"
)

var (
	// ErrInvalidUpload is returned for uploads that are missing or empty
	ErrInvalidUpload = errors.New("invalid upload")

	// ErrUploadTooLarge is returned for uploads over the size limit
	ErrUploadTooLarge = errors.New("upload too large")
)

// Validator checks uploads before they are spooled
type Validator struct {
	maxSize    int64
	extensions map[string]bool
}

// NewValidator creates a new upload validator. maxSize <= 0 disables the
// size check and an empty extension list accepts any file.
func NewValidator(maxSize int64, extensions []string) *Validator {
	v := &Validator{maxSize: maxSize}
	if len(extensions) > 0 {
		v.extensions = make(map[string]bool, len(extensions))
		for _, ext := range extensions {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			v.extensions[ext] = true
		}
	}
	return v
}

// Validate checks the upload metadata
func (v *Validator) Validate(u *Upload) error {
	if u == nil || u.Body == nil {
		return fmt.Errorf("%w: no audio file provided", ErrInvalidUpload)
	}
	if u.Filename == "" {
		return fmt.Errorf("%w: no audio file selected", ErrInvalidUpload)
	}
	if audio.SanitizeFilename(u.Filename) == "" {
		return fmt.Errorf("%w: invalid filename", ErrInvalidUpload)
	}
	if u.Size == 0 {
		return fmt.Errorf("%w: empty file", ErrInvalidUpload)
	}
	if v.maxSize > 0 && u.Size > v.maxSize {
		return fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrUploadTooLarge, u.Size, v.maxSize)
	}
	if v.extensions != nil {
		ext := audio.Extension(u.Filename)
		if !v.extensions[ext] {
			return fmt.Errorf("%w: extension %q not allowed", audio.ErrUnsupportedFormat, ext)
		}
	}
	return nil
}

// MaxSize returns the size limit in bytes, 0 when unlimited
func (v *Validator) MaxSize() int64 {
	if v.maxSize < 0 {
		return 0
	}
	return v.maxSize
}
