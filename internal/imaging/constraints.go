// Package imaging normalizes proof photos into bounded JPEG/PNG blobs before
// they are uploaded.
package imaging

import (
	"fmt"
	"strings"
)

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"

	// DefaultMaxInputBytes is the hard ceiling on raw input (10 MB).
	DefaultMaxInputBytes int64 = 10 << 20

	// DefaultMaxAttempts caps size-reduction passes after the first encode.
	DefaultMaxAttempts = 3

	// DefaultMaxPixels bounds the decoded canvas (50 MP).
	DefaultMaxPixels int64 = 50_000_000

	minQuality = 0.1
)

// Constraints configure a Compressor.
type Constraints struct {
	// MaxSizeMB is the best-effort upper bound on output size.
	MaxSizeMB float64
	// MaxWidthOrHeight caps the longest edge in pixels.
	MaxWidthOrHeight int
	// OutputMimeType is MimeJPEG or MimePNG.
	OutputMimeType string
	// Quality is the JPEG encoder hint in (0, 1].
	Quality float64
	// MaxInputBytes rejects larger inputs before decoding.
	MaxInputBytes int64
	// MaxAttempts bounds the reduction passes taken when over MaxSizeMB.
	MaxAttempts int
	// MaxPixels rejects images whose header declares more pixels, before
	// the pixel buffer is allocated.
	MaxPixels int64
}

// DefaultConstraints returns the limits exposed to donors: ≤ 10 MB in,
// ≤ 1 MB out, longest edge ≤ 1920 px.
func DefaultConstraints() Constraints {
	return Constraints{
		MaxSizeMB:        1,
		MaxWidthOrHeight: 1920,
		OutputMimeType:   MimeJPEG,
		Quality:          0.8,
		MaxInputBytes:    DefaultMaxInputBytes,
		MaxAttempts:      DefaultMaxAttempts,
		MaxPixels:        DefaultMaxPixels,
	}
}

// TargetBytes is MaxSizeMB expressed in bytes.
func (c Constraints) TargetBytes() int64 {
	return int64(c.MaxSizeMB * 1024 * 1024)
}

func (c Constraints) withDefaults() Constraints {
	d := DefaultConstraints()
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = d.MaxSizeMB
	}
	if c.MaxWidthOrHeight <= 0 {
		c.MaxWidthOrHeight = d.MaxWidthOrHeight
	}
	if c.OutputMimeType == "" {
		c.OutputMimeType = d.OutputMimeType
	}
	if c.Quality <= 0 {
		c.Quality = d.Quality
	}
	if c.MaxInputBytes <= 0 {
		c.MaxInputBytes = d.MaxInputBytes
	}
	if c.MaxPixels <= 0 {
		c.MaxPixels = d.MaxPixels
	}
	if c.MaxAttempts < 0 {
		c.MaxAttempts = 0
	} else if c.MaxAttempts == 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	c.OutputMimeType = NormalizeMime(c.OutputMimeType)
	return c
}

func (c Constraints) validate() error {
	if c.Quality > 1 {
		return fmt.Errorf("quality %.2f out of range (0, 1]", c.Quality)
	}
	if c.OutputMimeType != MimeJPEG && c.OutputMimeType != MimePNG {
		return fmt.Errorf("unsupported output type %q", c.OutputMimeType)
	}
	return nil
}

// NormalizeMime lower-cases mime, strips parameters and maps common aliases.
func NormalizeMime(mime string) string {
	mime, _, _ = strings.Cut(mime, ";")
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch mime {
	case "image/jpg", "image/pjpeg":
		return MimeJPEG
	case "image/x-png":
		return MimePNG
	}
	return mime
}

// Extension is the file extension used in object paths for mime.
func Extension(mime string) string {
	switch NormalizeMime(mime) {
	case MimeJPEG:
		return "jpg"
	case MimePNG:
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "bin"
	}
}
