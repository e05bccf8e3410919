package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/dmitrijs2005/bloodlink/internal/common"
)

// Result is a successfully compressed image.
type Result struct {
	Bytes    []byte
	MimeType string
	Width    int
	Height   int
	// Quality is the JPEG quality of the returned pass (1 for PNG).
	Quality float64
	// Attempts is the number of encode passes taken.
	Attempts int
	// WithinTarget is false when the size bound could not be met and a
	// smaller-than-input best effort was returned instead.
	WithinTarget bool
}

// Compressor downsamples and re-encodes images. It holds no mutable state
// and is safe for concurrent use.
type Compressor struct {
	c Constraints
}

// NewCompressor fills unset constraints with defaults and validates them.
func NewCompressor(c Constraints) (*Compressor, error) {
	c = c.withDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &Compressor{c: c}, nil
}

// Constraints returns the effective constraints.
func (c *Compressor) Constraints() Constraints {
	return c.c
}

// Compress turns raw into a blob of at most the target size where possible.
//
// The returned blob is always smaller than raw, with one exception: when
// re-encoding cannot beat a JPEG or PNG input that already meets every
// constraint, raw itself is returned unchanged.
//
// Errors wrap common.ErrInvalidInput when the input is rejected before the
// pixels are decoded (non-image MIME type, empty, over the input ceiling,
// declared dimensions over the pixel budget), and common.ErrCompressionFailed
// for codec failures, cancellation, or when no result smaller than raw exists.
func (c *Compressor) Compress(ctx context.Context, raw []byte, mimeType string) (*Result, error) {
	if err := c.checkInput(raw, mimeType); err != nil {
		return nil, err
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode header: %w", common.ErrCompressionFailed, err)
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > c.c.MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds the %d pixel limit",
			common.ErrInvalidInput, cfg.Width, cfg.Height, c.c.MaxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %w", common.ErrCompressionFailed, err)
	}

	outMime := c.c.OutputMimeType
	opaque := outMime == MimeJPEG

	w, h := fitWithin(src.Bounds().Dx(), src.Bounds().Dy(), c.c.MaxWidthOrHeight)
	img := render(src, w, h, opaque)

	target := c.c.TargetBytes()
	quality := c.c.Quality
	if outMime == MimePNG {
		quality = 1
	}

	var best *Result
	for attempt := 1; attempt <= c.c.MaxAttempts+1; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrCompressionFailed, err)
		}

		out, err := encode(img, outMime, quality)
		if err != nil {
			return nil, fmt.Errorf("%w: encode: %w", common.ErrCompressionFailed, err)
		}

		if best == nil || len(out) < len(best.Bytes) {
			b := img.Bounds()
			best = &Result{
				Bytes:    out,
				MimeType: outMime,
				Width:    b.Dx(),
				Height:   b.Dy(),
				Quality:  quality,
			}
		}
		best.Attempts = attempt

		if int64(len(out)) <= target {
			best.WithinTarget = true
			break
		}

		if outMime == MimeJPEG {
			quality = math.Max(quality*0.7, minQuality)
		} else {
			b := img.Bounds()
			img = render(img, max(1, b.Dx()*3/4), max(1, b.Dy()*3/4), false)
		}
	}

	if len(best.Bytes) < len(raw) {
		return best, nil
	}
	if keep := c.keepOriginal(raw, format, cfg, best.Attempts); keep != nil {
		return keep, nil
	}
	return nil, fmt.Errorf("%w: %d bytes after %d passes is not smaller than input %d (target %d)",
		common.ErrCompressionFailed, len(best.Bytes), best.Attempts, len(raw), target)
}

// keepOriginal returns raw as the result when it is already an acceptable
// upload: JPEG or PNG, within the size target and the dimension limit.
func (c *Compressor) keepOriginal(raw []byte, format string, cfg image.Config, attempts int) *Result {
	mime := "image/" + format
	if mime != MimeJPEG && mime != MimePNG {
		return nil
	}
	if int64(len(raw)) > c.c.TargetBytes() || max(cfg.Width, cfg.Height) > c.c.MaxWidthOrHeight {
		return nil
	}
	return &Result{
		Bytes:        raw,
		MimeType:     mime,
		Width:        cfg.Width,
		Height:       cfg.Height,
		Quality:      1,
		Attempts:     attempts,
		WithinTarget: true,
	}
}

func (c *Compressor) checkInput(raw []byte, mimeType string) error {
	if !strings.HasPrefix(NormalizeMime(mimeType), "image/") {
		return fmt.Errorf("%w: %q is not an image type", common.ErrInvalidInput, mimeType)
	}
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty file", common.ErrInvalidInput)
	}
	if int64(len(raw)) > c.c.MaxInputBytes {
		return fmt.Errorf("%w: %d bytes exceeds the %d byte limit", common.ErrInvalidInput, len(raw), c.c.MaxInputBytes)
	}
	return nil
}

// fitWithin scales (w, h) down so neither side exceeds limit.
func fitWithin(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, max(1, int(math.Round(float64(h)*float64(limit)/float64(w))))
	}
	return max(1, int(math.Round(float64(w)*float64(limit)/float64(h)))), limit
}

// render draws src onto a fresh w×h canvas. Opaque canvases start white so
// transparent regions do not turn black in JPEG output.
func render(src image.Image, w, h int, opaque bool) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if opaque {
		draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	}
	sb := src.Bounds()
	if sb.Dx() == w && sb.Dy() == h {
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, sb, draw.Over, nil)
	}
	return dst
}

func encode(img image.Image, mime string, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	switch mime {
	case MimeJPEG:
		q := int(math.Round(quality * 100))
		q = min(max(q, 1), 100)
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: q}); err != nil {
			return nil, err
		}
	case MimePNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported output type %q", mime)
	}
	return buf.Bytes(), nil
}
