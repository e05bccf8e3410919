package verification

import (
	"fmt"
	"sync"

	"github.com/dmitrijs2005/bloodlink/internal/filex"
	"github.com/dmitrijs2005/bloodlink/internal/imaging"
	"github.com/dmitrijs2005/bloodlink/internal/models"
)

// Preview is a locally viewable rendition of a compressed proof. Release
// frees it; calling Release more than once is harmless.
type Preview interface {
	Location() string
	Release() error
}

// PreviewFactory creates previews for compressed images.
type PreviewFactory interface {
	NewPreview(kind models.ProofKind, blob []byte, mimeType string) (Preview, error)
}

// FilePreviews writes previews as temporary files in one directory.
type FilePreviews struct {
	dir string
}

// NewFilePreviews creates dir if needed.
func NewFilePreviews(dir string) (*FilePreviews, error) {
	abs, err := filex.EnsureSubdDir(dir)
	if err != nil {
		return nil, fmt.Errorf("preview dir: %w", err)
	}
	return &FilePreviews{dir: abs}, nil
}

// Dir returns the absolute preview directory.
func (f *FilePreviews) Dir() string {
	return f.dir
}

func (f *FilePreviews) NewPreview(kind models.ProofKind, blob []byte, mimeType string) (Preview, error) {
	pattern := kind.Category() + "-*." + imaging.Extension(mimeType)
	path, err := filex.WriteTemp(f.dir, pattern, blob)
	if err != nil {
		return nil, err
	}
	return &filePreview{path: path}, nil
}

type filePreview struct {
	path string
	once sync.Once
	err  error
}

func (p *filePreview) Location() string {
	return p.path
}

func (p *filePreview) Release() error {
	p.once.Do(func() { p.err = filex.RemoveIfExists(p.path) })
	return p.err
}
