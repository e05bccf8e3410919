package verification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/bloodlink/internal/common"
	"github.com/dmitrijs2005/bloodlink/internal/imaging"
	"github.com/dmitrijs2005/bloodlink/internal/logging"
	"github.com/dmitrijs2005/bloodlink/internal/models"
	"github.com/dmitrijs2005/bloodlink/internal/storage"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

var epoch = time.UnixMilli(1_767_225_600_000).UTC()

func jpegFixture(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), 128, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// cameraJPEG is a w×h JPEG grown to at least size bytes with APP15
// segments, the way phone cameras attach large maker notes. Decoders skip
// them, so the pixels compress like jpegFixture's.
func cameraJPEG(t *testing.T, w, h, size int) []byte {
	t.Helper()
	base := jpegFixture(t, w, h)
	require.True(t, bytes.HasPrefix(base, []byte{0xFF, 0xD8}))

	const maxPayload = 0xFFFF - 2
	var buf bytes.Buffer
	buf.Write(base[:2])
	for buf.Len()+len(base)-2 < size {
		buf.Write([]byte{0xFF, 0xEF, 0xFF, 0xFF})
		buf.Write(bytes.Repeat([]byte{'m'}, maxPayload))
	}
	buf.Write(base[2:])
	return buf.Bytes()
}

// compressFunc adapts a function to Compressor.
type compressFunc func(ctx context.Context, raw []byte, mimeType string) (*imaging.Result, error)

func (f compressFunc) Compress(ctx context.Context, raw []byte, mimeType string) (*imaging.Result, error) {
	return f(ctx, raw, mimeType)
}

// passThrough pretends every input compresses to half its size.
var passThrough = compressFunc(func(ctx context.Context, raw []byte, mimeType string) (*imaging.Result, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty input", common.ErrInvalidInput)
	}
	return &imaging.Result{Bytes: raw[:len(raw)/2+1], MimeType: imaging.MimeJPEG, WithinTarget: true}, nil
})

// gatedBackend is a MemoryBackend whose Puts can be held back and failed
// per storage category.
type gatedBackend struct {
	*storage.MemoryBackend

	mu        sync.Mutex
	gates     map[string]chan struct{}
	putErr    map[string]error
	deleteErr error
	puts      int
	deletes   [][]string

	started  chan string
	finished chan string
}

func newGatedBackend() *gatedBackend {
	return &gatedBackend{
		MemoryBackend: storage.NewMemoryBackend("http://minio.local/proofs/"),
		gates:         map[string]chan struct{}{},
		putErr:        map[string]error{},
		started:       make(chan string, 16),
		finished:      make(chan string, 16),
	}
}

func category(path string) string {
	c, _, _ := strings.Cut(path, "/")
	return c
}

func (g *gatedBackend) hold(cat string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan struct{})
	g.gates[cat] = ch
	return ch
}

func (g *gatedBackend) failPut(cat string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.putErr[cat] = err
}

func (g *gatedBackend) Put(ctx context.Context, path string, blob []byte, contentType string) error {
	cat := category(path)
	g.mu.Lock()
	g.puts++
	gate := g.gates[cat]
	err := g.putErr[cat]
	g.mu.Unlock()

	g.started <- cat
	defer func() { g.finished <- cat }()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	return g.MemoryBackend.Put(ctx, path, blob, contentType)
}

func (g *gatedBackend) Delete(ctx context.Context, paths []string) error {
	g.mu.Lock()
	g.deletes = append(g.deletes, append([]string(nil), paths...))
	err := g.deleteErr
	g.mu.Unlock()
	if err != nil {
		return err
	}
	return g.MemoryBackend.Delete(ctx, paths)
}

func (g *gatedBackend) putCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.puts
}

func (g *gatedBackend) deleteCalls() [][]string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([][]string(nil), g.deletes...)
}

// fakeRecords records commits and fails while errs is non-empty.
type fakeRecords struct {
	mu    sync.Mutex
	errs  []error
	calls [][3]string
}

func (f *fakeRecords) CreateVerificationRecord(ctx context.Context, requestID, p, b string) (*models.VerificationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, [3]string{requestID, p, b})
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return nil, err
	}
	return &models.VerificationRecord{
		ID: "rec-1", RequestID: requestID, TrackingID: requestID,
		PrescriptionURL: p, BloodBagURL: b, Status: models.StatusPending,
	}, nil
}

func (f *fakeRecords) commits() [][3]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][3]string(nil), f.calls...)
}

type memJournal struct {
	mu       sync.Mutex
	attempts []models.Attempt
}

func (j *memJournal) Record(ctx context.Context, a *models.Attempt) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.attempts = append(j.attempts, *a)
	return nil
}

func (j *memJournal) all() []models.Attempt {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]models.Attempt(nil), j.attempts...)
}

// countingPreviews tracks how many previews are alive.
type countingPreviews struct {
	mu       sync.Mutex
	live     int
	created  int
	released int
}

type countedPreview struct {
	owner *countingPreviews
	name  string
	once  sync.Once
}

func (p *countedPreview) Location() string { return p.name }

func (p *countedPreview) Release() error {
	p.once.Do(func() {
		p.owner.mu.Lock()
		p.owner.live--
		p.owner.released++
		p.owner.mu.Unlock()
	})
	return nil
}

func (c *countingPreviews) NewPreview(kind models.ProofKind, blob []byte, mimeType string) (Preview, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.live++
	c.created++
	return &countedPreview{owner: c, name: string(kind)}, nil
}

func (c *countingPreviews) counts() (live, created, released int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live, c.created, c.released
}

type harness struct {
	coord    *Coordinator
	backend  *gatedBackend
	records  *fakeRecords
	journal  *memJournal
	previews *countingPreviews
	clock    *clockwork.FakeClock
}

func newHarness(t *testing.T, comp Compressor) *harness {
	t.Helper()
	h := &harness{
		backend:  newGatedBackend(),
		records:  &fakeRecords{},
		journal:  &memJournal{},
		previews: &countingPreviews{},
		clock:    clockwork.NewFakeClockAt(epoch),
	}
	coord, err := New("REQ-1", Deps{
		Compressor: comp,
		Objects:    storage.NewUploader(h.backend, logging.NewDiscardLogger()),
		Records:    h.records,
		Journal:    h.journal,
		Previews:   h.previews,
	}, WithClock(h.clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = coord.Close() })
	h.coord = coord
	return h
}

func (h *harness) selectBoth(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := h.coord.Select(ctx, models.ProofPrescription, []byte("prescription-bytes"), "image/jpeg")
	require.NoError(t, err)
	_, err = h.coord.Select(ctx, models.ProofBloodBag, []byte("blood-bag-bytes"), "image/png")
	require.NoError(t, err)
}

var errBoom = errors.New("boom")
