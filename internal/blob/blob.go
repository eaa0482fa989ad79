// Package blob is the content-addressed media store for clue images: files
// are named by the SHA-256 of their content, uploads dedup automatically,
// and decode/metadata extraction runs on a bounded worker pool so a burst of
// uploads can't spin up unbounded goroutines. Grounded on
// `original_source/src/catbox/blob.py`'s BlobManager, translated from its
// asyncio ThreadPoolExecutor into a fixed-size Go worker pool.
package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/benharcourt/catbox-quiz/internal/metrics"
	"github.com/benharcourt/catbox-quiz/internal/store"
)

// ErrNotAcceptable is returned when uploaded content cannot be decoded as an
// image, mirroring blob.py's UnidentifiedImageError -> HTTPNotAcceptable.
var ErrNotAcceptable = errors.New("blob: content is not a recognisable image")

// ErrNotFound is returned by Fetch when no blob exists for the given id.
var ErrNotFound = errors.New("blob: not found")

const defaultWorkers = 2

type decodeJob struct {
	data   []byte
	result chan decodeResult
}

type decodeResult struct {
	mime   string
	width  int
	height int
	err    error
}

// Store is the blob subsystem: a directory of content-addressed files, a
// row in internal/store per blob's metadata, and the worker pool that
// decodes uploads off the request goroutine.
type Store struct {
	dir    string
	db     *store.Store
	logger *zap.Logger
	jobs   chan decodeJob
	done   chan struct{}
}

// New builds a blob store rooted at dir, creating it if necessary, and
// starts workers decode goroutines. Call Close to stop them.
func New(dir string, db *store.Store, logger *zap.Logger, workers int) (*Store, error) {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir %s: %w", dir, err)
	}

	s := &Store{
		dir:    dir,
		db:     db,
		logger: logger,
		jobs:   make(chan decodeJob),
		done:   make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go s.worker()
	}
	return s, nil
}

// Close stops the decode workers. Safe to call once.
func (s *Store) Close() {
	close(s.done)
}

func (s *Store) worker() {
	for {
		select {
		case <-s.done:
			return
		case job := <-s.jobs:
			job.result <- decodeImage(job.data)
		}
	}
}

func decodeImage(data []byte) decodeResult {
	start := time.Now()
	defer func() { metrics.BlobDecodeDuration.Observe(time.Since(start).Seconds()) }()

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return decodeResult{err: ErrNotAcceptable}
	}
	mt := mimetype.Detect(data)
	return decodeResult{mime: mt.String(), width: cfg.Width, height: cfg.Height}
}

// Upload dedups by content hash: if a blob with this content already
// exists, its stored metadata is returned with created=false and the
// decode pool is never touched. Otherwise the content is decoded (bounded
// by the worker pool), written to disk, and recorded.
func (s *Store) Upload(ctx context.Context, data []byte) (b *store.Blob, created bool, err error) {
	id := hashOf(data)

	existing, err := s.db.GetBlobMeta(id)
	if err != nil {
		return nil, false, fmt.Errorf("look up blob %s: %w", id, err)
	}
	if existing != nil {
		metrics.BlobUploadsTotal.WithLabelValues("duplicate").Inc()
		return existing, false, nil
	}

	resultCh := make(chan decodeResult, 1)
	select {
	case s.jobs <- decodeJob{data: data, result: resultCh}:
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}

	var res decodeResult
	select {
	case res = <-resultCh:
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
	if res.err != nil {
		metrics.BlobUploadsTotal.WithLabelValues("rejected").Inc()
		return nil, false, res.err
	}

	if err := os.WriteFile(s.path(id), data, 0o644); err != nil {
		return nil, false, fmt.Errorf("write blob %s: %w", id, err)
	}

	meta := store.Blob{BlobID: id, Mime: res.mime, Width: res.width, Height: res.height}
	if err := s.db.InsertBlobMeta(meta); err != nil {
		return nil, false, fmt.Errorf("record blob %s: %w", id, err)
	}

	metrics.BlobUploadsTotal.WithLabelValues("created").Inc()
	return &meta, true, nil
}

// Fetch returns a blob's metadata and the on-disk path of its content, for
// the immutable GET /blob/:sha256 route.
func (s *Store) Fetch(id string) (*store.Blob, string, error) {
	if !validID(id) {
		return nil, "", ErrNotFound
	}
	meta, err := s.db.GetBlobMeta(id)
	if err != nil {
		return nil, "", fmt.Errorf("look up blob %s: %w", id, err)
	}
	if meta == nil {
		return nil, "", ErrNotFound
	}
	return meta, s.path(id), nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id)
}

func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// validID rejects anything that isn't a bare 64-character hex digest, per
// blob.py's rejection of ids containing "." or "/".
func validID(id string) bool {
	if len(id) != sha256.Size*2 {
		return false
	}
	for _, c := range id {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
