package blob

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/benharcourt/catbox-quiz/internal/store"
)

func testStore(t *testing.T) (*Store, *store.Store) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	bs, err := New(filepath.Join(t.TempDir(), "blobs"), db, zap.NewNop(), 2)
	require.NoError(t, err)
	t.Cleanup(bs.Close)

	return bs, db
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 0, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestUploadDecodesAndStores(t *testing.T) {
	bs, _ := testStore(t)
	data := pngBytes(t, 4, 3)

	b, created, err := bs.Upload(context.Background(), data)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "image/png", b.Mime)
	assert.Equal(t, 4, b.Width)
	assert.Equal(t, 3, b.Height)

	meta, path, err := bs.Fetch(b.BlobID)
	require.NoError(t, err)
	assert.Equal(t, b.BlobID, meta.BlobID)
	assert.FileExists(t, path)
}

func TestUploadDedupsByContent(t *testing.T) {
	bs, _ := testStore(t)
	data := pngBytes(t, 2, 2)

	first, created, err := bs.Upload(context.Background(), data)
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := bs.Upload(context.Background(), data)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.BlobID, second.BlobID)
}

func TestUploadRejectsNonImage(t *testing.T) {
	bs, _ := testStore(t)

	_, _, err := bs.Upload(context.Background(), []byte("not an image"))
	assert.ErrorIs(t, err, ErrNotAcceptable)
}

func TestFetchUnknownReturnsNotFound(t *testing.T) {
	bs, _ := testStore(t)

	_, _, err := bs.Fetch("0000000000000000000000000000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFetchRejectsMalformedID(t *testing.T) {
	bs, _ := testStore(t)

	_, _, err := bs.Fetch("../../etc/passwd")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentUploadsBoundedByWorkerPool(t *testing.T) {
	bs, _ := testStore(t)

	payloads := make([][]byte, 8)
	for i := range payloads {
		payloads[i] = pngBytes(t, 5+i, 5)
	}

	done := make(chan error, 8)
	for _, data := range payloads {
		data := data
		go func() {
			_, _, err := bs.Upload(context.Background(), data)
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		require.NoError(t, <-done)
	}
}
