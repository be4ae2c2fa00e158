package fs

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/sound-archive/pkg/soundarchive"
	"github.com/tendant/sound-archive/pkg/soundarchive/presigned"
)

func setupFSTest(t *testing.T) (*Backend, *presigned.Signer) {
	signer := presigned.New(presigned.WithSecretKey("fs-test"))
	b, err := New(Config{BaseDir: t.TempDir(), Bucket: "Contenido"}, signer)
	require.NoError(t, err)
	require.NoError(t, b.EnsureBucket(context.Background()))
	return b, signer
}

func TestFSBackend_PutListDelete(t *testing.T) {
	ctx := context.Background()
	b, _ := setupFSTest(t)

	require.NoError(t, b.Ping(ctx))
	require.NoError(t, b.Put(ctx, "audios/a.mp3", bytes.NewBufferString("ID3data"), 7, "audio/mpeg"))
	require.NoError(t, b.Put(ctx, "imagenes/b.png", bytes.NewBufferString("png"), 3, "image/png"))

	objs, err := b.List(ctx, "audios/")
	require.NoError(t, err)
	require.Len(t, objs, 1)
	assert.Equal(t, "audios/a.mp3", objs[0].Key)
	assert.Equal(t, int64(7), objs[0].Size)

	require.NoError(t, b.Delete(ctx, "audios/a.mp3"))
	require.NoError(t, b.Delete(ctx, "audios/a.mp3"))

	objs, err = b.List(ctx, "audios/")
	require.NoError(t, err)
	assert.Empty(t, objs)
}

func TestFSBackend_RejectsTraversal(t *testing.T) {
	b, _ := setupFSTest(t)
	err := b.Put(context.Background(), "../escape.txt", bytes.NewBufferString("x"), 1, "")
	assert.Error(t, err)
}

func TestFSBackend_SignedURL(t *testing.T) {
	ctx := context.Background()
	b, signer := setupFSTest(t)
	require.NoError(t, b.Put(ctx, "audios/a.mp3", bytes.NewBufferString("hello"), 5, "audio/mpeg"))

	u, err := b.SignedURL(ctx, "audios/a.mp3", time.Minute)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	presigned.Handler(signer, b).ServeHTTP(w, httptest.NewRequest(http.MethodGet, u, nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", w.Body.String())

	_, err = b.SignedURL(ctx, "audios/none.mp3", time.Minute)
	assert.ErrorIs(t, err, soundarchive.ErrNotFound)
}
