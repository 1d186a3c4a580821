package media

import (
	"log/slog"
	"os"
	"strings"
	"testing"

	"chatwire/errors"

	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func newTestStore(t *testing.T, maxBytes int64) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), maxBytes, slog.Default())
	require.NoError(t, err)
	return store
}

func Test_Save_Accepts_Sniffed_Image(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t, 0)

	ref, err := store.Save(pngHeader)
	req.NoError(err)
	req.True(strings.HasPrefix(ref, "/media/"))
	req.True(strings.HasSuffix(ref, ".png"))

	path, err := store.Path(strings.TrimPrefix(ref, "/media/"))
	req.NoError(err)
	data, err := os.ReadFile(path)
	req.NoError(err)
	req.Equal(pngHeader, data)
}

func Test_Save_Rejects_Non_Image_Payload(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t, 0)

	_, err := store.Save([]byte("definitely not an image"))
	req.ErrorIs(err, errors.ErrUnsupportedMedia)

	_, err = store.Save(nil)
	req.ErrorIs(err, errors.ErrUnsupportedMedia)
}

func Test_Save_Rejects_Oversized_Payload(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t, 4)

	_, err := store.Save(pngHeader)
	req.ErrorIs(err, errors.ErrMediaTooLarge)
}

func Test_Path_Refuses_Traversal(t *testing.T) {
	req := require.New(t)
	store := newTestStore(t, 0)

	_, err := store.Path("../somewhere/else.png")
	req.ErrorIs(err, errors.ErrNotFound)

	_, err = store.Path("missing.png")
	req.ErrorIs(err, errors.ErrNotFound)

	_, err = store.Path("")
	req.ErrorIs(err, errors.ErrNotFound)
}
