package storage_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"filippo.io/age"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/service/storage"
)

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	gt.NoError(t, err).Required()
	return string(data)
}

func runFileStoreTest(t *testing.T, newStore func(t *testing.T) interfaces.FileStore) {
	t.Run("Put then Open", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		gt.NoError(t, store.Put(ctx, "documents/t1/d1", strings.NewReader("%PDF-1.4 body"), "application/pdf")).Required()

		rc, err := store.Open(ctx, "documents/t1/d1")
		gt.NoError(t, err).Required()
		gt.Value(t, readAll(t, rc)).Equal("%PDF-1.4 body")
	})

	t.Run("Put replaces existing object", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		gt.NoError(t, store.Put(ctx, "documents/t1/d1", strings.NewReader("old"), "application/pdf")).Required()
		gt.NoError(t, store.Put(ctx, "documents/t1/d1", strings.NewReader("new"), "application/pdf")).Required()

		rc, err := store.Open(ctx, "documents/t1/d1")
		gt.NoError(t, err).Required()
		gt.Value(t, readAll(t, rc)).Equal("new")
	})

	t.Run("Open unknown key", func(t *testing.T) {
		store := newStore(t)
		_, err := store.Open(context.Background(), "documents/none")
		gt.Error(t, err).Is(interfaces.ErrNotFound)
	})

	t.Run("Delete is idempotent", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		gt.NoError(t, store.Put(ctx, "documents/t1/d1", strings.NewReader("x"), "application/pdf")).Required()
		gt.NoError(t, store.Delete(ctx, "documents/t1/d1"))
		gt.NoError(t, store.Delete(ctx, "documents/t1/d1"))

		_, err := store.Open(ctx, "documents/t1/d1")
		gt.Error(t, err).Is(interfaces.ErrNotFound)
	})

	t.Run("Walk visits keys under prefix", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		for _, key := range []string{"documents/t1/a", "documents/t2/b", "avatars/c"} {
			gt.NoError(t, store.Put(ctx, key, strings.NewReader(key), "application/pdf")).Required()
		}

		var keys []string
		gt.NoError(t, store.Walk(ctx, "documents/", func(obj interfaces.ObjectInfo) error {
			keys = append(keys, obj.Key)
			gt.B(t, obj.UpdatedAt.IsZero()).False()
			return nil
		})).Required()

		gt.A(t, keys).Length(2)
		gt.A(t, keys).Has("documents/t1/a")
		gt.A(t, keys).Has("documents/t2/b")
	})

	t.Run("Put rejects unsafe keys", func(t *testing.T) {
		store := newStore(t)
		for _, key := range []string{"", "/etc/passwd", "documents/../../x", "documents//x"} {
			err := store.Put(context.Background(), key, strings.NewReader("x"), "application/pdf")
			gt.Error(t, err).Is(storage.ErrInvalidKey)
		}
	})
}

func TestMemory(t *testing.T) {
	runFileStoreTest(t, func(t *testing.T) interfaces.FileStore {
		return storage.NewMemory()
	})
}

func TestFilesystem(t *testing.T) {
	runFileStoreTest(t, func(t *testing.T) interfaces.FileStore {
		store, err := storage.NewFilesystem(t.TempDir())
		gt.NoError(t, err).Required()
		return store
	})
}

func TestEncrypted(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	gt.NoError(t, err).Required()

	runFileStoreTest(t, func(t *testing.T) interfaces.FileStore {
		return storage.NewEncrypted(storage.NewMemory(), identity)
	})

	t.Run("bytes at rest are not plaintext", func(t *testing.T) {
		inner := storage.NewMemory()
		store := storage.NewEncrypted(inner, identity)
		ctx := context.Background()

		gt.NoError(t, store.Put(ctx, "documents/t/d", strings.NewReader("secret contract"), "application/pdf")).Required()

		rc, err := inner.Open(ctx, "documents/t/d")
		gt.NoError(t, err).Required()
		raw := readAll(t, rc)
		gt.B(t, strings.Contains(raw, "secret contract")).False()

		other, err := age.GenerateX25519Identity()
		gt.NoError(t, err).Required()
		_, err = storage.NewEncrypted(inner, other).Open(ctx, "documents/t/d")
		gt.Value(t, err).NotNil()
	})
}

func TestLoadIdentity(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	gt.NoError(t, err).Required()

	path := filepath.Join(t.TempDir(), "key.txt")
	var buf bytes.Buffer
	buf.WriteString("# created for test\n")
	buf.WriteString(identity.String() + "\n")
	gt.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600)).Required()

	loaded, err := storage.LoadIdentity(path)
	gt.NoError(t, err).Required()
	gt.Value(t, loaded.Recipient().String()).Equal(identity.Recipient().String())

	_, err = storage.LoadIdentity(filepath.Join(t.TempDir(), "missing.txt"))
	gt.Value(t, err).NotNil()
}

func TestGCS(t *testing.T) {
	bucket := os.Getenv("TEST_GCS_BUCKET")
	if bucket == "" {
		t.Skip("TEST_GCS_BUCKET not set")
	}

	runFileStoreTest(t, func(t *testing.T) interfaces.FileStore {
		store, err := storage.NewGCS(context.Background(), bucket,
			storage.WithGCSPrefix("test/"+strings.ReplaceAll(t.Name(), "/", "_")+"/"))
		gt.NoError(t, err).Required()
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}
