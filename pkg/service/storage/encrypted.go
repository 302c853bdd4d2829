package storage

import (
	"context"
	"io"
	"os"

	"filippo.io/age"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tasklane/pkg/domain/interfaces"
	"github.com/secmon-lab/tasklane/pkg/utils/safe"
)

// Encrypted wraps a FileStore and keeps every object age encrypted at rest.
// Keys and listing are passed through unchanged.
type Encrypted struct {
	inner     interfaces.FileStore
	identity  age.Identity
	recipient age.Recipient
}

var _ interfaces.FileStore = &Encrypted{}

func NewEncrypted(inner interfaces.FileStore, identity *age.X25519Identity) *Encrypted {
	return &Encrypted{
		inner:     inner,
		identity:  identity,
		recipient: identity.Recipient(),
	}
}

// LoadIdentity reads the first X25519 identity from an age key file
func LoadIdentity(path string) (*age.X25519Identity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open age identity file", goerr.V("path", path))
	}
	defer safe.Close(context.Background(), f)

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse age identity file", goerr.V("path", path))
	}
	for _, id := range identities {
		if x, ok := id.(*age.X25519Identity); ok {
			return x, nil
		}
	}
	return nil, goerr.New("no X25519 identity in file", goerr.V("path", path))
}

func (e *Encrypted) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	pr, pw := io.Pipe()

	go func() {
		w, err := age.Encrypt(pw, e.recipient)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(w, r); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(w.Close())
	}()

	err := e.inner.Put(ctx, key, pr, "application/octet-stream")
	_ = pr.CloseWithError(io.ErrClosedPipe)
	if err != nil {
		return goerr.Wrap(err, "failed to store encrypted object", goerr.V("key", key))
	}
	return nil
}

type decryptedReader struct {
	io.Reader
	io.Closer
}

func (e *Encrypted) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := e.inner.Open(ctx, key)
	if err != nil {
		return nil, err
	}

	r, err := age.Decrypt(rc, e.identity)
	if err != nil {
		safe.Close(ctx, rc)
		return nil, goerr.Wrap(err, "failed to decrypt object", goerr.V("key", key))
	}
	return decryptedReader{Reader: r, Closer: rc}, nil
}

func (e *Encrypted) Delete(ctx context.Context, key string) error {
	return e.inner.Delete(ctx, key)
}

func (e *Encrypted) Walk(ctx context.Context, prefix string, fn func(obj interfaces.ObjectInfo) error) error {
	return e.inner.Walk(ctx, prefix, fn)
}
