// Package storage provides FileStore implementations for document bytes.
package storage

import (
	"path"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

var ErrInvalidKey = goerr.New("invalid object key")

// checkKey rejects keys that could escape the store root
func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || path.Clean(key) != key || strings.Contains(key, "..") {
		return goerr.Wrap(ErrInvalidKey, "unsafe object key", goerr.V("key", key))
	}
	return nil
}
