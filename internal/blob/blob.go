// Package blob stores message attachments and profile images. Uploads are
// a blocking dependency of a send: the caller gets a stable URL back or an
// error, never a partially stored reference.
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrUpload wraps every failure of the storage collaborator.
var ErrUpload = errors.New("blob upload failed")

// Store uploads a payload and returns a stable reference URL.
type Store interface {
	Upload(ctx context.Context, name string, payload io.Reader) (string, error)
}
