package media

import (
	"context"
	"path"

	"github.com/rs/xid"
)

// Key prefixes, mirrored in the local uploads directory layout.
const (
	PostsPrefix   = "posts"
	PicturePrefix = "profile-pictures"
)

// Store persists processed images and returns the URL they are served from.
//
// Delete takes that URL back. A URL the store did not produce (the default
// picture, an external imageURL) is ignored rather than treated as an error.
type Store interface {
	Save(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, url string) error
}

// NewKey returns a fresh object key such as "posts/cv37rs3pp9olc6atsptg.jpg".
func NewKey(prefix string) string {
	return path.Join(prefix, xid.New().String()+".jpg")
}
