package ports

import (
	"context"
	"io"
)

const (
	SourceHTTP = "https"
	SourceS3   = "s3"
)

// Meta describes an opened file. Size is -1 when the backend did not say.
type Meta struct {
	Source      string
	ContentType string
	Size        int64
	Bucket      string
	Key         string
}

// FileOpener opens the loan-id files referenced by marking requests.
type FileOpener interface {
	Open(ctx context.Context, filePath string) (io.ReadCloser, Meta, error)
}
