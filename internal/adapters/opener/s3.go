package opener

import (
	"context"
	"io"

	"baddebt_engine/internal/ports"

	"github.com/minio/minio-go/v7"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

type S3Client interface {
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
}

type S3Opener struct {
	Client S3Client
	Logger *zap.Logger
}

func NewS3Opener(cli S3Client, logger *zap.Logger) *S3Opener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Opener{Client: cli, Logger: logger}
}

// Open stats the object first so a missing key fails here rather than on
// the first read.
func (s *S3Opener) Open(ctx context.Context, bucket, key string) (io.ReadCloser, ports.Meta, error) {
	st, err := s.Client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, ports.Meta{}, eris.Wrapf(err, "s3 stat %s/%s", bucket, key)
	}
	obj, err := s.Client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ports.Meta{}, eris.Wrapf(err, "s3 get %s/%s", bucket, key)
	}
	s.Logger.Debug("opener.s3.ok",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.String("content_type", st.ContentType),
		zap.Int64("size", st.Size),
	)
	return obj, ports.Meta{
		Source:      ports.SourceS3,
		ContentType: st.ContentType,
		Size:        st.Size,
		Bucket:      bucket,
		Key:         key,
	}, nil
}
