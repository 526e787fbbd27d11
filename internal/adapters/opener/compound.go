package opener

import (
	"context"
	"errors"
	"io"
	"net/url"
	"path"
	"strings"

	"baddebt_engine/internal/ports"

	"github.com/rotisserie/eris"
)

var (
	ErrHTTPNotConfigured = errors.New("http opener not configured")
	ErrS3NotConfigured   = errors.New("s3 opener not configured")
	ErrMissingBucket     = errors.New("missing bucket: pass s3://bucket/key, an http(s) url or configure a default bucket")
	ErrInvalidLocation   = errors.New("invalid loan id file location")
)

// Location is a loan id file reference after the filePath argument has
// been resolved: either a URL fetched over HTTP or an object in a bucket.
type Location struct {
	Source string
	URL    string
	Bucket string
	Key    string
}

// ResolveLocation turns a filePath argument into a Location. Bare keys
// belong to defaultBucket; a leading slash is ignored and the key may not
// climb out of the bucket root.
func ResolveLocation(filePath, defaultBucket string) (Location, error) {
	fp := strings.TrimSpace(filePath)
	if fp == "" {
		return Location{}, eris.Wrap(ErrInvalidLocation, "empty file path")
	}

	lower := strings.ToLower(fp)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		u, err := url.Parse(fp)
		if err != nil || u.Host == "" {
			return Location{}, eris.Wrapf(ErrInvalidLocation, "url %q", fp)
		}
		return Location{Source: ports.SourceHTTP, URL: u.String()}, nil

	case strings.HasPrefix(lower, "s3://"):
		u, err := url.Parse(fp)
		if err != nil {
			return Location{}, eris.Wrapf(ErrInvalidLocation, "s3 url %q", fp)
		}
		key, ok := cleanKey(u.Path)
		if u.Host == "" || !ok {
			return Location{}, eris.Wrapf(ErrInvalidLocation, "s3 url %q needs a bucket and a key", fp)
		}
		return Location{Source: ports.SourceS3, Bucket: u.Host, Key: key}, nil
	}

	if defaultBucket == "" {
		return Location{}, ErrMissingBucket
	}
	key, ok := cleanKey(fp)
	if !ok {
		return Location{}, eris.Wrapf(ErrInvalidLocation, "key %q", fp)
	}
	return Location{Source: ports.SourceS3, Bucket: defaultBucket, Key: key}, nil
}

func cleanKey(p string) (string, bool) {
	key := path.Clean("/" + strings.TrimSpace(p))
	key = strings.TrimPrefix(key, "/")
	if key == "" || key == "." {
		return "", false
	}
	return key, true
}

// CompoundOpener opens loan id files from wherever ResolveLocation points.
type CompoundOpener struct {
	HTTP *HTTPOpener
	S3   *S3Opener

	DefaultBucket string
}

func NewCompoundOpener(httpOp *HTTPOpener, s3Op *S3Opener, defaultBucket string) *CompoundOpener {
	return &CompoundOpener{
		HTTP:          httpOp,
		S3:            s3Op,
		DefaultBucket: defaultBucket,
	}
}

func (c *CompoundOpener) Open(ctx context.Context, filePath string) (io.ReadCloser, ports.Meta, error) {
	loc, err := ResolveLocation(filePath, c.DefaultBucket)
	if err != nil {
		return nil, ports.Meta{}, err
	}

	if loc.Source == ports.SourceHTTP {
		if c.HTTP == nil {
			return nil, ports.Meta{}, ErrHTTPNotConfigured
		}
		return c.HTTP.Open(ctx, loc.URL)
	}
	if c.S3 == nil {
		return nil, ports.Meta{}, ErrS3NotConfigured
	}
	return c.S3.Open(ctx, loc.Bucket, loc.Key)
}
