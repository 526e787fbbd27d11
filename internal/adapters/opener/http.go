package opener

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"baddebt_engine/internal/ports"

	"go.uber.org/zap"
)

type HTTPOpener struct {
	Client *http.Client
	Logger *zap.Logger
}

func NewHTTPOpener(cli *http.Client, logger *zap.Logger) *HTTPOpener {
	if cli == nil {
		cli = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPOpener{Client: cli, Logger: logger}
}

func (h *HTTPOpener) Open(ctx context.Context, url string) (io.ReadCloser, ports.Meta, error) {
	log := h.Logger.With(zap.String("url", url))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ports.Meta{}, err
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		log.Warn("opener.http.request_failed", zap.Error(err))
		return nil, ports.Meta{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		log.Warn("opener.http.bad_status", zap.Int("status", resp.StatusCode))
		return nil, ports.Meta{}, fmt.Errorf("http status %d", resp.StatusCode)
	}

	ct := resp.Header.Get("Content-Type")
	size := resp.ContentLength
	if size < 0 {
		size = -1
	}
	log.Debug("opener.http.ok", zap.String("content_type", ct), zap.Int64("size", size))

	return resp.Body, ports.Meta{
		Source:      ports.SourceHTTP,
		ContentType: ct,
		Size:        size,
	}, nil
}
