package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"baddebt_engine/internal/resolvers"

	"go.uber.org/zap"
)

// HealthCheck pings one backing service.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

type Handlers struct {
	Resolver *resolvers.Resolver
	Checks   []HealthCheck

	Logger *zap.Logger
}

func New(resolver *resolvers.Resolver, checks []HealthCheck, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		Resolver: resolver,
		Checks:   checks,
		Logger:   logger,
	}
}

func (h *Handlers) JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
