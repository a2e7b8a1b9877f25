package controllers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/curatedly/curatedly-backend/pkg/config"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthLive(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	rec := serve(HealthLive(cfg), newRequest(http.MethodGet, "/health/live", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-Curatedly-Env"))
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	rec := serve(HealthReady(cfg, stubPinger{}, stubPinger{}, nil), newRequest(http.MethodGet, "/health/ready", ""))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(HealthReady(cfg, stubPinger{}, stubPinger{err: errors.New("connection refused")}, nil), newRequest(http.MethodGet, "/health/ready", ""))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
}
