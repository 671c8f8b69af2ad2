package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textproof/textproof/internal/handlers"
)

func TestServerRoutesRegistered(t *testing.T) {
	log := slog.Default()
	srv := NewServer(":0", handlers.NewPingHandler(log), nil, nil, handlers.NewMetricsHandler())

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"service":"textproof","status":"ok"}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServerDefaultAddr(t *testing.T) {
	srv := NewServer("", nil, nil, nil, nil)
	assert.Equal(t, ":8080", srv.addr)
}
