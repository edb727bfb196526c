package app_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/mailproxy/internal/app"
	"github.com/JakeFAU/mailproxy/internal/config"
	"github.com/JakeFAU/mailproxy/internal/intake"
)

func testConfig(listmonkURL string) config.Config {
	return config.Config{
		Server:   config.ServerConfig{Port: 3000, ShutdownTimeoutSeconds: 1},
		Listmonk: config.ListmonkConfig{BaseURL: listmonkURL, TimeoutSeconds: 2, SynthesizeName: true},
		Backup:   config.BackupConfig{Driver: "memory", TimeoutSeconds: 1, Table: "subscribers", Prefix: "test"},
		Notify:   config.NotifyConfig{Driver: "log", TimeoutSeconds: 1},
	}
}

func TestNewServesSubmissionsEndToEnd(t *testing.T) {
	t.Parallel()

	listmonk := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/subscribers", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"id":1}}`))
	}))
	defer listmonk.Close()

	a, err := app.New(context.Background(), testConfig(listmonk.URL), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/maildata",
		strings.NewReader(`{"email":"a@b.com","status":"unconfirmed"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), intake.MessageRegistered)

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"tracked":1`)
}

func TestNewWithRedisAndNoNotifier(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	cfg := testConfig("http://127.0.0.1:9000")
	cfg.Backup.Driver = "redis"
	cfg.Backup.RedisURL = "redis://" + mr.Addr()
	cfg.Notify.Driver = "none"

	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, a.Pipeline())
	a.Close()
}

func TestNewWithBackupDisabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig("http://127.0.0.1:9000")
	cfg.Backup.Driver = "none"

	a, err := app.New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "disabled")
}

func TestNewFailsFast(t *testing.T) {
	t.Parallel()

	cfg := testConfig("http://127.0.0.1:9000")
	cfg.Backup.Driver = "postgres"
	_, err := app.New(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "backup store")

	cfg = testConfig("http://127.0.0.1:9000")
	cfg.Notify.Driver = "pubsub"
	_, err = app.New(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "notifier")

	cfg = testConfig("")
	_, err = app.New(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "listmonk")
}
