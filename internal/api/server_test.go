package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanshelf/scanshelf/internal/naming"
	"github.com/scanshelf/scanshelf/internal/objectstore"
	"github.com/scanshelf/scanshelf/internal/scanlog"
	"github.com/scanshelf/scanshelf/internal/service"
	"github.com/scanshelf/scanshelf/internal/settings"
)

// testEnvelope mirrors the response envelope for decoding in tests.
type testEnvelope[T any] struct {
	V       int    `json:"v"`
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details"`
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), "body: %s", resp.Body.String())
	return env
}

type testServer struct {
	*Server
	api   humatest.TestAPI
	store *objectstore.Memory
}

func setupTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()

	settingsStore, err := settings.OpenInMemory(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = settingsStore.Close() })

	scans, err := scanlog.Open(filepath.Join(t.TempDir(), "scans.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = scans.Close() })

	store := objectstore.NewMemory()
	catalog, err := service.NewCatalogService(context.Background(), store, settingsStore, scans, service.Options{}, nil)
	require.NoError(t, err)

	if cfg.CaptureRateLimit == 0 {
		cfg.CaptureRateLimit = 1000
		cfg.CaptureBurst = 1000
	}
	s := NewServer(catalog, cfg, nil)
	t.Cleanup(s.Close)

	return &testServer{Server: s, api: humatest.Wrap(t, s.API()), store: store}
}

func jpegBody(marker string) *bytes.Reader {
	return bytes.NewReader(append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, marker...))
}

func (ts *testServer) capture(t *testing.T, primaryID string) service.CaptureResult {
	t.Helper()
	resp := ts.api.Post("/api/v1/products/"+primaryID+"/assets", "Content-Type: image/jpeg", jpegBody(primaryID))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	return decode[service.CaptureResult](t, resp).Data
}

func TestHealth(t *testing.T) {
	ts := setupTestServer(t, Config{Version: "1.2.3"})

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	env := decode[HealthResponse](t, resp)
	assert.Equal(t, 1, env.V)
	assert.True(t, env.Success)
	assert.Equal(t, "healthy", env.Data.Status)
	assert.Equal(t, "1.2.3", env.Data.Version)
	assert.Equal(t, "healthy", env.Data.Components["media_store"].Status)
}

func TestHealth_DegradedWithoutMapping(t *testing.T) {
	ts := setupTestServer(t, Config{})

	resp := ts.api.Put("/api/v1/settings/policy", map[string]any{
		"use_secondary_identifier": true,
		"extension":                ".jpg",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	env := decode[HealthResponse](t, ts.api.Get("/health"))
	assert.Equal(t, "degraded", env.Data.Status)
	assert.Equal(t, "degraded", env.Data.Components["mapping"].Status)
}

func TestCaptureDownloadDelete(t *testing.T) {
	ts := setupTestServer(t, Config{})

	first := ts.capture(t, "8901207062865")
	second := ts.capture(t, "8901207062865")
	assert.Equal(t, "8901207062865.jpg", first.Asset.Name)
	assert.Equal(t, "8901207062865-1.jpg", second.Asset.Name)
	assert.Equal(t, naming.BucketPrimary, first.Resolution.Bucket)

	resp := ts.api.Get("/api/v1/assets/primary/8901207062865-1.jpg")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "image/jpeg", resp.Header().Get("Content-Type"))
	assert.Equal(t, CacheNoStore, resp.Header().Get("Cache-Control"))
	assert.True(t, bytes.HasSuffix(resp.Body.Bytes(), []byte("8901207062865")))

	list := decode[service.ProductAssets](t, ts.api.Get("/api/v1/products/8901207062865/assets"))
	require.Len(t, list.Data.Group.Assets, 2)
	assert.Equal(t, "8901207062865-2.jpg", list.Data.NextName)

	resp = ts.api.Delete("/api/v1/assets/primary/8901207062865.jpg")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	deleted := decode[service.DeleteResult](t, resp)
	assert.Equal(t, "8901207062865.jpg", deleted.Data.Deleted.Name)

	resp = ts.api.Get("/api/v1/assets/primary/8901207062865.jpg")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	env := decode[any](t, resp)
	assert.False(t, env.Success)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func TestCapture_LocationHeader(t *testing.T) {
	ts := setupTestServer(t, Config{})

	resp := ts.api.Post("/api/v1/products/SKU%20A/assets", jpegBody("x"))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	assert.Equal(t, "/api/v1/assets/primary/SKU%20A.jpg", resp.Header().Get("Location"))
}

func TestCapture_RejectsNonImage(t *testing.T) {
	ts := setupTestServer(t, Config{})

	resp := ts.api.Post("/api/v1/products/123/assets", "Content-Type: text/plain", strings.NewReader("hello"))
	require.Equal(t, http.StatusBadRequest, resp.Code)

	env := decode[any](t, resp)
	assert.False(t, env.Success)
	assert.Equal(t, "VALIDATION", env.Code)
	assert.Contains(t, env.Error, "unsupported")
	assert.Zero(t, ts.store.Len())
}

func TestCapture_RateLimited(t *testing.T) {
	ts := setupTestServer(t, Config{CaptureRateLimit: 0.001, CaptureBurst: 1})

	ts.capture(t, "123")

	resp := ts.api.Post("/api/v1/products/123/assets", jpegBody("again"))
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, codeRateLimited, decode[any](t, resp).Code)
	assert.Equal(t, 1, ts.store.Len())

	// Reads are not limited.
	assert.Equal(t, http.StatusOK, ts.api.Get("/api/v1/products/123/assets").Code)
}

func TestMappingAndSecondaryNaming(t *testing.T) {
	ts := setupTestServer(t, Config{})

	resp := ts.api.Post("/api/v1/mapping", "Content-Type: text/plain",
		strings.NewReader("_code;barcode\nSKU-1;8901\nSKU-2;8902\nbad line\n"))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	status := decode[service.MappingStatus](t, resp)
	assert.True(t, status.Data.Loaded)
	assert.Equal(t, 2, status.Data.Entries)
	assert.Equal(t, 1, status.Data.Skipped)

	resp = ts.api.Put("/api/v1/settings/policy", map[string]any{
		"use_secondary_identifier": true,
		"label":                    "Back Side",
		"extension":                "JPG",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	policy := decode[PolicyResponse](t, resp)
	assert.Equal(t, ".jpg", policy.Data.Extension)

	lookup := decode[service.ProductLookup](t, ts.api.Get("/api/v1/products/8901"))
	assert.True(t, lookup.Data.Mapped)
	assert.Equal(t, "SKU-1_back_side", lookup.Data.Resolution.BaseName)
	assert.Equal(t, naming.BucketSecondary, lookup.Data.Resolution.Bucket)

	captured := ts.capture(t, "8901")
	assert.Equal(t, "SKU-1_back_side.jpg", captured.Asset.Name)

	unmapped := ts.capture(t, "5000")
	assert.True(t, unmapped.Resolution.Fallback)
	assert.Equal(t, naming.BucketPrimary, unmapped.Resolution.Bucket)

	rows := decode[MappingResponse](t, ts.api.Get("/api/v1/mapping?entries=true"))
	require.Len(t, rows.Data.Rows, 2)
	assert.Equal(t, "8901", rows.Data.Rows[0].Primary)

	resp = ts.api.Delete("/api/v1/mapping")
	assert.Equal(t, http.StatusNoContent, resp.Code)

	after := decode[MappingResponse](t, ts.api.Get("/api/v1/mapping"))
	assert.False(t, after.Data.Loaded)
}

func TestImportMapping_NoValidRows(t *testing.T) {
	ts := setupTestServer(t, Config{})

	resp := ts.api.Post("/api/v1/mapping", strings.NewReader("only-one-field\n_comment\n"))
	require.Equal(t, http.StatusBadRequest, resp.Code)

	env := decode[any](t, resp)
	assert.Equal(t, "VALIDATION", env.Code)
	assert.Contains(t, env.Error, "no valid product mappings found")
}

func TestUpdatePolicy_InvalidExtension(t *testing.T) {
	ts := setupTestServer(t, Config{})

	resp := ts.api.Put("/api/v1/settings/policy", map[string]any{
		"use_secondary_identifier": false,
		"extension":                ".j/g",
	})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	policy := decode[PolicyResponse](t, ts.api.Get("/api/v1/settings/policy"))
	assert.Equal(t, ".jpg", policy.Data.Extension)
}

func TestUnknownBucketRejected(t *testing.T) {
	ts := setupTestServer(t, Config{})

	resp := ts.api.Get("/api/v1/history/elsewhere")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "VALIDATION", decode[any](t, resp).Code)
}

func TestHistoryRoutes(t *testing.T) {
	ts := setupTestServer(t, Config{})

	ts.capture(t, "APPLE1")
	ts.capture(t, "APPLE1")
	ts.capture(t, "APPLE1")
	ts.capture(t, "banana2")

	bucket := decode[BucketHistoryResponse](t, ts.api.Get("/api/v1/history/primary?q=apple"))
	require.Len(t, bucket.Data.Groups, 1)
	assert.Equal(t, "APPLE1", bucket.Data.Groups[0].BaseName)
	assert.Len(t, bucket.Data.Groups[0].Assets, 3)

	all := decode[HistoryResponse](t, ts.api.Get("/api/v1/history"))
	assert.Len(t, all.Data.Buckets[naming.BucketPrimary], 2)
	assert.NotNil(t, all.Data.Buckets[naming.BucketSecondary])

	// Punch a hole directly in the store, then repair it.
	objects, err := ts.store.Query(context.Background(), naming.FolderPrimary, "APPLE1-1.jpg")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	require.NoError(t, ts.store.Delete(context.Background(), objects[0].Handle))

	resp := ts.api.Post("/api/v1/history/primary/APPLE1/renumber")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	renumber := decode[naming.RenumberResult](t, resp)
	assert.Equal(t, []naming.Rename{{From: "APPLE1-2.jpg", To: "APPLE1-1.jpg"}}, renumber.Data.Renamed)

	resp = ts.api.Delete("/api/v1/history/primary/APPLE1")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, 2, decode[service.BulkDeleteResult](t, resp).Data.Deleted)

	resp = ts.api.Delete("/api/v1/history")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, decode[service.BulkDeleteResult](t, resp).Data.Deleted)
	assert.Zero(t, ts.store.Len())
}

func TestScansRoute(t *testing.T) {
	ts := setupTestServer(t, Config{})

	ts.capture(t, "111")
	ts.capture(t, "222")

	all := decode[ScansResponse](t, ts.api.Get("/api/v1/scans?limit=10"))
	assert.Len(t, all.Data.Scans, 2)

	found := decode[ScansResponse](t, ts.api.Get("/api/v1/scans?q=22"))
	require.Len(t, found.Data.Scans, 1)
	assert.Equal(t, "222", found.Data.Scans[0].PrimaryID)

	resp := ts.api.Delete("/api/v1/history")
	require.Equal(t, http.StatusOK, resp.Code)

	empty := decode[ScansResponse](t, ts.api.Get("/api/v1/scans"))
	assert.NotNil(t, empty.Data.Scans)
	assert.Empty(t, empty.Data.Scans)
}

func TestOpenAPI_SchemaNames(t *testing.T) {
	ts := setupTestServer(t, Config{})

	schemas := ts.API().OpenAPI().Components.Schemas.Map()
	assert.Contains(t, schemas, "Scan")
	assert.Contains(t, schemas, "Entry")
	assert.Contains(t, schemas, "ProductGroup")

	resp := ts.api.Get("/openapi.json")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "/api/v1/scans")
}

func TestCapture_FormatMismatch(t *testing.T) {
	ts := setupTestServer(t, Config{})

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")
	resp := ts.api.Post("/api/v1/products/123/assets", "Content-Type: image/png", bytes.NewReader(png))
	require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())

	env := decode[map[string]any](t, resp)
	assert.Equal(t, "VALIDATION", env.Code)
	assert.Equal(t, map[string]any{"detected": "image/png", "extension": ".jpg"}, env.Details)
	assert.Zero(t, ts.store.Len())
}

func TestStatusToCode(t *testing.T) {
	assert.Equal(t, "VALIDATION", statusToCode(http.StatusUnprocessableEntity))
	assert.Equal(t, "NOT_FOUND", statusToCode(http.StatusNotFound))
	assert.Equal(t, codeRateLimited, statusToCode(http.StatusTooManyRequests))
	assert.Equal(t, "INTERNAL", statusToCode(http.StatusTeapot))
}
