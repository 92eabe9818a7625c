package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gearshelf/internal/catalog"
	"gearshelf/internal/config"
	"gearshelf/internal/database"
	"gearshelf/internal/models"
	"gearshelf/internal/pagination"
	"gearshelf/internal/services"
	"gearshelf/internal/utils"
)

type stubScanner struct {
	result  models.ScanResult
	started chan struct{}
	release chan struct{}
}

func (s *stubScanner) ScanAll(ctx context.Context) models.ScanResult {
	if s.started != nil {
		close(s.started)
		<-s.release
	}
	return s.result
}

func (s *stubScanner) ScanQuick(ctx context.Context) models.ScanResult {
	return models.ScanResult{Plugins: s.result.Plugins[:1], TotalScanned: 1, Errors: []string{}}
}

func library() models.ScanResult {
	return models.ScanResult{
		Plugins: []models.Plugin{
			{Name: "Serum", Path: "/VST3/Serum.vst3", Type: models.PluginTypeVST3, Manufacturer: "Xfer", Format: "VST3 Plugin"},
			{Name: "Serum", Path: "/VST/Serum.vst", Type: models.PluginTypeVST2, Manufacturer: "Xfer", Format: "VST2 Plugin"},
			{Name: "Diva", Path: "/Components/Diva.component", Type: models.PluginTypeAU, Manufacturer: "u-he", Format: "Audio Unit"},
			{Name: "Pro-Q 3", Path: "/VST3/FabFilter Pro-Q 3.vst3", Type: models.PluginTypeVST3, Manufacturer: "FabFilter", Format: "VST3 Plugin"},
		},
		TotalScanned: 4,
		Errors:       []string{},
		ScanTime:     12,
	}
}

func generousLimits() config.RateLimitConfig {
	return config.RateLimitConfig{ScansPerMinute: 600, ScanBurst: 100, SearchMax: 100, SearchWindow: time.Minute}
}

func newTestApp(t *testing.T, scanner services.Scanner) (*fiber.App, *catalog.Store) {
	t.Helper()
	db, err := gorm.Open(
		sqlite.Open(database.SQLiteDSN(filepath.Join(t.TempDir(), "catalog.db"))),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	store := catalog.NewStore(db)
	require.NoError(t, store.Initialize(context.Background()))

	svc := services.NewPluginService(scanner, store)
	app := fiber.New()
	RegisterPluginRoutes(app, NewPluginHandler(svc, 30, zerolog.Nop()), generousLimits())
	return app, store
}

func do(t *testing.T, app *fiber.App, method, target string) *http.Response {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil), -1)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestScanPlugins(t *testing.T) {
	app, _ := newTestApp(t, &stubScanner{result: library()})

	resp := do(t, app, "POST", "/api/scan-plugins")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var report models.ScanReport
	decode(t, resp, &report)
	assert.True(t, report.Success)
	assert.Equal(t, 3, report.TotalPlugins)
	assert.Equal(t, 4, report.TotalFiles)
	assert.Equal(t, 1, report.MultiFormatCount)
	assert.Equal(t, "Found 3 unique plugins (4 files)", report.Message)
}

func TestScanPlugins_Quick(t *testing.T) {
	app, _ := newTestApp(t, &stubScanner{result: library()})

	var report models.ScanReport
	decode(t, do(t, app, "POST", "/api/scan-plugins?quick=true"), &report)
	assert.Equal(t, 1, report.TotalFiles)
}

func TestScanPlugins_OverlappingScanIsRejected(t *testing.T) {
	scanner := &stubScanner{result: library(), started: make(chan struct{}), release: make(chan struct{})}
	app, _ := newTestApp(t, scanner)

	done := make(chan int)
	go func() {
		resp, err := app.Test(httptest.NewRequest("POST", "/api/scan-plugins", nil), -1)
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()
	<-scanner.started

	resp := do(t, app, "POST", "/api/scan-plugins")
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	var body utils.ErrorResponse
	decode(t, resp, &body)
	assert.Equal(t, "Conflict", body.Error)
	assert.Equal(t, "a scan is already in progress", body.Details)
	assert.Equal(t, fiber.StatusConflict, body.Code)

	close(scanner.release)
	assert.Equal(t, fiber.StatusOK, <-done)
}

func TestScanPlugins_StoreFailure(t *testing.T) {
	bad := library()
	bad.Plugins[0].Path = ""
	app, _ := newTestApp(t, &stubScanner{result: bad})

	resp := do(t, app, "POST", "/api/scan-plugins")
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	var report models.ScanReport
	decode(t, resp, &report)
	assert.False(t, report.Success)
	assert.True(t, strings.HasPrefix(report.Message, "Scan failed: "))
}

func TestGetPlugins(t *testing.T) {
	app, _ := newTestApp(t, &stubScanner{result: library()})

	var before []models.GroupedPlugin
	decode(t, do(t, app, "GET", "/api/get-plugins"), &before)
	assert.Empty(t, before)

	do(t, app, "POST", "/api/scan-plugins")

	var groups []models.GroupedPlugin
	decode(t, do(t, app, "GET", "/api/get-plugins"), &groups)
	require.Len(t, groups, 3)
	assert.Equal(t, "Pro-Q 3", groups[0].Name)
	assert.Equal(t, "Diva", groups[1].Name)
	assert.Equal(t, "Serum", groups[2].Name)
}

func TestGetPlugins_Views(t *testing.T) {
	app, _ := newTestApp(t, &stubScanner{result: library()})
	do(t, app, "POST", "/api/scan-plugins")

	var multi []models.GroupedPlugin
	decode(t, do(t, app, "GET", "/api/get-plugins?view=multi-format"), &multi)
	require.Len(t, multi, 1)
	assert.Equal(t, "Serum", multi[0].Name)

	var buckets map[string][]models.GroupedPlugin
	decode(t, do(t, app, "GET", "/api/get-plugins?view=by-manufacturer"), &buckets)
	assert.Len(t, buckets, 3)
	require.Len(t, buckets["FabFilter"], 1)
	assert.Equal(t, "Pro-Q 3", buckets["FabFilter"][0].Name)

	resp := do(t, app, "GET", "/api/get-plugins?view=sideways")
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestGetStatistics(t *testing.T) {
	app, _ := newTestApp(t, &stubScanner{result: library()})
	do(t, app, "POST", "/api/scan-plugins")

	var stats models.CatalogStatistics
	decode(t, do(t, app, "GET", "/api/get-plugin-statistics"), &stats)
	assert.Equal(t, int64(4), stats.TotalPlugins)
	assert.Equal(t, int64(3), stats.UniquePlugins)
	assert.Equal(t, int64(2), stats.VST3Count)
	assert.Equal(t, int64(3), stats.ManufacturerCount)
	assert.NotNil(t, stats.LastScanDate)
}

func TestSearchPlugins(t *testing.T) {
	app, _ := newTestApp(t, &stubScanner{result: library()})
	do(t, app, "POST", "/api/scan-plugins")

	var groups []models.GroupedPlugin
	decode(t, do(t, app, "GET", "/api/search-plugins?q=xfer"), &groups)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Types, 2)

	var all []models.GroupedPlugin
	decode(t, do(t, app, "GET", "/api/search-plugins?q=%20"), &all)
	assert.Len(t, all, 3)
}

func TestGetScanHistory(t *testing.T) {
	app, _ := newTestApp(t, &stubScanner{result: library()})
	do(t, app, "POST", "/api/scan-plugins")
	do(t, app, "POST", "/api/scan-plugins")

	var sessions []models.ScanSession
	decode(t, do(t, app, "GET", "/api/get-scan-history?limit=1"), &sessions)
	assert.Len(t, sessions, 1)

	decode(t, do(t, app, "GET", "/api/get-scan-history"), &sessions)
	assert.Len(t, sessions, 2)

	resp := do(t, app, "GET", "/api/get-scan-history?limit=zero")
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestExportPlugins(t *testing.T) {
	app, _ := newTestApp(t, &stubScanner{result: library()})
	do(t, app, "POST", "/api/scan-plugins")

	resp := do(t, app, "GET", "/api/export-plugins?format=csv")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv", resp.Header.Get(fiber.HeaderContentType))
	assert.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), `filename="plugins.csv"`)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	assert.Len(t, lines, 4)

	resp = do(t, app, "GET", "/api/export-plugins?format=xml")
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestCleanupInactive(t *testing.T) {
	app, _ := newTestApp(t, &stubScanner{result: library()})

	var body map[string]interface{}
	decode(t, do(t, app, "POST", "/api/cleanup-inactive-plugins"), &body)
	assert.Equal(t, float64(0), body["deleted"])
	assert.Equal(t, float64(30), body["olderThanDays"])

	decode(t, do(t, app, "POST", "/api/cleanup-inactive-plugins?days=0"), &body)
	assert.Equal(t, float64(0), body["olderThanDays"])

	resp := do(t, app, "POST", "/api/cleanup-inactive-plugins?days=-1")
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	var errBody utils.ErrorResponse
	decode(t, resp, &errBody)
	assert.Contains(t, errBody.Details, "days")
}

func TestListCatalog(t *testing.T) {
	app, _ := newTestApp(t, &stubScanner{result: library()})
	do(t, app, "POST", "/api/scan-plugins")

	var page struct {
		Data       []models.CatalogPlugin `json:"data"`
		Pagination pagination.Metadata   `json:"pagination"`
	}
	decode(t, do(t, app, "GET", "/api/catalog/plugins?type=vst3&pageSize=1&page=2"), &page)
	require.Len(t, page.Data, 1)
	assert.Equal(t, int64(2), page.Pagination.TotalCount)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	assert.True(t, page.Pagination.HasPrevious)

	decode(t, do(t, app, "GET", "/api/catalog/plugins?manufacturer=Xfer"), &page)
	assert.Len(t, page.Data, 2)

	resp := do(t, app, "GET", "/api/catalog/plugins?type=aax")
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
}

func TestUninitializedCatalogIsUnavailable(t *testing.T) {
	db, err := gorm.Open(
		sqlite.Open(database.SQLiteDSN(filepath.Join(t.TempDir(), "catalog.db"))),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	svc := services.NewPluginService(&stubScanner{result: library()}, catalog.NewStore(db))
	app := fiber.New()
	RegisterPluginRoutes(app, NewPluginHandler(svc, 30, zerolog.Nop()), generousLimits())

	resp := do(t, app, "GET", "/api/get-plugin-statistics")
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "gearshelf_test_total", Help: "test counter"})
	reg.MustRegister(counter)
	counter.Inc()

	app := fiber.New()
	app.Get("/metrics", MetricsHandler(reg))

	resp := do(t, app, "GET", "/metrics")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "gearshelf_test_total 1")
}
