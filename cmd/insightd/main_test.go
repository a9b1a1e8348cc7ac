package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/startinsight/signal-pipeline/internal/alerts"
	"github.com/startinsight/signal-pipeline/internal/models"
)

type fakeArchive struct {
	blobs      map[string][]byte
	lastPrefix string
}

func (f *fakeArchive) Retrieve(filename string) ([]byte, error) {
	data, ok := f.blobs[filename]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", filename)
	}
	return data, nil
}

func (f *fakeArchive) List(prefix string) ([]string, error) {
	f.lastPrefix = prefix
	var names []string
	for name := range f.blobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeArchive) Delete(filename string) error {
	if _, ok := f.blobs[filename]; !ok {
		return fmt.Errorf("blob %s not found", filename)
	}
	delete(f.blobs, filename)
	return nil
}

func newArchiveRouter(archive archiveBrowser) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/archive", archiveListHandler(archive)).Methods("GET")
	router.HandleFunc("/archive/{name}", archiveGetHandler(archive)).Methods("GET")
	router.HandleFunc("/archive/{name}", archiveDeleteHandler(archive)).Methods("DELETE")
	return router
}

func TestArchiveListHandler(t *testing.T) {
	archive := &fakeArchive{blobs: map[string][]byte{
		"signals-2026-08-01.json": []byte(`[]`),
		"signals-2026-08-02.json": []byte(`[]`),
	}}
	router := newArchiveRouter(archive)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/archive?prefix=signals-", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "signals-", archive.lastPrefix)

	var body struct {
		Blobs []string `json:"blobs"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"signals-2026-08-01.json", "signals-2026-08-02.json"}, body.Blobs)
}

func TestArchiveGetHandler(t *testing.T) {
	archive := &fakeArchive{blobs: map[string][]byte{
		"signals-2026-08-01.json": []byte(`[{"url":"https://example.com"}]`),
	}}
	router := newArchiveRouter(archive)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/archive/signals-2026-08-01.json", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `[{"url":"https://example.com"}]`, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/archive/missing.json", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArchiveDeleteHandler(t *testing.T) {
	archive := &fakeArchive{blobs: map[string][]byte{
		"signals-2026-08-01.json": []byte(`[]`),
	}}
	router := newArchiveRouter(archive)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("DELETE", "/archive/signals-2026-08-01.json", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, archive.blobs)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("DELETE", "/archive/signals-2026-08-01.json", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAlertsHandler_FiltersByMinSeverity(t *testing.T) {
	service := alerts.NewService()

	// A 0.55 pass rate breaches both the warning and the critical threshold.
	service.CheckAndAlert(models.QualityMetrics{
		ValidationPassRate: 0.55,
		DuplicateRate:      0.10,
		LLMErrorRate:       0.05,
	})

	handler := alertsHandler(service)

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/alerts", nil))

	var all []models.Alert
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest("GET", "/alerts?min_severity=critical", nil))

	var critical []models.Alert
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &critical))
	assert.Len(t, critical, 1)
	assert.Equal(t, models.SeverityCritical, critical[0].Severity)
}
