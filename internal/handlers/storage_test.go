package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"printerbot/internal/service"
)

func TestStorage_PutGetDelete(t *testing.T) {
	st := &mockStorage{}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: 1}, Storage: st})

	w := httptest.NewRecorder()
	req := authedRequest(http.MethodPut, "/api/v1/storage/last_file", bytes.NewBufferString(`{"name":"cube.gcode"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("put status=%d body=%s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodGet, "/api/v1/storage/last_file", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get status=%d body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Key   string `json:"key"`
		Value struct {
			Name string `json:"name"`
		} `json:"value"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Key != "last_file" || out.Value.Name != "cube.gcode" {
		t.Fatalf("unexpected body: %+v", out)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodDelete, "/api/v1/storage/last_file", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("delete status=%d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, authedRequest(http.MethodGet, "/api/v1/storage/last_file", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

func TestStorage_InvalidBody(t *testing.T) {
	r := newTestRouter(&service.Service{Authorization: &mockAuth{parseID: 1}, Storage: &mockStorage{}})

	w := httptest.NewRecorder()
	req := authedRequest(http.MethodPut, "/api/v1/storage/k", bytes.NewBufferString(`{not json`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
