package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type recordingStatusRecorder struct {
	statuses []int
}

var _ HTTPStatusRecorder = (*recordingStatusRecorder)(nil)

func (r *recordingStatusRecorder) RecordHTTPStatus(statusCode int) {
	r.statuses = append(r.statuses, statusCode)
}

func TestStatusMetricsMiddleware_RecordsStatus(t *testing.T) {
	recorder := &recordingStatusRecorder{}
	mw := NewStatusMetricsMiddleware(recorder)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/purchases", nil))

	if len(recorder.statuses) != 1 || recorder.statuses[0] != http.StatusConflict {
		t.Errorf("記録されたステータスが不正: %v", recorder.statuses)
	}
}

// WriteHeader未呼び出しの場合は200が記録されること
func TestStatusMetricsMiddleware_ImplicitOK(t *testing.T) {
	recorder := &recordingStatusRecorder{}
	mw := NewStatusMetricsMiddleware(recorder)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	if len(recorder.statuses) != 1 || recorder.statuses[0] != http.StatusOK {
		t.Errorf("記録されたステータスが不正: %v", recorder.statuses)
	}
}

// recorderがnilの場合はハンドラーをそのまま返すこと
func TestStatusMetricsMiddleware_NilRecorder_PassesThrough(t *testing.T) {
	mw := NewStatusMetricsMiddleware(nil)

	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	handler := mw(inner)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !called {
		t.Error("nilレコーダーでハンドラーが呼ばれなかった")
	}
}
