package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/budi-audio/worker-dsp/internal/analyze"
	"github.com/budi-audio/worker-dsp/internal/repair"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := New(srv.URL, "test-secret")
	return c, srv.Close
}

func TestProgressSendsSecretHeaderAndPath(t *testing.T) {
	var gotPath, gotSecret string
	var body map[string]any
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSecret = r.Header.Get("X-Webhook-Secret")
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusOK)
	})
	defer closeFn()

	if err := client.Progress(t.Context(), "job-1", 50, "halfway"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/webhooks/jobs/job-1/progress" {
		t.Errorf("path = %q, want /webhooks/jobs/job-1/progress", gotPath)
	}
	if gotSecret != "test-secret" {
		t.Errorf("X-Webhook-Secret = %q, want test-secret", gotSecret)
	}
	if body["progress"] != float64(50) || body["message"] != "halfway" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestPostReturnsErrorOnNon2xx(t *testing.T) {
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer closeFn()

	if err := client.Progress(t.Context(), "job-1", 10, "x"); err == nil {
		t.Error("expected an error for a 500 response")
	}
}

func TestReportAnalysisIncludesCamelCaseFields(t *testing.T) {
	var body map[string]any
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusOK)
	})
	defer closeFn()

	result := analyze.Result{IntegratedLUFS: -14.2, SampleRate: 44100, Channels: 2}
	reportURL := "s3://audio/reports/track-1/analysis.json"
	if err := client.ReportAnalysis(t.Context(), "job-1", result, &reportURL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected a data object, got %+v", body)
	}
	if data["integratedLufs"] != -14.2 {
		t.Errorf("integratedLufs = %v, want -14.2", data["integratedLufs"])
	}
	if data["reportUrl"] != reportURL {
		t.Errorf("reportUrl = %v, want %v", data["reportUrl"], reportURL)
	}
}

func TestReportFixIncludesAppliedModulesInOrder(t *testing.T) {
	var body map[string]any
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusOK)
	})
	defer closeFn()

	changes := []repair.Change{
		{Module: "dc_offset", Description: "removed DC offset"},
		{Module: "normalize", Description: "normalized peak"},
	}
	if err := client.ReportFix(t.Context(), "job-2", "s3://audio/fixed/job-2.wav", changes); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data := body["data"].(map[string]any)
	modules := data["appliedModules"].([]any)
	if len(modules) != 2 || modules[0] != "dc_offset" || modules[1] != "normalize" {
		t.Errorf("unexpected appliedModules: %+v", modules)
	}
}

func TestReportMasterIncludesQCReportURL(t *testing.T) {
	var body map[string]any
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusOK)
	})
	defer closeFn()

	qcURL := "s3://audio/reports/qc.json"
	report := MasterReport{
		WavHDURL: "s3://audio/master/hd.wav", FinalLUFS: -9.8, FinalTruePeak: -1.2,
		PassesQC: true, QCReportURL: &qcURL,
	}
	if err := client.ReportMaster(t.Context(), "job-3", report); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data := body["data"].(map[string]any)
	if data["qcReportUrl"] != qcURL || data["passesQc"] != true {
		t.Errorf("unexpected data: %+v", data)
	}
}

func TestReportFailureSetsFailedStatus(t *testing.T) {
	var body map[string]any
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusOK)
	})
	defer closeFn()

	if err := client.ReportFailure(t.Context(), "job-4", "master", "ffmpeg exited 1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body["status"] != "failed" || body["error"] != "ffmpeg exited 1" {
		t.Errorf("unexpected body: %+v", body)
	}
}
