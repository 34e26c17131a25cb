package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeSheets is a minimal stand-in for the Sheets REST API.
type fakeSheets struct {
	mu       sync.Mutex
	titles   []string
	calls    []string
	updated  [][]any
	failWith int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)

	if f.failWith != 0 {
		http.Error(w, `{"error":{"code":403,"message":"forbidden"}}`, f.failWith)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet:
		sheets := make([]map[string]any, 0, len(f.titles))
		for _, t := range f.titles {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": t}})
		}
		json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})
	case strings.HasSuffix(r.URL.Path, ":batchUpdate"):
		var req struct {
			Requests []struct {
				AddSheet struct {
					Properties struct {
						Title string `json:"title"`
					} `json:"properties"`
				} `json:"addSheet"`
			} `json:"requests"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			f.titles = append(f.titles, rq.AddSheet.Properties.Title)
		}
		w.Write([]byte(`{}`))
	case strings.HasSuffix(r.URL.Path, ":clear"):
		w.Write([]byte(`{}`))
	case r.Method == http.MethodPut:
		if got := r.URL.Query().Get("valueInputOption"); got != "RAW" {
			http.Error(w, "expected RAW input, got "+got, http.StatusBadRequest)
			return
		}
		var vr struct {
			Values [][]any `json:"values"`
		}
		json.NewDecoder(r.Body).Decode(&vr)
		f.updated = vr.Values
		w.Write([]byte(`{}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestExporter(t *testing.T, fake *fakeSheets) *Exporter {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	svc, err := NewService(context.Background(), srv.Client(), srv.URL+"/")
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	return NewExporterWithService(svc, "sheet-123", "Report", nil)
}

func TestExportCreatesSheetAndWritesRows(t *testing.T) {
	fake := &fakeSheets{titles: []string{"Sheet1"}}
	e := newTestExporter(t, fake)

	rng, err := e.Export(context.Background(), sampleReport())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if rng != "'2024 Report'!A1:E13" {
		t.Errorf("unexpected range %s", rng)
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.titles) != 2 || fake.titles[1] != "2024 Report" {
		t.Errorf("report sheet not created, titles = %v", fake.titles)
	}
	if len(fake.updated) != 13 {
		t.Fatalf("expected 13 rows written, got %d", len(fake.updated))
	}
	if fake.updated[10][1] != "食費" {
		t.Errorf("unexpected breakdown row %v", fake.updated[10])
	}
}

func TestExportReusesExistingSheet(t *testing.T) {
	fake := &fakeSheets{titles: []string{"2024 Report"}}
	e := newTestExporter(t, fake)

	if _, err := e.Export(context.Background(), sampleReport()); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	for _, c := range fake.calls {
		if strings.HasSuffix(c, ":batchUpdate") {
			t.Errorf("sheet should not be recreated, calls = %v", fake.calls)
		}
	}
}

func TestExportPropagatesAPIErrors(t *testing.T) {
	e := newTestExporter(t, &fakeSheets{failWith: http.StatusForbidden})
	_, err := e.Export(context.Background(), sampleReport())
	if err == nil || !strings.Contains(err.Error(), "get spreadsheet") {
		t.Fatalf("expected get spreadsheet error, got %v", err)
	}
}

func TestExportWithoutService(t *testing.T) {
	e := &Exporter{}
	if _, err := e.Export(context.Background(), sampleReport()); err == nil {
		t.Fatal("expected error without service")
	}
}

func TestNewExporterRequiresConfig(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if _, err := NewExporter(context.Background(), Config{}, nil); err == nil {
		t.Error("expected error for missing spreadsheet ID")
	}
	_, err := NewExporter(context.Background(), Config{SpreadsheetID: "x"}, nil)
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("expected missing credentials error, got %v", err)
	}
	_, err = NewExporter(context.Background(), Config{SpreadsheetID: "x", CredentialsFile: "/non/existent.json"}, nil)
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Errorf("expected read error, got %v", err)
	}
}
