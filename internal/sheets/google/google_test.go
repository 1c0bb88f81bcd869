package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"simplemoney/internal/core"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

func testTransaction() core.Transaction {
	return core.Transaction{
		ID:        "tx-1",
		UserID:    "user-1",
		Name:      "Mercado",
		Value:     core.MoneyFromCents(12345),
		Type:      core.Expense,
		Category:  "Alimentação",
		Date:      core.NewDate(2025, 3, 14),
		CreatedAt: time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
	}
}

func TestNewFromConfig_MissingSpreadsheetID(t *testing.T) {
	_, err := NewFromConfig(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for missing spreadsheet id")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewFromConfig_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := NewFromConfig(context.Background(), Config{SpreadsheetID: "sheet"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}

func TestNewFromConfig_UnreadableCredentialsFile(t *testing.T) {
	_, err := NewFromConfig(context.Background(), Config{
		SpreadsheetID:   "sheet",
		CredentialsFile: filepath.Join(t.TempDir(), "missing.json"),
	})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestLoadCredentials_Precedence(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "sa.json")
	if err := os.WriteFile(file, []byte(`{"from":"file"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := loadCredentials(context.Background(), Config{CredentialsJSON: `{"from":"inline"}`, CredentialsFile: file})
	if err != nil || string(got) != `{"from":"inline"}` {
		t.Errorf("inline JSON should win, got %s, %v", got, err)
	}

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", file)
	got, err = loadCredentials(context.Background(), Config{})
	if err != nil || string(got) != `{"from":"file"}` {
		t.Errorf("expected ADC file fallback, got %s, %v", got, err)
	}
}

func TestColumnRange(t *testing.T) {
	tests := []struct {
		sheet string
		want  string
	}{
		{"Ledger", "Ledger!A:F"},
		{"", "'Transações'!A:F"},
		{"My Sheet", "'My Sheet'!A:F"},
		{"O'Brien", "'O''Brien'!A:F"},
	}
	for _, tt := range tests {
		c := New(nil, "id", tt.sheet)
		if got := c.columnRange(); got != tt.want {
			t.Errorf("columnRange(%q) = %q, want %q", tt.sheet, got, tt.want)
		}
	}
}

func TestExportTransaction_Validation(t *testing.T) {
	c := New(nil, "id", "Ledger")
	tx := testTransaction()
	tx.Name = ""
	if _, err := c.ExportTransaction(context.Background(), tx); err == nil {
		t.Fatal("expected validation error")
	}

	if _, err := c.ExportTransaction(context.Background(), testTransaction()); err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Fatalf("expected not initialized error, got %v", err)
	}
}

func TestExportTransaction_AppendsRow(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		body gsheet.ValueRange
		opts string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		path = r.URL.Path
		opts = r.URL.RawQuery
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"updates":{"updatedRange":"Ledger!A7:F7","updatedRows":1}}`))
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithoutAuthentication(),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	ref, err := New(svc, "spreadsheet-1", "Ledger").ExportTransaction(context.Background(), testTransaction())
	if err != nil {
		t.Fatalf("ExportTransaction: %v", err)
	}
	if ref != "Ledger!A7:F7" {
		t.Errorf("unexpected ref %q", ref)
	}

	mu.Lock()
	defer mu.Unlock()
	if !strings.Contains(path, "spreadsheet-1") || !strings.HasSuffix(path, ":append") {
		t.Errorf("unexpected path %q", path)
	}
	if !strings.Contains(opts, "valueInputOption=USER_ENTERED") || !strings.Contains(opts, "insertDataOption=INSERT_ROWS") {
		t.Errorf("unexpected query %q", opts)
	}
	if len(body.Values) != 1 || len(body.Values[0]) != 6 {
		t.Fatalf("unexpected body %+v", body.Values)
	}
	want := []string{"2025-03-14", "Mercado", "expense", "Alimentação", "123.45", "user-1"}
	for i, w := range want {
		if body.Values[0][i] != w {
			t.Errorf("column %d: expected %q, got %v", i, w, body.Values[0][i])
		}
	}
}
