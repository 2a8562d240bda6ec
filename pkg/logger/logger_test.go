package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitWritesJSONAndAudit(t *testing.T) {
	dir := t.TempDir()
	appLog := filepath.Join(dir, "app", "transferd.log")
	auditLog := filepath.Join(dir, "audit", "funding.log")

	err := Init(Config{
		Level:       "debug",
		OutputPaths: []string{appLog},
		Audit:       AuditConfig{Enabled: true, Path: auditLog},
	})
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	t.Cleanup(func() {
		_ = Sync()
		_ = Init(Config{})
	})

	Named("saga").Debug("state changed", "state", "PAYING")
	Audit().Info("funding finished", "run_id", "r-1")
	if err := Sync(); err != nil {
		t.Fatalf("sync: %v", err)
	}

	raw, err := os.ReadFile(appLog)
	if err != nil {
		t.Fatalf("read app log: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(raw))), &entry); err != nil {
		t.Fatalf("decode app log %q: %v", raw, err)
	}
	if entry["component"] != "saga" || entry["state"] != "PAYING" {
		t.Fatalf("unexpected app entry: %+v", entry)
	}

	audit, err := os.ReadFile(auditLog)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	if !strings.Contains(string(audit), `"run_id":"r-1"`) {
		t.Fatalf("audit entry missing: %s", audit)
	}
}

func TestAuditRequiresPath(t *testing.T) {
	if err := Init(Config{Audit: AuditConfig{Enabled: true}}); err == nil {
		t.Fatalf("expected error for empty audit path")
	}
}
