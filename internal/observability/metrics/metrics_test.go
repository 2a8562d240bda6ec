package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRunAndSubmission(t *testing.T) {
	before := testutil.ToFloat64(FundingRunsTotal.WithLabelValues("failure", "PAYMENT_FAILED"))
	ObserveRun(false, "PAYMENT_FAILED")
	if got := testutil.ToFloat64(FundingRunsTotal.WithLabelValues("failure", "PAYMENT_FAILED")); got != before+1 {
		t.Fatalf("expected failure counter to grow by one, got %v -> %v", before, got)
	}

	ObserveSubmission("create_account", "unknown")
	if got := testutil.ToFloat64(SubmissionsTotal.WithLabelValues("create_account", "unknown")); got < 1 {
		t.Fatalf("expected submission counter, got %v", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveStep("PAYING", 150*time.Millisecond)
	ObserveHTTPRequest("runs", "GET", 200, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, name := range []string{"transferd_funding_step_duration_seconds", "transferd_http_request_duration_seconds"} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("metric %s missing from exposition", name)
		}
	}
}
