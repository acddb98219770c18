// file: internal/metrics/metrics_test.go
// version: 2.0.0
// guid: 7a8b9c0d-1e2f-3a4b-5c6d-7e8f9a0b1c2d

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	Register()
	Register()
}

func TestScanLifecycle(t *testing.T) {
	before := testutil.ToFloat64(scansStarted)
	IncScanStarted()
	ObserveScanDuration(25 * time.Millisecond)
	IncScanCompleted()
	if got := testutil.ToFloat64(scansStarted); got != before+1 {
		t.Fatalf("scansStarted = %v, want %v", got, before+1)
	}
}

func TestMatchCounters(t *testing.T) {
	before := testutil.ToFloat64(matchLookups.WithLabelValues("hit"))
	IncMatchLookup("hit")
	IncMatchLookup("miss")
	IncMatchLookup("error")
	IncProviderRequest("Google Books", "ok")
	IncProviderRequest("Open Library", "error")
	if got := testutil.ToFloat64(matchLookups.WithLabelValues("hit")); got != before+1 {
		t.Fatalf("hit lookups = %v, want %v", got, before+1)
	}
}

func TestGauges(t *testing.T) {
	SetFiles(42)
	SetCollections(5)
	SetCacheEntries(100)
	if got := testutil.ToFloat64(filesGauge); got != 42 {
		t.Fatalf("filesGauge = %v, want 42", got)
	}
}
