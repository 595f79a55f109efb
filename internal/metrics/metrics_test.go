package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordResolution(t *testing.T) {
	before := testutil.ToFloat64(resolutionsTotal.WithLabelValues("native-binary", "placeholder"))
	RecordResolution("native-binary", "placeholder", 5*time.Millisecond)
	after := testutil.ToFloat64(resolutionsTotal.WithLabelValues("native-binary", "placeholder"))
	if after != before+1 {
		t.Fatalf("expected counter to increase by one, got %v -> %v", before, after)
	}
}

func TestRecordUpstreamFetch(t *testing.T) {
	bytesBefore := testutil.ToFloat64(upstreamBytesTotal)
	failBefore := testutil.ToFloat64(upstreamFetchesTotal.WithLabelValues("failure"))

	RecordUpstreamFetch(128, true)
	RecordUpstreamFetch(0, false)

	if got := testutil.ToFloat64(upstreamBytesTotal); got != bytesBefore+128 {
		t.Fatalf("unexpected upstream bytes %v", got)
	}
	if got := testutil.ToFloat64(upstreamFetchesTotal.WithLabelValues("failure")); got != failBefore+1 {
		t.Fatalf("unexpected failure count %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	SetListingEntries("zendariom", 3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `asset_hub_listing_entries{instance="zendariom"} 3`) {
		t.Fatalf("listing gauge missing from exposition:\n%s", body)
	}
}
