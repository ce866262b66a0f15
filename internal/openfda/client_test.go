package openfda_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"

	"github.com/pharmassist/pharmassist/internal/openfda"
)

const ibuprofenLabel = `{
	"results": [{
		"openfda": {
			"substance_name": ["IBUPROFEN"],
			"generic_name": ["IBUPROFEN"],
			"brand_name": ["ADVIL"],
			"product_type": ["HUMAN OTC DRUG"],
			"manufacturer_name": ["Test Pharma Inc"]
		},
		"active_ingredient": ["IBUPROFEN 400 mg"],
		"dosage_and_administration": ["Take 1 tablet every 8 hours"],
		"adverse_reactions": ["May cause nausea, headache, or dizziness in some patients"],
		"contraindications": ["Do not use during pregnancy or with known allergy"],
		"indications_and_usage": ["For temporary relief of minor aches and pains"],
		"how_supplied": ["Bottles of 100 tablets"]
	}]
}`

func newClient(t *testing.T, handler http.HandlerFunc) (*openfda.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return openfda.New(srv.URL, zap.NewNop()), srv
}

func TestResolveMapsLabelFields(t *testing.T) {
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ibuprofenLabel))
	})

	record, call := client.Resolve(context.Background(), "Ibuprofen")
	if record.IsError() {
		t.Fatalf("unexpected error record: %s", record.Err)
	}
	if !call.Success || call.Cached {
		t.Fatalf("call trace = %+v, want success and not cached", call)
	}
	if record.ActiveIngredient != "IBUPROFEN" {
		t.Errorf("active ingredient = %q", record.ActiveIngredient)
	}
	if record.StrengthMG != 400 {
		t.Errorf("strength = %d, want 400", record.StrengthMG)
	}
	if record.RequiresRx {
		t.Errorf("OTC product marked as prescription")
	}
	if record.Manufacturer != "Test Pharma Inc" {
		t.Errorf("manufacturer = %q", record.Manufacturer)
	}
	if want := []string{"nausea", "headache", "dizziness"}; !reflect.DeepEqual(record.CommonSideEffects, want) {
		t.Errorf("side effects = %v, want %v", record.CommonSideEffects, want)
	}
	if want := []string{"pregnancy", "allergy"}; !reflect.DeepEqual(record.Contraindications, want) {
		t.Errorf("contraindications = %v, want %v", record.Contraindications, want)
	}
}

func TestResolveCachesSuccess(t *testing.T) {
	var hits int64
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Write([]byte(ibuprofenLabel))
	})

	first, firstCall := client.Resolve(context.Background(), "Ibuprofen")
	second, secondCall := client.Resolve(context.Background(), "ibuprofen")

	if n := atomic.LoadInt64(&hits); n != 1 {
		t.Fatalf("upstream hit %d times, want 1", n)
	}
	if !secondCall.Cached || secondCall.LatencyMS != 0 {
		t.Fatalf("second call trace = %+v, want cached with zero latency", secondCall)
	}
	if firstCall.Cached {
		t.Fatalf("first call unexpectedly cached")
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("cached record differs: %+v vs %+v", first, second)
	}
	if !strings.Contains(secondCall.URL, "(cached)") {
		t.Errorf("cached trace URL = %q", secondCall.URL)
	}
}

func TestResolveUnknownIsIdempotent(t *testing.T) {
	var hits int64
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Write([]byte(`{"results": []}`))
	})

	first, firstCall := client.Resolve(context.Background(), "Zyloxin")
	second, secondCall := client.Resolve(context.Background(), "Zyloxin")

	if !first.IsError() || !second.IsError() {
		t.Fatalf("expected error records, got %+v / %+v", first, second)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("error records differ: %+v vs %+v", first, second)
	}
	if firstCall.Success || secondCall.Success || secondCall.Cached {
		t.Fatalf("error lookups must not succeed or hit the cache: %+v / %+v", firstCall, secondCall)
	}
	// error records are never cached, so both lookups reach upstream
	if n := atomic.LoadInt64(&hits); n != 2 {
		t.Fatalf("upstream hit %d times, want 2", n)
	}
}

func TestResolveServerError(t *testing.T) {
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	record, call := client.Resolve(context.Background(), "Aspirin")
	if !record.IsError() {
		t.Fatalf("expected error record, got %+v", record)
	}
	if call.Success || call.Status != http.StatusInternalServerError {
		t.Fatalf("call trace = %+v", call)
	}
}

func TestResolveVocabularyPlaceholder(t *testing.T) {
	label := `{
		"results": [{
			"openfda": {"generic_name": ["OBSCURINE"], "product_type": ["HUMAN PRESCRIPTION DRUG"]},
			"adverse_reactions": ["Rare paradoxical reactions have been reported"],
			"contraindications": ["None known"]
		}]
	}`
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(label))
	})

	record, _ := client.Resolve(context.Background(), "Obscurine")
	want := []string{"See package insert for complete list"}
	if !reflect.DeepEqual(record.CommonSideEffects, want) {
		t.Errorf("side effects = %v, want placeholder", record.CommonSideEffects)
	}
	if !reflect.DeepEqual(record.Contraindications, want) {
		t.Errorf("contraindications = %v, want placeholder", record.Contraindications)
	}
	if !record.RequiresRx {
		t.Errorf("prescription product not flagged")
	}
}

func TestResolveStrengthFromDosageText(t *testing.T) {
	label := `{
		"results": [{
			"openfda": {"generic_name": ["NAPROXEN"]},
			"active_ingredient": ["NAPROXEN SODIUM"],
			"dosage_and_administration": ["Take one 220 mg tablet every 12 hours"]
		}]
	}`
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(label))
	})

	record, _ := client.Resolve(context.Background(), "Naproxen")
	if record.StrengthMG != 220 {
		t.Fatalf("strength = %d, want 220 from dosage text", record.StrengthMG)
	}
}

func TestResolveTextListTolerance(t *testing.T) {
	// openFDA sends free-text fields as either a string or an array
	label := `{
		"results": [{
			"openfda": {"generic_name": ["LORATADINE"]},
			"active_ingredient": "LORATADINE 10 mg",
			"warnings": "Do not exceed recommended dose"
		}]
	}`
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(label))
	})

	record, call := client.Resolve(context.Background(), "Loratadine")
	if record.IsError() {
		t.Fatalf("string-valued fields rejected: %s", record.Err)
	}
	if !call.Success {
		t.Fatalf("call trace = %+v", call)
	}
	if record.StrengthMG != 10 {
		t.Errorf("strength = %d, want 10", record.StrengthMG)
	}
	if len(record.Warnings) != 1 || record.Warnings[0] != "Do not exceed recommended dose" {
		t.Errorf("warnings = %v", record.Warnings)
	}
}

func TestResolveWithStrengthMismatch(t *testing.T) {
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ibuprofenLabel))
	})

	record, _ := client.ResolveWithStrength(context.Background(), "Ibuprofen", 200)
	if !record.IsError() {
		t.Fatalf("expected mismatch error record, got %+v", record)
	}
	if !strings.Contains(record.Err, "strength mismatch") {
		t.Errorf("error = %q", record.Err)
	}

	record, _ = client.ResolveWithStrength(context.Background(), "Ibuprofen", 400)
	if record.IsError() {
		t.Fatalf("matching strength rejected: %s", record.Err)
	}
}

func TestResolveQueryShape(t *testing.T) {
	var gotQuery string
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(ibuprofenLabel))
	})

	client.Resolve(context.Background(), "Tylenol PM")
	if !strings.Contains(gotQuery, "brand_name") || !strings.Contains(gotQuery, "generic_name") {
		t.Fatalf("query = %q, want brand and generic clauses", gotQuery)
	}
	if !strings.Contains(gotQuery, "Tylenol+PM") {
		t.Fatalf("query = %q, name not escaped", gotQuery)
	}
	if !strings.Contains(gotQuery, "limit=1") {
		t.Fatalf("query = %q, missing limit", gotQuery)
	}
}

func TestFallbackTable(t *testing.T) {
	for _, name := range []string{"ibuprofen", "Ibuprofen", "IBUPROFEN", "Aspirin", "loratadine"} {
		record, ok := openfda.Fallback(name)
		if !ok {
			t.Fatalf("Fallback(%q) missing", name)
		}
		if record.IsError() {
			t.Fatalf("Fallback(%q) returned error record", name)
		}
		if record.ActiveIngredient == "" || record.StrengthMG == 0 {
			t.Fatalf("Fallback(%q) incomplete: %+v", name, record)
		}
	}
	if _, ok := openfda.Fallback("Zyloxin"); ok {
		t.Fatalf("Fallback returned data for unknown medication")
	}
}

func TestPrescriptionView(t *testing.T) {
	client, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ibuprofenLabel))
	})

	info, err := client.Prescription(context.Background(), "Ibuprofen")
	if err != nil {
		t.Fatalf("Prescription: %v", err)
	}
	if info.RequiresRx || info.PrescriptionType != "over-the-counter" {
		t.Fatalf("info = %+v", info)
	}

	// unknown name falls through to the static table, then errors out
	failing, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": []}`))
	})
	if _, err := failing.Prescription(context.Background(), "Zyloxin"); err == nil {
		t.Fatalf("expected error for unresolvable medication")
	}
	info, err = failing.Prescription(context.Background(), "Aspirin")
	if err != nil {
		t.Fatalf("static table not consulted: %v", err)
	}
	var buf strings.Builder
	json.NewEncoder(&buf).Encode(info)
	if !strings.Contains(buf.String(), "over-the-counter") {
		t.Fatalf("aspirin prescription view = %s", buf.String())
	}
}
