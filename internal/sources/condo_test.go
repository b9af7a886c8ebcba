package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nyc-housing-linkage/internal/opendata"
)

// condoHandler serves a fixed billing↔base mapping the way the tax map
// dataset does.
func condoHandler(baseByBilling map[string]string) http.HandlerFunc {
	billingsByBase := make(map[string][]string)
	for billing, base := range baseByBilling {
		billingsByBase[base] = append(billingsByBase[base], billing)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		// where looks like: condo_billing_bbl='3024727504'
		where := r.URL.Query().Get("$where")
		parts := strings.SplitN(where, "='", 2)
		if len(parts) != 2 {
			w.Write([]byte(`[]`))
			return
		}
		col := parts[0]
		val := strings.TrimSuffix(parts[1], "'")

		switch col {
		case "condo_billing_bbl":
			if base, ok := baseByBilling[val]; ok {
				fmt.Fprintf(w, `[{"condo_base_bbl":"%s","condo_billing_bbl":"%s"}]`, base, val)
				return
			}
		case "condo_base_bbl":
			if billings, ok := billingsByBase[val]; ok {
				out := "["
				for i, b := range billings {
					if i > 0 {
						out += ","
					}
					out += fmt.Sprintf(`{"condo_base_bbl":"%s","condo_billing_bbl":"%s"}`, val, b)
				}
				w.Write([]byte(out + "]"))
				return
			}
		}
		w.Write([]byte(`[]`))
	}
}

func newTestResolver(t *testing.T, handler http.HandlerFunc) *CondoResolver {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &CondoResolver{Client: opendata.NewClient(opendata.Config{BaseURL: srv.URL})}
}

func TestRelatedParcelsFromBillingBBL(t *testing.T) {
	r := newTestResolver(t, condoHandler(map[string]string{
		"3024727504": "3024720070",
		"3024727505": "3024720070",
	}))

	got := r.RelatedParcels(context.Background(), "3024727504")

	want := []string{"3024720070", "3024727504", "3024727505"}
	if len(got) != len(want) {
		t.Fatalf("RelatedParcels = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("parcel[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRelatedParcelsFromBaseBBL(t *testing.T) {
	r := newTestResolver(t, condoHandler(map[string]string{
		"2024417501": "2024410001",
	}))

	got := r.RelatedParcels(context.Background(), "2024410001")

	want := []string{"2024410001", "2024417501"}
	if len(got) != len(want) {
		t.Fatalf("RelatedParcels = %v, want %v", got, want)
	}
}

func TestRelatedParcelsNotACondo(t *testing.T) {
	r := newTestResolver(t, condoHandler(nil))
	if got := r.RelatedParcels(context.Background(), "1000150001"); len(got) != 0 {
		t.Errorf("RelatedParcels = %v, want empty for non-condo parcel", got)
	}
}

func TestRelatedParcelsLookupFailure(t *testing.T) {
	r := newTestResolver(t, func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "gone", http.StatusBadGateway)
	})
	if got := r.RelatedParcels(context.Background(), "3024727504"); len(got) != 0 {
		t.Errorf("RelatedParcels = %v, want empty on lookup failure", got)
	}
}

func TestRelatedParcelsUnparseableBBL(t *testing.T) {
	r := newTestResolver(t, condoHandler(nil))
	if got := r.RelatedParcels(context.Background(), "not-a-bbl"); got != nil {
		t.Errorf("RelatedParcels = %v, want nil", got)
	}
}
