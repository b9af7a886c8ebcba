package sources

import (
	"context"
	"log"
	"sort"

	"github.com/nyc-housing-linkage/internal/debug"
	"github.com/nyc-housing-linkage/internal/normalize"
	"github.com/nyc-housing-linkage/internal/opendata"
)

type condoRow struct {
	BaseBBL    string `json:"condo_base_bbl"`
	BillingBBL string `json:"condo_billing_bbl"`
}

// CondoResolver expands a BBL into the full set of parcels in its condo
// complex using the digital tax map. HPD often records the billing BBL
// (lot 75xx) while DOB permits are filed on the base BBL, so a permit
// lookup has to try every related parcel.
type CondoResolver struct {
	Client *opendata.Client
	Debug  bool
}

// RelatedParcels returns the base BBL plus every billing BBL for the
// condo complex bbl belongs to, in sorted order. A BBL with no condo
// relationship, and any lookup failure, yields an empty set.
func (r *CondoResolver) RelatedParcels(ctx context.Context, bbl string) []string {
	padded := normalize.Pad10(bbl)
	if padded == "" {
		return nil
	}

	related := make(map[string]bool)
	var baseBBL string

	// Billing side first: HPD's BBL is usually the billing parcel.
	rows, err := r.lookup(ctx, "condo_billing_bbl", padded, 1)
	if err != nil {
		log.Printf("  condo lookup failed for BBL %s: %s", padded, debug.Truncate(err.Error(), 50))
		return nil
	}
	if len(rows) > 0 {
		baseBBL = normalize.Pad10(rows[0].BaseBBL)
		related[padded] = true
	} else {
		rows, err = r.lookup(ctx, "condo_base_bbl", padded, 1)
		if err != nil {
			log.Printf("  condo lookup failed for BBL %s: %s", padded, debug.Truncate(err.Error(), 50))
			return nil
		}
		if len(rows) == 0 {
			// not a condo property
			return nil
		}
		baseBBL = padded
	}
	if baseBBL == "" {
		return nil
	}

	// All billing parcels for the base.
	rows, err = r.lookup(ctx, "condo_base_bbl", baseBBL, 1000)
	if err != nil {
		log.Printf("  condo lookup failed for base BBL %s: %s", baseBBL, debug.Truncate(err.Error(), 50))
		return nil
	}
	related[baseBBL] = true
	for _, row := range rows {
		if billing := normalize.Pad10(row.BillingBBL); billing != "" {
			related[billing] = true
		}
	}

	out := make([]string, 0, len(related))
	for bbl := range related {
		out = append(out, bbl)
	}
	sort.Strings(out)
	return out
}

func (r *CondoResolver) lookup(ctx context.Context, column, bbl string, limit int) ([]condoRow, error) {
	var rows []condoRow
	where := column + "='" + escapeQuotes(bbl) + "'"
	if err := r.Client.Query(ctx, r.Debug, DatasetCondoUnits, where, limit, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}
