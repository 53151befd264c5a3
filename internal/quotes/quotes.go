// Package quotes builds batched quote requests and normalizes the
// broker's shape-variable quote responses into canonical records.
package quotes

import (
	"neo-dashboard/internal/fields"
	"neo-dashboard/internal/models"
)

// Alias tables for the logical quote attributes. Order is priority:
// first present wins.
var (
	aliasToken  = fields.Alias{"instrument_token", "exchange_token", "tk", "token"}
	aliasSymbol = fields.Alias{"trading_symbol", "trdSym", "symbol", "display_symbol"}
	aliasLast   = fields.Alias{"last_price", "ltp", "last_traded_price", "lp"}
	aliasChange = fields.Alias{"change", "net_change", "absolute_change", "ch"}
	aliasPct    = fields.Alias{"net_change_percentage", "pch", "percent_change", "pc", "per_change"}
	aliasOpen   = fields.Alias{"open", "o", "open_price_day"}
	aliasHigh   = fields.Alias{"high", "h", "high_price_day"}
	aliasLow    = fields.Alias{"low", "l", "low_price_day"}
	aliasClose  = fields.Alias{"close", "c", "prev_close_price", "close_price"}
)

// BuildRequest builds the quote-request payload for a set of
// (token, segment) pairs. No deduplication is performed: callers are
// responsible for not requesting the same pair twice in one batch.
func BuildRequest(refs []models.InstrumentRef) []map[string]string {
	payload := make([]map[string]string, 0, len(refs))
	for _, ref := range refs {
		payload = append(payload, map[string]string{
			"instrument_token": ref.Token,
			"exchange_segment": string(ref.Segment),
		})
	}
	return payload
}

// Normalize converts a raw quote response into an ordered list of
// canonical quote records. Tolerated shapes: a bare list, a wrapper
// object with a "data" list, or a wrapper object that is itself a
// single quote (detected by the presence of an instrument-identifying
// field). Records without any recognizable token key are dropped.
func Normalize(raw any) []models.Quote {
	records := extractRecords(raw)
	out := make([]models.Quote, 0, len(records))
	for _, rec := range records {
		q, ok := normalizeOne(rec)
		if !ok {
			continue
		}
		out = append(out, q)
	}
	return out
}

// extractRecords unwraps the response envelope into a flat record list.
func extractRecords(raw any) []map[string]any {
	switch v := raw.(type) {
	case []map[string]any:
		return v
	case []any:
		var recs []map[string]any
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				recs = append(recs, m)
			}
		}
		return recs
	case map[string]any:
		if data, ok := v["data"]; ok {
			switch d := data.(type) {
			case []any:
				return extractRecords(d)
			case map[string]any:
				return []map[string]any{d}
			}
		}
		// A wrapper that is itself a single quote.
		if _, ok := aliasToken.Lookup(v); ok {
			return []map[string]any{v}
		}
		return nil
	default:
		return nil
	}
}

func normalizeOne(rec map[string]any) (models.Quote, bool) {
	token, ok := aliasToken.String(rec)
	if !ok || token == "" {
		return models.Quote{}, false
	}

	flattenOHLC(rec)

	q := models.Quote{Token: token}
	q.Symbol, _ = aliasSymbol.String(rec)
	q.LastPrice = floatField(aliasLast, rec)
	q.Change = floatField(aliasChange, rec)
	q.PercentChange = floatField(aliasPct, rec)
	q.Open = floatField(aliasOpen, rec)
	q.High = floatField(aliasHigh, rec)
	q.Low = floatField(aliasLow, rec)
	q.Close = floatField(aliasClose, rec)
	return q, true
}

// flattenOHLC merges a nested "ohlc" object into the record without
// overwriting top-level values that are already present.
func flattenOHLC(rec map[string]any) {
	ohlc, ok := rec["ohlc"].(map[string]any)
	if !ok {
		return
	}
	for _, key := range []string{"open", "high", "low", "close"} {
		if _, exists := rec[key]; !exists {
			if v, ok := ohlc[key]; ok {
				rec[key] = v
			}
		}
	}
}

// floatField resolves an alias to an optional float. Absent or
// malformed stays nil so a later merge cannot clobber known values.
func floatField(alias fields.Alias, rec map[string]any) *float64 {
	if f, ok := alias.Float(rec); ok {
		return &f
	}
	return nil
}
