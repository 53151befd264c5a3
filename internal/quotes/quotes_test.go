package quotes

import (
	"encoding/json"
	"testing"

	"neo-dashboard/internal/models"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}
	return v
}

func TestBuildRequest(t *testing.T) {
	refs := []models.InstrumentRef{
		{Token: "11536", Segment: models.NSECash},
		{Token: "53179", Segment: models.NSEFO},
		// Duplicates pass through untouched: dedup is the caller's job.
		{Token: "11536", Segment: models.NSECash},
	}

	payload := BuildRequest(refs)
	if len(payload) != 3 {
		t.Fatalf("payload length = %d, want 3", len(payload))
	}
	if payload[0]["instrument_token"] != "11536" || payload[0]["exchange_segment"] != "nse_cm" {
		t.Errorf("unexpected first pair: %v", payload[0])
	}
	if payload[1]["exchange_segment"] != "nse_fo" {
		t.Errorf("unexpected second pair: %v", payload[1])
	}
}

func TestNormalizeBareList(t *testing.T) {
	raw := decode(t, `[
		{"instrument_token": "11536", "last_price": 3450.5, "net_change": 12.5},
		{"instrument_token": "2885", "ltp": "2950.00"}
	]`)

	got := Normalize(raw)
	if len(got) != 2 {
		t.Fatalf("normalized %d records, want 2", len(got))
	}
	if got[0].Token != "11536" || *got[0].LastPrice != 3450.5 || *got[0].Change != 12.5 {
		t.Errorf("first record mismatch: %+v", got[0])
	}
	if got[1].Token != "2885" || *got[1].LastPrice != 2950.0 {
		t.Errorf("second record mismatch: %+v", got[1])
	}
}

func TestNormalizeDataWrapper(t *testing.T) {
	raw := decode(t, `{"message": "ok", "data": [{"tk": "404", "lp": 101.25}]}`)

	got := Normalize(raw)
	if len(got) != 1 {
		t.Fatalf("normalized %d records, want 1", len(got))
	}
	if got[0].Token != "404" || *got[0].LastPrice != 101.25 {
		t.Errorf("record mismatch: %+v", got[0])
	}
}

func TestNormalizeSingleQuoteWrapper(t *testing.T) {
	raw := decode(t, `{"exchange_token": "777", "last_traded_price": 55.5, "pch": -0.4}`)

	got := Normalize(raw)
	if len(got) != 1 {
		t.Fatalf("normalized %d records, want 1", len(got))
	}
	if got[0].Token != "777" || *got[0].LastPrice != 55.5 || *got[0].PercentChange != -0.4 {
		t.Errorf("record mismatch: %+v", got[0])
	}
}

func TestNormalizeAliasPriority(t *testing.T) {
	// last_price beats ltp when both are present.
	raw := decode(t, `[{"token": "1", "last_price": 100, "ltp": 999}]`)

	got := Normalize(raw)
	if *got[0].LastPrice != 100 {
		t.Errorf("LastPrice = %v, want 100 (last_price has priority over ltp)", *got[0].LastPrice)
	}
}

func TestNormalizeAbsentIsUnsetNotZero(t *testing.T) {
	raw := decode(t, `[{"instrument_token": "9", "last_price": 0}]`)

	got := Normalize(raw)
	q := got[0]
	if q.LastPrice == nil || *q.LastPrice != 0 {
		t.Error("present zero last price should be set to 0")
	}
	if q.Change != nil || q.PercentChange != nil || q.Open != nil {
		t.Error("absent fields must stay nil, not default to zero")
	}
}

func TestNormalizeFlattensOHLC(t *testing.T) {
	raw := decode(t, `[{
		"instrument_token": "12",
		"open": 101,
		"ohlc": {"open": 999, "high": 110, "low": 95, "close": 100}
	}]`)

	got := Normalize(raw)
	q := got[0]
	if *q.Open != 101 {
		t.Errorf("top-level open must win over nested ohlc; got %v", *q.Open)
	}
	if *q.High != 110 || *q.Low != 95 || *q.Close != 100 {
		t.Errorf("nested ohlc not flattened: %+v", q)
	}
}

func TestNormalizeDropsUnidentifiableRecords(t *testing.T) {
	raw := decode(t, `[{"last_price": 10}, "garbage", {"tk": "5", "lp": 1}]`)

	got := Normalize(raw)
	if len(got) != 1 || got[0].Token != "5" {
		t.Errorf("expected only the identifiable record, got %+v", got)
	}
}

func TestNormalizeNumericTokens(t *testing.T) {
	// Push messages deliver tokens as numbers; they normalize to the
	// same string form used by the watchlist index.
	raw := decode(t, `[{"tk": 11536, "lp": 3450.5}]`)

	got := Normalize(raw)
	if len(got) != 1 || got[0].Token != "11536" {
		t.Fatalf("numeric token not stringified: %+v", got)
	}
}
