package core

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateOfTruncates(t *testing.T) {
	d := DateOf(time.Date(2025, 6, 20, 23, 59, 0, 0, time.UTC))
	if d.Year() != 2025 || d.Month() != 6 || d.Day() != 20 {
		t.Errorf("DateOf produced %v", d)
	}
}

func TestDateJSONRoundTrip(t *testing.T) {
	type doc struct {
		When Date `json:"when"`
	}
	in := doc{When: NewDate(2025, 1, 31)}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"when":"2025-01-31"}` {
		t.Errorf("unexpected encoding: %s", b)
	}
	var out doc
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.When.Equal(in.When.Time) {
		t.Errorf("round trip mismatch: %v != %v", out.When, in.When)
	}
}

func TestDateJSONNull(t *testing.T) {
	type doc struct {
		When Date `json:"when"`
	}
	var out doc
	if err := json.Unmarshal([]byte(`{"when":null}`), &out); err != nil {
		t.Fatalf("unmarshal null: %v", err)
	}
	if !out.When.IsEmpty() {
		t.Error("null should decode to empty date")
	}
}

func TestParseDate(t *testing.T) {
	if _, err := ParseDate("2025-13-01"); err == nil {
		t.Error("expected error for month 13")
	}
	d, err := ParseDate("2025-02-28")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	if d.String() != "2025-02-28" {
		t.Errorf("String() = %q", d.String())
	}
}
