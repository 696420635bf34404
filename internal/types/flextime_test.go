package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFlexTime_RFC3339String(t *testing.T) {
	var ft FlexTime
	if err := json.Unmarshal([]byte(`"2026-02-03T12:30:00Z"`), &ft); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ft.Valid {
		t.Fatal("expected Valid=true")
	}
	want := time.Date(2026, 2, 3, 12, 30, 0, 0, time.UTC)
	if !ft.Time.Equal(want) {
		t.Errorf("got %v, want %v", ft.Time, want)
	}
}

func TestFlexTime_RFC3339WithOffsetNormalizedToUTC(t *testing.T) {
	var ft FlexTime
	if err := json.Unmarshal([]byte(`"2026-02-03T17:30:00+05:00"`), &ft); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 2, 3, 12, 30, 0, 0, time.UTC)
	if !ft.Time.Equal(want) {
		t.Errorf("got %v, want %v", ft.Time, want)
	}
	if ft.Time.Location() != time.UTC {
		t.Errorf("expected UTC location, got %v", ft.Time.Location())
	}
}

func TestFlexTime_EpochSeconds(t *testing.T) {
	var ft FlexTime
	if err := json.Unmarshal([]byte(`1769904000`), &ft); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ft.Valid {
		t.Fatal("expected Valid=true")
	}
	if got := ft.Time.Unix(); got != 1769904000 {
		t.Errorf("got unix %d, want 1769904000", got)
	}
}

func TestFlexTime_EpochMilliseconds(t *testing.T) {
	var ft FlexTime
	if err := json.Unmarshal([]byte(`1769904000123`), &ft); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ft.Valid {
		t.Fatal("expected Valid=true")
	}
	if got := ft.Time.Unix(); got != 1769904000 {
		t.Errorf("got unix %d, want 1769904000", got)
	}
}

func TestFlexTime_ToleratesGarbage(t *testing.T) {
	cases := map[string]string{
		"null":          `null`,
		"bad string":    `"next tuesday"`,
		"empty string":  `""`,
		"boolean":       `true`,
		"object":        `{"seconds":1769904000}`,
		"array":         `[1769904000]`,
		"broken quotes": `"2026-02-03`,
	}

	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			ft := FlexTime{Time: time.Now(), Valid: true}
			if err := ft.UnmarshalJSON([]byte(input)); err != nil {
				t.Fatalf("unmarshal must be total, got error: %v", err)
			}
			if ft.Valid {
				t.Errorf("input %q should leave the field unset", input)
			}
			if ft.Ptr() != nil {
				t.Error("Ptr() should be nil for an unset field")
			}
		})
	}
}

func TestFlexTime_MarshalRoundTrip(t *testing.T) {
	ft := FlexTime{Time: time.Date(2026, 2, 3, 12, 30, 0, 0, time.UTC), Valid: true}
	out, err := json.Marshal(ft)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := string(out), `"2026-02-03T12:30:00Z"`; got != want {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestFlexTime_MarshalNullWhenUnset(t *testing.T) {
	out, err := json.Marshal(FlexTime{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "null" {
		t.Errorf("got %s, want null", out)
	}
}

func TestFlexTime_Ptr(t *testing.T) {
	loc := time.FixedZone("X", 5*3600)
	ft := FlexTime{Time: time.Date(2026, 2, 3, 17, 30, 0, 0, loc), Valid: true}
	p := ft.Ptr()
	if p == nil {
		t.Fatal("expected non-nil pointer")
	}
	if p.Location() != time.UTC {
		t.Errorf("expected UTC, got %v", p.Location())
	}
	if !p.Equal(ft.Time) {
		t.Error("Ptr() changed the instant")
	}
}
