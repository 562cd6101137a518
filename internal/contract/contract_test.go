package contract

import (
	"errors"
	"testing"
	"time"
)

func TestParse_Valid(t *testing.T) {
	c, err := Parse("CON.F.US.EP.H25")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Region != "US" {
		t.Errorf("expected region=US, got %s", c.Region)
	}
	if c.Root != "EP" {
		t.Errorf("expected root=EP, got %s", c.Root)
	}
	if c.Month != time.March || c.Year != 2025 {
		t.Errorf("expected March 2025, got %s %d", c.Month, c.Year)
	}
	if got := c.SymbolID(); got != "F.US.EP" {
		t.Errorf("expected symbol=F.US.EP, got %s", got)
	}
	if got := c.Code(); got != "H25" {
		t.Errorf("expected code=H25, got %s", got)
	}
	expected := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	if !c.Expiry().Equal(expected) {
		t.Errorf("expected expiry=%v, got %v", expected, c.Expiry())
	}
}

func TestParse_NumericRoot(t *testing.T) {
	c, err := Parse("CON.F.US.6E.Z26")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Root != "6E" || c.Month != time.December || c.Year != 2026 {
		t.Errorf("unexpected parse: %+v", c)
	}
}

func TestParse_InvalidFormat(t *testing.T) {
	tests := []string{
		"",
		"INVALID",
		"CON.F.US.EP",
		"CON.F.US.EP.H",
		"CON.F.US.EP.H2025",
		"CON.F.US.EP.A25", // not a month code
		"CON.O.US.EP.H25", // options are not supported
		"con.f.us.ep.h25",
		"CON.F.USA.EP.H25",
	}
	for _, id := range tests {
		_, err := Parse(id)
		if !errors.Is(err, ErrInvalidID) {
			t.Errorf("expected ErrInvalidID for %q, got %v", id, err)
		}
	}
}

func TestFormat_RoundTrip(t *testing.T) {
	for m := time.January; m <= time.December; m++ {
		id, err := Format("F.US.CL", m, 2025)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", m, err)
		}
		c, err := Parse(id)
		if err != nil {
			t.Fatalf("formatted id %s does not parse: %v", id, err)
		}
		if c.Month != m || c.Year != 2025 || c.SymbolID() != "F.US.CL" {
			t.Errorf("round trip of %s gave %+v", id, c)
		}
	}
}

func TestFormat_Invalid(t *testing.T) {
	if _, err := Format("F.US.EP", 13, 2025); !errors.Is(err, ErrInvalidMonth) {
		t.Errorf("expected ErrInvalidMonth, got %v", err)
	}
	if _, err := Format("US.EP", time.March, 2025); !errors.Is(err, ErrInvalidID) {
		t.Errorf("expected ErrInvalidID for a malformed symbol, got %v", err)
	}
}

func TestMonthCode(t *testing.T) {
	tests := map[time.Month]byte{
		time.January:   'F',
		time.March:     'H',
		time.June:      'M',
		time.September: 'U',
		time.December:  'Z',
	}
	for m, want := range tests {
		if got := MonthCode(m); got != want {
			t.Errorf("MonthCode(%s) = %c, want %c", m, got, want)
		}
	}
	if got := MonthCode(0); got != 0 {
		t.Errorf("MonthCode(0) = %c, want 0", got)
	}
}

func TestDisplayName(t *testing.T) {
	c, err := Parse("CON.F.US.GC.J25")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := DisplayName(c); got != "GC J25" {
		t.Errorf("expected GC J25, got %s", got)
	}
}
