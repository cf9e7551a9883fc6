package version

import (
	"errors"
	"testing"

	"github.com/mongodrift/mongodrift/internal/domain"
)

func TestParse_RoundTrip(t *testing.T) {
	for _, s := range []string{"0.0.0.0", "1.0.0.1", "10.20.30.40", "2.999.999.999"} {
		v, err := Parse(s)
		if err != nil {
			t.Fatalf("Parse(%q): %v", s, err)
		}
		if v.String() != s {
			t.Errorf("Parse(%q).String() = %q", s, v.String())
		}
	}
}

func TestParse_LeadingZeros(t *testing.T) {
	v, err := Parse("01.002.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Equal(New(1, 2, 0, 1)) {
		t.Errorf("expected 1.2.0.1, got %s", v)
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := []string{
		"",
		"1.0.0",
		"1.0.0.0.0",
		"1.0.0.A",
		"1.0.0.-1",
		"1.0.0.+2",
		" 1.0.0.0",
		"1.0.0.0 ",
		"1..0.0",
		"1,0,0,0",
		"1.0.0.2147483648", // one past 2^31-1
	}
	for _, s := range cases {
		if _, err := Parse(s); !errors.Is(err, domain.ErrBadVersionString) {
			t.Errorf("Parse(%q): expected ErrBadVersionString, got %v", s, err)
		}
	}
}

func TestParse_MaxComponent(t *testing.T) {
	v, err := Parse("0.0.0.2147483647")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.EnumeratorVersion() != 2147483647 {
		t.Errorf("expected max enumerator component, got %d", v.EnumeratorVersion())
	}
}

func TestCompare_Lexicographic(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0.2", "1.0.0.1", 1},
		{"1.1.0.0", "1.0.99.99", 1},
		{"2.0.0.0", "1.999.999.999", 1},
		{"1.0.0.0", "1.0.0.0", 0},
		{"0.0.0.0", "0.0.0.1", -1},
	}
	for _, tc := range cases {
		a, b := MustParse(tc.a), MustParse(tc.b)
		if got := a.Compare(b); got != tc.want {
			t.Errorf("Compare(%s, %s) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestIsZero(t *testing.T) {
	if !Zero.IsZero() {
		t.Error("Zero.IsZero() = false")
	}
	if !MustParse("0.0.0.0").IsZero() {
		t.Error("0.0.0.0 should be zero")
	}
	if MustParse("0.0.0.1").IsZero() {
		t.Error("0.0.0.1 should not be zero")
	}
}

func TestSchemaVersion(t *testing.T) {
	v := MustParse("1.2.3.4")
	if v.SchemaVersion() != "1.2.3" {
		t.Errorf("SchemaVersion() = %q", v.SchemaVersion())
	}
	if v.EnumeratorVersion() != 4 {
		t.Errorf("EnumeratorVersion() = %d", v.EnumeratorVersion())
	}
}
