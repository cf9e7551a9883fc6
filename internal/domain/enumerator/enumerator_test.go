package enumerator

import (
	"errors"
	"testing"

	"github.com/mongodrift/mongodrift/internal/domain"
)

const sample = `[
  {
    "name": "Enumerations",
    "status": "Deprecated",
    "version": 0,
    "enumerators": {}
  },
  {
    "name": "Enumerations",
    "status": "Active",
    "version": 1,
    "enumerators": {
      "media_type": {
        "book": "A printed or digital book",
        "movie": "A feature film"
      },
      "status": {
        "draft": "Not yet published",
        "active": "Published and live",
        "archived": "No longer maintained"
      }
    }
  }
]`

func mustParse(t *testing.T, data string) *Registry {
	t.Helper()
	reg, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return reg
}

func TestParse_VersionLookup(t *testing.T) {
	reg := mustParse(t, sample)

	set, err := reg.Version(1)
	if err != nil {
		t.Fatalf("Version(1): %v", err)
	}
	if set.Status != StatusActive {
		t.Errorf("expected Active set, got %q", set.Status)
	}

	if _, err := reg.Version(7); !errors.Is(err, domain.ErrUnknownEnumeratorVersion) {
		t.Errorf("expected ErrUnknownEnumeratorVersion, got %v", err)
	}
}

func TestValueNames_AuthoredOrder(t *testing.T) {
	reg := mustParse(t, sample)
	set, _ := reg.Version(1)

	names, err := set.ValueNames("status")
	if err != nil {
		t.Fatalf("ValueNames: %v", err)
	}
	want := []string{"draft", "active", "archived"}
	if len(names) != len(want) {
		t.Fatalf("expected %d values, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("value[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestLookup_UnknownEnumerator(t *testing.T) {
	reg := mustParse(t, sample)
	set, _ := reg.Version(1)

	if _, err := set.Lookup("missing_enumerator"); !errors.Is(err, domain.ErrUnknownEnumerator) {
		t.Errorf("expected ErrUnknownEnumerator, got %v", err)
	}
	if set.Has("missing_enumerator") {
		t.Error("Has should be false for a missing enumerator")
	}
}

func TestParse_DuplicateVersion(t *testing.T) {
	dup := `[
  {"name": "A", "status": "Active", "version": 1, "enumerators": {}},
  {"name": "B", "status": "Active", "version": 1, "enumerators": {}}
]`
	if _, err := Parse([]byte(dup)); !errors.Is(err, domain.ErrDuplicateEnumeratorSet) {
		t.Errorf("expected ErrDuplicateEnumeratorSet, got %v", err)
	}
}

func TestParse_YAMLForm(t *testing.T) {
	yamlDoc := `
- name: Enumerations
  status: Active
  version: 2
  enumerators:
    card_type:
      book: A book
      movie: A movie
`
	reg := mustParse(t, yamlDoc)
	set, err := reg.Version(2)
	if err != nil {
		t.Fatalf("Version(2): %v", err)
	}
	values, err := set.Lookup("card_type")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if values[0].Description != "A book" {
		t.Errorf("unexpected description %q", values[0].Description)
	}
}
