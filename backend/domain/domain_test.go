package domain

import (
	"testing"

	"github.com/intentlabs/transformd/backend/fact"
	"github.com/intentlabs/transformd/backend/phase"
)

func TestDefaultCatalogDomainsAreValid(t *testing.T) {
	catalog := DefaultCatalog()

	for _, name := range catalog.Names() {
		d, ok := catalog.Get(name)
		if !ok {
			t.Fatalf("catalog lost domain %s", name)
		}
		if d.Registry() == nil {
			t.Fatalf("domain %s has no registry", name)
		}
		for _, p := range phase.Conversational() {
			reqs := d.Registry().Requirements(p)
			if len(reqs) == 0 {
				t.Errorf("domain %s declares nothing for %s", name, p)
			}
			for _, r := range reqs {
				if r.Template == "" {
					t.Errorf("%s/%s has no fallback template", name, r.Key)
				}
			}
		}
	}
}

func TestDetect(t *testing.T) {
	catalog := DefaultCatalog()

	cases := []struct {
		message string
		want    string
	}{
		{"I want to migrate React to Vue", "framework_migration"},
		{"convert our python codebase to golang", "language_conversion"},
		{"rewrite the service from java to rust", "language_conversion"},
		{"help me move off angular", "framework_migration"},
		{"hello there", "framework_migration"}, // no keywords: first domain wins
	}
	for _, tc := range cases {
		if got := catalog.Detect(tc.message).Name; got != tc.want {
			t.Errorf("Detect(%q) = %s, want %s", tc.message, got, tc.want)
		}
	}
}

func TestPositiveNumberPredicate(t *testing.T) {
	d := FrameworkMigration()
	catalog, err := NewCatalog(d)
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	reg := catalog.domains[0].Registry()

	store := fact.NewStore()
	store.Put("discover.team_size", fact.ScalarValue("zero-ish"), 0.9, phase.Discover)

	for _, r := range reg.Missing(phase.Discover, store) {
		if r.Key == "discover.team_size" {
			return
		}
	}
	t.Error("non-numeric team size satisfied its requirement")
}
