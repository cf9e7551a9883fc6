// Package validate implements the pre-run validation pass: it dry-runs the
// whole load and resolve pipeline and returns every structural error it
// finds, without touching the database.
package validate

import (
	"fmt"

	"github.com/mongodrift/mongodrift/internal/domain"
	"github.com/mongodrift/mongodrift/internal/domain/collection"
	"github.com/mongodrift/mongodrift/internal/domain/enumerator"
	"github.com/mongodrift/mongodrift/internal/domain/version"
	"github.com/mongodrift/mongodrift/internal/repository/catalog"
	"github.com/mongodrift/mongodrift/internal/usecase/render"
)

// Service runs the validation pass over a loaded catalog.
type Service struct {
	catalog *catalog.Catalog
	render  *render.Service
}

// New creates a validation service.
func New(c *catalog.Catalog, r *render.Service) *Service {
	return &Service{catalog: c, render: r}
}

// Run returns every defect in the input tree. The pass is complete: an
// empty result guarantees that a dry render over every declared
// (collection, version) pair succeeds. Duplicate findings (the same defect
// reached through several versions) are reported once.
func (s *Service) Run() []domain.ValidationError {
	var errs []domain.ValidationError
	errs = append(errs, s.catalog.Errors...)

	for _, cfg := range s.catalog.Collections {
		errs = append(errs, s.validateCollection(cfg.FileName, cfg)...)
	}

	return dedupe(errs)
}

func (s *Service) validateCollection(path string, cfg *collection.Config) []domain.ValidationError {
	var errs []domain.ValidationError
	fail := func(kind, format string, args ...any) {
		errs = append(errs, domain.ValidationError{Path: path, Kind: kind, Message: fmt.Sprintf(format, args...)})
	}

	if !cfg.ValidName() {
		fail(domain.KindInvalidCollection, "collection name %q is not a valid slug", cfg.Name)
	}
	if len(cfg.Versions) == 0 {
		fail(domain.KindInvalidCollection, "collection declares no versions")
		return errs
	}

	var prev version.Number
	var hasPrev bool
	for _, spec := range cfg.Versions {
		v, err := version.Parse(spec.Version)
		if err != nil {
			fail(domain.KindBadVersionString, "version %q: %v", spec.Version, err)
			continue
		}
		if hasPrev {
			switch {
			case v.Equal(prev):
				fail(domain.KindDuplicateVersion, "version %s is declared twice", v)
			case v.Less(prev):
				fail(domain.KindVersionOutOfOrder, "version %s follows %s", v, prev)
			}
		}
		prev, hasPrev = v, true

		errs = append(errs, s.validateVersion(path, cfg.Name, spec, v)...)
	}
	return errs
}

func (s *Service) validateVersion(path, name string, spec collection.VersionSpec, v version.Number) []domain.ValidationError {
	var errs []domain.ValidationError
	fail := func(kind, format string, args ...any) {
		errs = append(errs, domain.ValidationError{Path: path, Kind: kind, Message: fmt.Sprintf(format, args...)})
	}

	if s.catalog.Enumerators != nil {
		set, err := s.catalog.Enumerators.Version(v.EnumeratorVersion())
		if err != nil {
			fail(domain.KindUnknownEnumVersion, "version %s: no enumerator set with version %d", v, v.EnumeratorVersion())
		} else if set.Status != enumerator.StatusActive {
			fail(domain.KindUnknownEnumVersion, "version %s: enumerator set %d is %s, not Active", v, v.EnumeratorVersion(), set.Status)
		}
	}

	if spec.TestData != "" {
		if _, ok := s.catalog.TestData[spec.TestData]; !ok {
			fail(domain.KindUnknownRef, "version %s: test data file %q is missing", v, spec.TestData)
		}
	}

	errs = append(errs, s.render.DryRun(name, spec.Version)...)
	return errs
}

func dedupe(errs []domain.ValidationError) []domain.ValidationError {
	seen := make(map[domain.ValidationError]bool, len(errs))
	out := errs[:0]
	for _, e := range errs {
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	return out
}
