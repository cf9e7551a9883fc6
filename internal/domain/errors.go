package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrBadVersionString signals an unparsable four-part version string.
	ErrBadVersionString = errors.New("bad version string")
	// ErrUnknownType signals a schema type that is neither built in nor in the type dictionary.
	ErrUnknownType = errors.New("unknown type")
	// ErrCircularTypeReference signals a custom type that resolves back to itself.
	ErrCircularTypeReference = errors.New("circular type reference")
	// ErrUnknownEnumerator signals an enumerator name absent from the selected set.
	ErrUnknownEnumerator = errors.New("unknown enumerator")
	// ErrUnknownEnumeratorVersion signals an enumerator version with no matching set.
	ErrUnknownEnumeratorVersion = errors.New("unknown enumerator version")
	// ErrDuplicateEnumeratorSet signals two enumerator sets sharing a version.
	ErrDuplicateEnumeratorSet = errors.New("duplicate enumerator set")
	// ErrUnknownRef signals a $ref naming a file that is not in the dictionary tree.
	ErrUnknownRef = errors.New("unknown $ref")
	// ErrCircularReference signals a $ref chain that revisits a file.
	ErrCircularReference = errors.New("circular $ref")

	// ErrNotFound signals a missing collection or version.
	ErrNotFound = errors.New("not found")
	// ErrIndexConflict signals an existing index with the same name but a different definition.
	ErrIndexConflict = errors.New("index conflict")
	// ErrIndexInvalid signals a malformed index specification.
	ErrIndexInvalid = errors.New("invalid index")
	// ErrMigrationFailed signals a failed aggregation pipeline.
	ErrMigrationFailed = errors.New("migration failed")
	// ErrValidatorRejected signals that the database refused the rendered validator.
	ErrValidatorRejected = errors.New("validator rejected")
	// ErrDatabaseUnavailable signals a transport-level database failure. Retriable.
	ErrDatabaseUnavailable = errors.New("database unavailable")
	// ErrValidationFailed signals that the pre-run validation pass produced errors.
	ErrValidationFailed = errors.New("validation failed")
)

// Validation error kinds reported by the pre-run pass.
const (
	KindBadVersionString    = "BadVersionString"
	KindVersionOutOfOrder   = "VersionOutOfOrder"
	KindDuplicateVersion    = "DuplicateVersion"
	KindUnknownType         = "UnknownType"
	KindCircularTypeRef     = "CircularTypeReference"
	KindMissingTypeField    = "MissingTypeField"
	KindMissingDescription  = "MissingDescription"
	KindUnknownEnumerator   = "UnknownEnumerator"
	KindUnknownEnumVersion  = "UnknownEnumeratorVersion"
	KindUnknownRef          = "UnknownRef"
	KindCircularReference   = "CircularReference"
	KindMalformedFile       = "MalformedFile"
	KindUnsupportedFileKind = "UnsupportedFileKind"
	KindInvalidCollection   = "InvalidCollection"
)

// ValidationError is one structural defect found by the pre-run validation
// pass. Path locates the defect in the input tree: a file name, optionally
// followed by a dotted node path for schema defects.
type ValidationError struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Kind, e.Message)
}

// MigrationError carries the zero-based index of the pipeline that failed
// within one version transition.
type MigrationError struct {
	Pipeline int
	Err      error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("%s: pipeline %d: %v", ErrMigrationFailed.Error(), e.Pipeline, e.Err)
}

func (e *MigrationError) Unwrap() error { return ErrMigrationFailed }

// IndexConflictError names the index whose existing definition differs from
// the requested one.
type IndexConflictError struct {
	Index string
}

func (e *IndexConflictError) Error() string {
	return fmt.Sprintf("%s: index %q exists with a different definition", ErrIndexConflict.Error(), e.Index)
}

func (e *IndexConflictError) Unwrap() error { return ErrIndexConflict }
