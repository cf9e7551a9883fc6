// Package validator installs and removes the document-level schema
// validator on a collection.
package validator

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/mongodrift/mongodrift/internal/db"
)

// Validation posture for installed validators.
const (
	Level  = "moderate"
	Action = "error"
)

// Applier swaps document validators: the old one is removed at the start of
// a transition and the freshly rendered BSON schema installed near the end.
type Applier struct {
	db     db.Database
	logger *zap.Logger
}

// New creates a schema applier.
func New(database db.Database, logger *zap.Logger) *Applier {
	return &Applier{db: database, logger: logger}
}

// Remove clears any existing validator. A collection without a validator,
// or no collection at all, is not an error.
func (a *Applier) Remove(ctx context.Context, coll string) error {
	if err := a.db.ClearValidator(ctx, coll); err != nil {
		return fmt.Errorf("remove validator from %s: %w", coll, err)
	}
	a.logger.Info("validator removed", zap.String("collection", coll))
	return nil
}

// Apply installs the rendered BSON schema as the collection's validator.
func (a *Applier) Apply(ctx context.Context, coll string, schema bson.D) error {
	if err := a.db.SetValidator(ctx, coll, schema, Level, Action); err != nil {
		return fmt.Errorf("apply validator to %s: %w", coll, err)
	}
	a.logger.Info("validator installed",
		zap.String("collection", coll),
		zap.String("level", Level),
		zap.String("action", Action))
	return nil
}

// Installed returns the currently installed validator schema, or nil.
func (a *Applier) Installed(ctx context.Context, coll string) (bson.D, error) {
	schema, err := a.db.GetValidator(ctx, coll)
	if err != nil {
		return nil, fmt.Errorf("inspect validator of %s: %w", coll, err)
	}
	return schema, nil
}
