package validator

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/mongodrift/mongodrift/internal/db/dbtest"
)

func TestApplyThenRemove(t *testing.T) {
	fake := dbtest.New()
	a := New(fake, zap.NewNop())
	ctx := context.Background()

	schema := bson.D{{Key: "bsonType", Value: "object"}}
	if err := a.Apply(ctx, "users", schema); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	coll, _ := fake.Get("users")
	if coll.ValidationLevel != Level || coll.ValidationAct != Action {
		t.Errorf("posture = %s/%s", coll.ValidationLevel, coll.ValidationAct)
	}

	installed, err := a.Installed(ctx, "users")
	if err != nil || installed == nil {
		t.Fatalf("Installed = %v, %v", installed, err)
	}

	if err := a.Remove(ctx, "users"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	installed, _ = a.Installed(ctx, "users")
	if installed != nil {
		t.Error("validator should be gone")
	}
}

func TestRemove_MissingCollection(t *testing.T) {
	a := New(dbtest.New(), zap.NewNop())
	if err := a.Remove(context.Background(), "neverExisted"); err != nil {
		t.Errorf("Remove of a missing collection should succeed, got %v", err)
	}
}
