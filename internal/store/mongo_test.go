package store

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/JonMunkholm/crm/internal/core"
)

func TestAccountUpsert_ScopedToOwner(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	acct := core.Account{ID: uuid.New(), Name: "Acme Corp"}

	filter, update := accountUpsert(owner, acct, now)

	if filter["_id"] != acct.ID.String() || filter["user_id"] != owner.String() {
		t.Errorf("filter = %v, want _id and user_id", filter)
	}
	set, ok := update["$set"].(bson.M)
	if !ok {
		t.Fatalf("$set = %T", update["$set"])
	}
	if _, ok := set["user_id"]; ok {
		t.Error("$set must not reassign user_id")
	}
	if set["name"] != "Acme Corp" {
		t.Errorf("$set name = %v", set["name"])
	}
	if onInsert, _ := update["$setOnInsert"].(bson.M); onInsert["created_at"] != now {
		t.Errorf("$setOnInsert = %v", update["$setOnInsert"])
	}
}
