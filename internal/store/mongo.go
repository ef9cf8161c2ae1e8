package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JonMunkholm/crm/internal/config"
	"github.com/JonMunkholm/crm/internal/core"
)

// Collection names.
const (
	accountsCollection    = "accounts"
	maintenanceCollection = "maintenance_records"
	importRunsCollection  = "import_runs"
)

// Mongo is the document store backend. Records keep ids as strings and
// dates as UTC midnight.
type Mongo struct {
	client   *mongo.Client
	database *mongo.Database
}

// NewMongo connects, pings and ensures indexes.
func NewMongo(ctx context.Context, uri, dbName string, connectTimeout time.Duration) (*Mongo, error) {
	if connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, connectTimeout)
		defer cancel()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	m := &Mongo{client: client, database: client.Database(dbName)}
	if err := m.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	slog.Info("connected to MongoDB", "database", dbName)
	return m, nil
}

func (m *Mongo) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		accountsCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
		},
		maintenanceCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "status", Value: 1}, {Key: "end_date", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "end_date", Value: 1}}},
		},
		importRunsCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "started_at", Value: -1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := m.database.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

func (m *Mongo) Driver() string { return config.DriverMongo }

func (m *Mongo) Ping(ctx context.Context) error { return m.client.Ping(ctx, nil) }

func (m *Mongo) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.client.Disconnect(ctx); err != nil {
		slog.Warn("disconnect MongoDB", "error", err)
	}
}

// AccountDirectory implements core.AccountResolver.
func (m *Mongo) AccountDirectory(ctx context.Context, userID uuid.UUID) ([]core.Account, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := m.database.Collection(accountsCollection).Find(ctx, bson.M{"user_id": userID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("find accounts: %w", err)
	}

	var docs []accountDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}

	accounts := make([]core.Account, 0, len(docs))
	for _, d := range docs {
		id, err := uuid.Parse(d.ID)
		if err != nil {
			continue
		}
		accounts = append(accounts, core.Account{ID: id, Name: d.Name})
	}
	return accounts, nil
}

// SaveAccounts upserts account directory entries for a user.
func (m *Mongo) SaveAccounts(ctx context.Context, userID uuid.UUID, accounts []core.Account) error {
	coll := m.database.Collection(accountsCollection)
	now := time.Now().UTC()
	for _, a := range accounts {
		filter, update := accountUpsert(userID, a, now)
		if _, err := coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
			// The filter misses an _id owned by another user, so the upsert
			// collides on insert.
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("upsert account %q (%s): %w", a.Name, a.ID, ErrAccountOwned)
			}
			return fmt.Errorf("upsert account %q: %w", a.Name, err)
		}
	}
	return nil
}

// accountUpsert scopes an account write to its owner. user_id comes from the
// filter on insert and is never overwritten.
func accountUpsert(userID uuid.UUID, a core.Account, now time.Time) (bson.M, bson.M) {
	filter := bson.M{"_id": a.ID.String(), "user_id": userID.String()}
	update := bson.M{
		"$set":         bson.M{"name": a.Name},
		"$setOnInsert": bson.M{"created_at": now},
	}
	return filter, update
}

// InsertMaintenanceRecords inserts one chunk. A partially applied insert is
// rolled back by deleting the chunk's ids so the chunk stays all-or-nothing.
func (m *Mongo) InsertMaintenanceRecords(ctx context.Context, records []core.NewMaintenanceRecord) error {
	if len(records) == 0 {
		return nil
	}

	docs := make([]interface{}, len(records))
	ids := make([]string, len(records))
	for i, r := range records {
		d := newMaintenanceDoc(r)
		docs[i] = d
		ids[i] = d.ID
	}

	coll := m.database.Collection(maintenanceCollection)
	if _, err := coll.InsertMany(ctx, docs); err != nil {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if _, delErr := coll.DeleteMany(cleanupCtx, bson.M{"_id": bson.M{"$in": ids}}); delErr != nil {
			return errors.Join(fmt.Errorf("insert maintenance records: %w", err), fmt.Errorf("roll back chunk: %w", delErr))
		}
		return fmt.Errorf("insert maintenance records: %w", err)
	}
	return nil
}

// ActiveMaintenanceRecords implements core.RecordSource.
func (m *Mongo) ActiveMaintenanceRecords(ctx context.Context, userID uuid.UUID) ([]core.MaintenanceRecord, error) {
	filter := bson.M{
		"user_id":  userID.String(),
		"status":   string(core.StatusActive),
		"end_date": bson.M{"$ne": nil},
	}
	return m.findRecords(ctx, filter)
}

// MaintenanceDueForReminder implements core.ReminderSource. The per-record
// window is applied by the caller; this narrows to records not yet expired.
func (m *Mongo) MaintenanceDueForReminder(ctx context.Context, asOf time.Time) ([]core.MaintenanceRecord, error) {
	filter := bson.M{
		"status":   string(core.StatusActive),
		"end_date": bson.M{"$gte": utcDay(asOf)},
	}
	return m.findRecords(ctx, filter)
}

func (m *Mongo) findRecords(ctx context.Context, filter bson.M) ([]core.MaintenanceRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "end_date", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := m.database.Collection(maintenanceCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find maintenance records: %w", err)
	}

	var docs []maintenanceDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode maintenance records: %w", err)
	}

	names, err := m.accountNames(ctx, docs)
	if err != nil {
		return nil, err
	}

	records := make([]core.MaintenanceRecord, 0, len(docs))
	for _, d := range docs {
		rec, ok := d.record()
		if !ok {
			continue
		}
		if d.AccountID != nil {
			if name, ok := names[*d.AccountID]; ok {
				rec.AccountName = &name
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// accountNames loads the names of every account referenced by docs.
func (m *Mongo) accountNames(ctx context.Context, docs []maintenanceDoc) (map[string]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, d := range docs {
		if d.AccountID == nil {
			continue
		}
		if _, ok := seen[*d.AccountID]; !ok {
			seen[*d.AccountID] = struct{}{}
			ids = append(ids, *d.AccountID)
		}
	}
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	cursor, err := m.database.Collection(accountsCollection).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("find accounts: %w", err)
	}
	var accounts []accountDoc
	if err := cursor.All(ctx, &accounts); err != nil {
		return nil, fmt.Errorf("decode accounts: %w", err)
	}
	for _, a := range accounts {
		names[a.ID] = a.Name
	}
	return names, nil
}

// RecordImportRun implements core.RunRecorder.
func (m *Mongo) RecordImportRun(ctx context.Context, run core.ImportRun) error {
	if _, err := m.database.Collection(importRunsCollection).InsertOne(ctx, newImportRunDoc(run)); err != nil {
		return fmt.Errorf("insert import run: %w", err)
	}
	return nil
}

// ImportRuns implements core.RunRecorder.
func (m *Mongo) ImportRuns(ctx context.Context, userID uuid.UUID, limit int) ([]core.ImportRun, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "started_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := m.database.Collection(importRunsCollection).Find(ctx, bson.M{"user_id": userID.String()}, opts)
	if err != nil {
		return nil, fmt.Errorf("find import runs: %w", err)
	}

	var docs []importRunDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode import runs: %w", err)
	}

	runs := make([]core.ImportRun, len(docs))
	for i, d := range docs {
		runs[i] = d.run()
	}
	return runs, nil
}
