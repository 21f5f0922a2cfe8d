// Package mongostore keeps the warning catalog and infraction ledger in
// MongoDB using the collection layout of the first warnbot deployment.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/m3rciful/warnbot/warnings"
)

// Collection names.
const (
	ArchivedCollection = "old_warns"
	ActiveCollection   = "actual_warns"
	TypesCollection    = "warning_types"
	GroupsCollection   = "warning_groups"
)

const duplicateKeyCode = 11000

// Options tune the store.
type Options struct {
	// Transactions wraps ArchiveActive in a multi-document transaction.
	// It needs a replica set or sharded cluster.
	Transactions bool
}

// Store implements warnings.Catalog and warnings.Ledger.
type Store struct {
	db       *mongo.Database
	opts     Options
	active   *mongo.Collection
	archived *mongo.Collection
	types    *mongo.Collection
	groups   *mongo.Collection
	now      func() time.Time
}

var (
	_ warnings.Catalog = (*Store)(nil)
	_ warnings.Ledger  = (*Store)(nil)
)

// New binds the store to db.
func New(db *mongo.Database, opts Options) *Store {
	return &Store{
		db:       db,
		opts:     opts,
		active:   db.Collection(ActiveCollection),
		archived: db.Collection(ArchivedCollection),
		types:    db.Collection(TypesCollection),
		groups:   db.Collection(GroupsCollection),
		now:      time.Now,
	}
}

// EnsureIndexes creates the unique and lookup indexes the store relies on.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	specs := []struct {
		coll  *mongo.Collection
		model mongo.IndexModel
	}{
		{s.groups, mongo.IndexModel{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{s.types, mongo.IndexModel{Keys: bson.D{{Key: "trigger", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{s.active, mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "info.group.name", Value: 1}}}},
		{s.archived, mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}}}},
	}
	for _, spec := range specs {
		if _, err := spec.coll.Indexes().CreateOne(ctx, spec.model); err != nil {
			return fmt.Errorf("mongostore: create index on %s: %w", spec.coll.Name(), err)
		}
	}
	return nil
}

type archivedDoc struct {
	warnings.UserWarning `bson:",inline"`
	ArchivedAt           time.Time `bson:"archived_at"`
}

func activeFilter(userID int64, group string) bson.D {
	return bson.D{{Key: "user_id", Value: userID}, {Key: "info.group.name", Value: group}}
}

func (s *Store) FindWarningType(ctx context.Context, trigger string) (warnings.WarningInfo, bool, error) {
	var info warnings.WarningInfo
	err := s.types.FindOne(ctx, bson.D{{Key: "trigger", Value: trigger}}).Decode(&info)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return warnings.WarningInfo{}, false, nil
	}
	if err != nil {
		return warnings.WarningInfo{}, false, fmt.Errorf("mongostore: find warning type: %w", err)
	}
	return info, true, nil
}

func (s *Store) FindGroup(ctx context.Context, name string) (warnings.WarningGroup, bool, error) {
	var g warnings.WarningGroup
	err := s.groups.FindOne(ctx, bson.D{{Key: "name", Value: name}}).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return warnings.WarningGroup{}, false, nil
	}
	if err != nil {
		return warnings.WarningGroup{}, false, fmt.Errorf("mongostore: find group: %w", err)
	}
	return g, true, nil
}

func (s *Store) CreateWarningType(ctx context.Context, info warnings.WarningInfo) error {
	_, err := s.types.InsertOne(ctx, info)
	if mongo.IsDuplicateKeyError(err) {
		return warnings.ErrTriggerExists
	}
	if err != nil {
		return fmt.Errorf("mongostore: create warning type: %w", err)
	}
	return nil
}

func (s *Store) UpsertGroup(ctx context.Context, group warnings.WarningGroup) error {
	_, err := s.groups.ReplaceOne(ctx, bson.D{{Key: "name", Value: group.Name}}, group, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongostore: upsert group: %w", err)
	}
	return nil
}

func (s *Store) UpsertWarningType(ctx context.Context, info warnings.WarningInfo) error {
	_, err := s.types.ReplaceOne(ctx, bson.D{{Key: "trigger", Value: info.Trigger}}, info, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongostore: upsert warning type: %w", err)
	}
	return nil
}

func (s *Store) ListGroups(ctx context.Context) ([]warnings.WarningGroup, error) {
	cur, err := s.groups.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongostore: list groups: %w", err)
	}
	var out []warnings.WarningGroup
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongostore: list groups: %w", err)
	}
	return out, nil
}

func (s *Store) SumActivePoints(ctx context.Context, userID int64, group string) (uint64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: activeFilter(userID, group)}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$info.points"}}},
		}}},
	}
	cur, err := s.active.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("mongostore: sum active points: %w", err)
	}
	var res []struct {
		Total int64 `bson:"total"`
	}
	if err := cur.All(ctx, &res); err != nil {
		return 0, fmt.Errorf("mongostore: sum active points: %w", err)
	}
	if len(res) == 0 {
		return 0, nil
	}
	return uint64(res[0].Total), nil
}

func (s *Store) InsertActive(ctx context.Context, w warnings.UserWarning) error {
	if _, err := s.active.InsertOne(ctx, w); err != nil {
		return fmt.Errorf("mongostore: insert active: %w", err)
	}
	return nil
}

// ArchiveActive copies the active records to the archive and then deletes
// them by id. Without transactions a crash between the steps can leave a
// record in both collections; it never loses one.
func (s *Store) ArchiveActive(ctx context.Context, userID int64, group string) (int, error) {
	if !s.opts.Transactions {
		return s.archive(ctx, userID, group)
	}
	sess, err := s.db.Client().StartSession()
	if err != nil {
		return 0, fmt.Errorf("mongostore: start session: %w", err)
	}
	defer sess.EndSession(ctx)
	moved, err := sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return s.archive(sc, userID, group)
	})
	if err != nil {
		return 0, err
	}
	return moved.(int), nil
}

func (s *Store) archive(ctx context.Context, userID int64, group string) (int, error) {
	cur, err := s.active.Find(ctx, activeFilter(userID, group))
	if err != nil {
		return 0, fmt.Errorf("mongostore: archive active: %w", err)
	}
	var active []warnings.UserWarning
	if err := cur.All(ctx, &active); err != nil {
		return 0, fmt.Errorf("mongostore: archive active: %w", err)
	}
	if len(active) == 0 {
		return 0, nil
	}

	now := s.now().UTC()
	docs := make([]interface{}, 0, len(active))
	ids := make(bson.A, 0, len(active))
	for _, w := range active {
		docs = append(docs, archivedDoc{UserWarning: w, ArchivedAt: now})
		ids = append(ids, w.ID)
	}
	// Unordered so records already archived by an interrupted attempt are skipped.
	if _, err := s.archived.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false)); err != nil && !onlyDuplicates(err) {
		return 0, fmt.Errorf("mongostore: archive active: %w", err)
	}
	res, err := s.active.DeleteMany(ctx, bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: ids}}}})
	if err != nil {
		return 0, fmt.Errorf("mongostore: clear active: %w", err)
	}
	return int(res.DeletedCount), nil
}

// onlyDuplicates reports whether every failed write of a bulk insert hit an
// existing _id. Any other failure means some record did not reach the archive.
func onlyDuplicates(err error) bool {
	var bulk mongo.BulkWriteException
	if !errors.As(err, &bulk) || bulk.WriteConcernError != nil || len(bulk.WriteErrors) == 0 {
		return false
	}
	for _, we := range bulk.WriteErrors {
		if we.Code != duplicateKeyCode {
			return false
		}
	}
	return true
}

func (s *Store) ActiveWarnings(ctx context.Context, userID int64) ([]warnings.UserWarning, error) {
	cur, err := s.active.Find(ctx, bson.D{{Key: "user_id", Value: userID}},
		options.Find().SetSort(bson.D{{Key: "issued_at", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("mongostore: active warnings: %w", err)
	}
	var out []warnings.UserWarning
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("mongostore: active warnings: %w", err)
	}
	return out, nil
}
