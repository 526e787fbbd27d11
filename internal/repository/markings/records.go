package markings

import (
	"context"
	"time"

	"baddebt_engine/internal/ports"

	"github.com/rotisserie/eris"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const Collection = "bad_debt_markings"

// Record is one call to the marking mutation. Requested holds the
// deduplicated ids; UpdatedCount only the ones that were still unmarked.
type Record struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	LoanIDs      []string           `bson:"loan_ids" json:"loanIds"`
	Requested    int                `bson:"requested" json:"requested"`
	UpdatedCount int64              `bson:"updated_count" json:"updatedCount"`
	DeadDebtDate time.Time          `bson:"dead_debt_date" json:"deadDebtDate"`
	Source       string             `bson:"source" json:"source"`
	FilePath     *string            `bson:"file_path,omitempty" json:"filePath,omitempty"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
}

type Store struct {
	db  *mongo.Database
	now func() time.Time
}

func NewStore(db *mongo.Database) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) RecordMarking(ctx context.Context, e ports.MarkingEntry) error {
	if s == nil || s.db == nil {
		return mongo.ErrClientDisconnected
	}

	var path *string
	if e.FilePath != "" {
		p := e.FilePath
		path = &p
	}

	doc := bson.D{
		{Key: "loan_ids", Value: e.LoanIDs},
		{Key: "requested", Value: len(e.LoanIDs)},
		{Key: "updated_count", Value: e.UpdatedCount},
		{Key: "dead_debt_date", Value: e.DeadDebtDate.UTC()},
		{Key: "source", Value: e.Source},
		{Key: "file_path", Value: path},
		{Key: "created_at", Value: s.now().UTC()},
	}

	if _, err := s.db.Collection(Collection).InsertOne(ctx, doc, options.InsertOne()); err != nil {
		return eris.Wrap(err, "markings: insert")
	}
	return nil
}

// List returns the most recent markings first together with the total
// count.
func (s *Store) List(ctx context.Context, limit, skip int64) ([]Record, int64, error) {
	if s == nil || s.db == nil {
		return nil, 0, mongo.ErrClientDisconnected
	}
	coll := s.db.Collection(Collection)
	filter := bson.M{}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	if skip > 0 {
		opts.SetSkip(skip)
	}

	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, eris.Wrap(err, "markings: find")
	}
	defer cur.Close(ctx)

	recs := make([]Record, 0)
	for cur.Next(ctx) {
		var r Record
		if err := cur.Decode(&r); err != nil {
			return nil, 0, eris.Wrap(err, "markings: decode")
		}
		recs = append(recs, r)
	}
	if err := cur.Err(); err != nil {
		return nil, 0, eris.Wrap(err, "markings: cursor")
	}

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, eris.Wrap(err, "markings: count")
	}
	return recs, total, nil
}
