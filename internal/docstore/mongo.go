package docstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore keeps every document in a single collection keyed by path.
// Field writes use native $set/$inc so increments and conditional updates
// stay atomic server-side.
type MongoStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection("documents"), now: time.Now}
}

// EnsureIndexes creates the parent index used by List.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "parent", Value: 1}},
	})
	return err
}

func (s *MongoStore) Get(ctx context.Context, path string) (Doc, error) {
	var row struct {
		Data bson.M `bson:"data"`
	}
	err := s.coll.FindOne(ctx, bson.M{"_id": path}).Decode(&row)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return normalizeBSON(row.Data), nil
}

func (s *MongoStore) Set(ctx context.Context, path string, fields Doc, merge bool) error {
	if !merge {
		dst := Doc{}
		apply(dst, fields, s.now())
		_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": path},
			bson.M{"_id": path, "parent": Parent(path), "data": bson.M(dst)},
			options.Replace().SetUpsert(true))
		return err
	}
	update := s.fieldUpdate(fields)
	update["$setOnInsert"] = bson.M{"parent": Parent(path)}
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": path}, update, options.Update().SetUpsert(true))
	return err
}

func (s *MongoStore) Update(ctx context.Context, path string, fields Doc) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": path}, s.fieldUpdate(fields))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) UpdateIf(ctx context.Context, path string, cond Doc, fields Doc) (bool, error) {
	filter := bson.M{"_id": path}
	for k, v := range cond {
		filter["data."+k] = v
	}
	res, err := s.coll.UpdateOne(ctx, filter, s.fieldUpdate(fields))
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		// Distinguish a failed condition from a missing document.
		if err := s.coll.FindOne(ctx, bson.M{"_id": path}).Err(); err == mongo.ErrNoDocuments {
			return false, ErrNotFound
		} else if err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (s *MongoStore) Delete(ctx context.Context, path string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": path})
	return err
}

func (s *MongoStore) Add(ctx context.Context, collection string, fields Doc) (string, error) {
	id := primitive.NewObjectID().Hex()
	if err := s.Set(ctx, collection+"/"+id, fields, false); err != nil {
		return "", err
	}
	return id, nil
}

func (s *MongoStore) List(ctx context.Context, collection string) ([]Snapshot, error) {
	cur, err := s.coll.Find(ctx, bson.M{"parent": collection})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []Snapshot
	for cur.Next(ctx) {
		var row struct {
			Path string `bson:"_id"`
			Data bson.M `bson:"data"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out = append(out, Snapshot{ID: ID(row.Path), Data: normalizeBSON(row.Data)})
	}
	return out, cur.Err()
}

// fieldUpdate translates sentinel values into native mongo update operators.
func (s *MongoStore) fieldUpdate(fields Doc) bson.M {
	set := bson.M{}
	inc := bson.M{}
	for k, v := range fields {
		switch sv := v.(type) {
		case Increment:
			inc["data."+k] = sv.By
		case ServerTimestamp:
			set["data."+k] = s.now()
		default:
			set["data."+k] = v
		}
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(inc) > 0 {
		update["$inc"] = inc
	}
	return update
}

// normalizeBSON converts driver-specific decode types back to the plain
// values the rest of the code expects.
func normalizeBSON(m bson.M) Doc {
	d := make(Doc, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case primitive.DateTime:
			d[k] = t.Time()
		case primitive.A:
			d[k] = []any(t)
		case int32:
			d[k] = int64(t)
		default:
			d[k] = v
		}
	}
	return d
}
