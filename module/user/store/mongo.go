package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"PChat/module/user/model"
	"PChat/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoStore struct {
	coll *mongo.Collection
}

// NewMongo returns a Store backed by the users collection of db and makes
// sure its indexes exist.
func NewMongo(ctx context.Context, db *mongo.Database) (Store, error) {
	coll := db.Collection(model.UserTableName)
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return nil, errs.WrapMsg(err, "create user indexes")
	}
	return &mongoStore{coll: coll}, nil
}

func (s *mongoStore) Create(ctx context.Context, u *model.User) error {
	doc := *u
	doc.Email = strings.ToLower(doc.Email)
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrEmailTaken.Wrap()
		}
		return errs.WrapMsg(err, "insert user")
	}
	return nil
}

func (s *mongoStore) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	var u model.User
	err := s.coll.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound.Wrap()
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find user")
	}
	return &u, nil
}

func (s *mongoStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	return s.findOne(ctx, bson.M{"user_id": id})
}

func (s *mongoStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.findOne(ctx, bson.M{"email": strings.ToLower(email)})
}

func (s *mongoStore) FindByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.find(ctx, bson.M{"user_id": bson.M{"$in": ids}})
}

func (s *mongoStore) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"user_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, errs.WrapMsg(err, "count user")
	}
	return n > 0, nil
}

func (s *mongoStore) ListExcept(ctx context.Context, id string) ([]*model.User, error) {
	return s.find(ctx, bson.M{"user_id": bson.M{"$ne": id}})
}

func (s *mongoStore) find(ctx context.Context, filter bson.M) ([]*model.User, error) {
	cur, err := s.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "full_name", Value: 1}}))
	if err != nil {
		return nil, errs.WrapMsg(err, "find users")
	}
	var out []*model.User
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode users")
	}
	return out, nil
}

func (s *mongoStore) UpdateProfilePic(ctx context.Context, id, pic string) (*model.User, error) {
	var u model.User
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"user_id": id},
		bson.M{"$set": bson.M{"profile_pic": pic, "update_time": time.Now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound.Wrap()
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "update profile pic")
	}
	return &u, nil
}
