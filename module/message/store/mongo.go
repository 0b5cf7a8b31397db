package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"PChat/module/message/model"
	"PChat/tools/errs"
	"PChat/tools/ids"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoStore struct {
	coll *mongo.Collection
}

// NewMongo returns a Store backed by the messages collection of db.
func NewMongo(ctx context.Context, db *mongo.Database) (Store, error) {
	coll := db.Collection(model.MsgTableName)
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "msg_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}}},
	})
	if err != nil {
		return nil, errs.WrapMsg(err, "create message indexes")
	}
	return &mongoStore{coll: coll}, nil
}

func (s *mongoStore) CreateMessage(ctx context.Context, sender, receiver, text, image string) (*model.Message, error) {
	m := &model.Message{
		ID:         ids.GenerateString(),
		SenderID:   sender,
		ReceiverID: receiver,
		Text:       text,
		Image:      image,
		// mongo stores milliseconds; truncate so the returned value matches a later read
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.coll.InsertOne(ctx, m); err != nil {
		return nil, errs.ErrPersistence.WrapMsg("insert message", "err", err)
	}
	return m, nil
}

func (s *mongoStore) DeleteMessage(ctx context.Context, id string) error {
	res, err := s.coll.DeleteOne(ctx, bson.M{"msg_id": id})
	if err != nil {
		return errs.ErrPersistence.WrapMsg("delete message", "err", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound.Wrap()
	}
	return nil
}

func (s *mongoStore) FindMessage(ctx context.Context, id string) (*model.Message, error) {
	var m model.Message
	err := s.coll.FindOne(ctx, bson.M{"msg_id": id}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound.Wrap()
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "find message")
	}
	return &m, nil
}

func (s *mongoStore) FindMessagesBetween(ctx context.Context, a, b string) ([]*model.Message, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"sender_id": a, "receiver_id": b},
		bson.M{"sender_id": b, "receiver_id": a},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, errs.WrapMsg(err, "find messages")
	}
	out := make([]*model.Message, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, errs.WrapMsg(err, "decode messages")
	}
	return out, nil
}

func (s *mongoStore) ChatPartners(ctx context.Context, userID string) ([]string, error) {
	filter := bson.M{"$or": bson.A{bson.M{"sender_id": userID}, bson.M{"receiver_id": userID}}}
	set := make(map[string]struct{})
	for _, field := range []string{"sender_id", "receiver_id"} {
		vals, err := s.coll.Distinct(ctx, field, filter)
		if err != nil {
			return nil, errs.WrapMsg(err, "distinct "+field)
		}
		for _, v := range vals {
			if id, ok := v.(string); ok && id != userID {
				set[id] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}
