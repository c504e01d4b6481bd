package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultMongoDatabase = "interview_engine"
	mongoCollection      = "interview_sessions"
)

// MongoStore хранит каждую сессию отдельным документом, _id равен ID сессии
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// OpenMongo подключается к MongoDB; имя базы берется из пути URI
func OpenMongo(ctx context.Context, uri string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("MongoDB недоступна: %w", err)
	}

	return &MongoStore{
		client:     client,
		collection: client.Database(mongoDatabaseName(uri)).Collection(mongoCollection),
	}, nil
}

func mongoDatabaseName(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return defaultMongoDatabase
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return defaultMongoDatabase
}

func (m *MongoStore) Create(ctx context.Context, s *Session) error {
	if s.ID == "" {
		return ErrInvalidSessionID
	}

	doc := s.Clone()
	doc.Version = 1
	if _, err := m.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrSessionExists
		}
		return fmt.Errorf("ошибка записи сессии %s: %w", s.ID, err)
	}

	s.Version = 1
	return nil
}

func (m *MongoStore) Load(ctx context.Context, id string) (*Session, error) {
	var s Session
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения сессии %s: %w", id, err)
	}
	return &s, nil
}

func (m *MongoStore) CompareAndSwap(ctx context.Context, expected int64, s *Session) error {
	next := s.Clone()
	next.Version = expected + 1

	res, err := m.collection.ReplaceOne(ctx, bson.M{"_id": s.ID, "version": expected}, next)
	if err != nil {
		return fmt.Errorf("ошибка обновления сессии %s: %w", s.ID, err)
	}

	if res.MatchedCount == 0 {
		current, err := m.Load(ctx, s.ID)
		if err != nil {
			return err
		}
		return conflictError(s.ID, expected, current.Version)
	}

	s.Version = next.Version
	return nil
}

func (m *MongoStore) Close() error {
	return m.client.Disconnect(context.Background())
}
