package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	todolistsCollection = "todolists"
	usersCollection     = "users"
)

// MongoStore keeps todolists as documents with an embedded items array.
type MongoStore struct {
	client    *mongo.Client
	todolists *mongo.Collection
	users     *mongo.Collection
}

func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := NewMongoStore(client, database)
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func NewMongoStore(client *mongo.Client, database string) *MongoStore {
	db := client.Database(database)
	return &MongoStore{
		client:    client,
		todolists: db.Collection(todolistsCollection),
		users:     db.Collection(usersCollection),
	}
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	if _, err := s.todolists.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create owner index: %w", err)
	}
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create email index: %w", err)
	}
	return nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) ListTodolists(ctx context.Context, owner string) ([]Todolist, error) {
	return s.findTodolists(ctx, bson.M{"owner": owner})
}

// AllTodolists returns every list regardless of owner.
func (s *MongoStore) AllTodolists(ctx context.Context) ([]Todolist, error) {
	return s.findTodolists(ctx, bson.M{})
}

func (s *MongoStore) findTodolists(ctx context.Context, filter bson.M) ([]Todolist, error) {
	cursor, err := s.todolists.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list todolists: %w", err)
	}
	lists := make([]Todolist, 0)
	if err := cursor.All(ctx, &lists); err != nil {
		return nil, fmt.Errorf("decode todolists: %w", err)
	}
	for i := range lists {
		lists[i].Items = nonNilItems(lists[i].Items)
	}
	return lists, nil
}

func (s *MongoStore) GetTodolist(ctx context.Context, id string) (Todolist, error) {
	var list Todolist
	err := s.todolists.FindOne(ctx, bson.M{"_id": id}).Decode(&list)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Todolist{}, ErrNotFound
	}
	if err != nil {
		return Todolist{}, fmt.Errorf("get todolist: %w", err)
	}
	list.Items = nonNilItems(list.Items)
	return list, nil
}

func (s *MongoStore) InsertTodolist(ctx context.Context, list Todolist) error {
	now := time.Now().UTC()
	list.Items = nonNilItems(list.Items)
	list.CreatedAt = now
	list.UpdatedAt = now
	if _, err := s.todolists.InsertOne(ctx, list); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert todolist: %w", err)
	}
	return nil
}

func (s *MongoStore) ReplaceItems(ctx context.Context, id string, expectedVersion int64, items []Item) (Todolist, error) {
	var list Todolist
	err := s.todolists.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "version": expectedVersion},
		bson.M{
			"$set": bson.M{"items": nonNilItems(items), "updated_at": time.Now().UTC()},
			"$inc": bson.M{"version": 1},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&list)
	if errors.Is(err, mongo.ErrNoDocuments) {
		count, countErr := s.todolists.CountDocuments(ctx, bson.M{"_id": id})
		if countErr != nil {
			return Todolist{}, fmt.Errorf("replace items: %w", countErr)
		}
		if count == 0 {
			return Todolist{}, ErrNotFound
		}
		return Todolist{}, ErrConflict
	}
	if err != nil {
		return Todolist{}, fmt.Errorf("replace items: %w", err)
	}
	list.Items = nonNilItems(list.Items)
	return list, nil
}

func (s *MongoStore) UpdateTodolistField(ctx context.Context, id string, field ListField, value string) error {
	if !field.Valid() {
		return fmt.Errorf("update todolist field: %w %q", ErrUnknownField, field)
	}
	result, err := s.todolists.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$set": bson.M{string(field): value, "updated_at": time.Now().UTC()},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return fmt.Errorf("update todolist field: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteTodolist(ctx context.Context, id string) (bool, error) {
	result, err := s.todolists.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("delete todolist: %w", err)
	}
	return result.DeletedCount > 0, nil
}

func (s *MongoStore) CreateUser(ctx context.Context, user User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.findUser(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (User, error) {
	var user User
	err := s.users.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func nonNilItems(items []Item) []Item {
	if items == nil {
		return []Item{}
	}
	return items
}
