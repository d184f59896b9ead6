package questions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JGenereux/ai-interviewer/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrQuestionNotFound is returned when no question has the requested id.
var ErrQuestionNotFound = errors.New("question not found")

type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// MongoRepo reads the question pool from a MongoDB collection.
type MongoRepo struct {
	client *mongo.Client
	col    *mongo.Collection
}

// NewMongoRepo connects to Mongo and ensures an index on id.
func NewMongoRepo(ctx context.Context, cfg MongoConfig) (*MongoRepo, error) {
	if cfg.URI == "" {
		return nil, errors.New("MONGO_URI is empty")
	}
	if cfg.Database == "" {
		cfg.Database = "interviewer"
	}
	if cfg.Collection == "" {
		cfg.Collection = "questions"
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	r := &MongoRepo{client: client, col: client.Database(cfg.Database).Collection(cfg.Collection)}
	_, _ = r.col.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return r, nil
}

// ListActive returns every non-deprecated question, filtered by difficulty when one is given.
func (r *MongoRepo) ListActive(ctx context.Context, difficulty models.Difficulty) ([]models.Question, error) {
	filter := bson.M{"status": bson.M{"$ne": models.QuestionDeprecated}}
	if difficulty != "" {
		filter["difficulty"] = difficulty
	}
	cur, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer cur.Close(ctx)

	out := []models.Question{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return out, nil
}

func (r *MongoRepo) GetByID(ctx context.Context, id string) (*models.Question, error) {
	var q models.Question
	if err := r.col.FindOne(ctx, bson.M{"id": id}).Decode(&q); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("get question: %w", err)
	}
	return &q, nil
}

func (r *MongoRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, nil)
}

func (r *MongoRepo) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
