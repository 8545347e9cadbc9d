package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/flowtube/flowtube/internal/config"
	"github.com/flowtube/flowtube/internal/models"
)

type MongoDB struct {
	client      *mongo.Client
	database    *mongo.Database
	sessions    *mongo.Collection
	resolutions *mongo.Collection
}

func NewMongoDB(cfg *config.MongoDBConfig) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	clientOptions := options.Client().ApplyURI(cfg.URI)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(cfg.Database)

	mongodb := &MongoDB{
		client:      client,
		database:    db,
		sessions:    db.Collection("sessions"),
		resolutions: db.Collection("resolutions"),
	}

	if err := mongodb.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return mongodb, nil
}

func (m *MongoDB) createIndexes(ctx context.Context) error {
	sessionIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "video_id", Value: 1}, {Key: "quality", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "created_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "state", Value: 1}},
		},
	}

	if _, err := m.sessions.Indexes().CreateMany(ctx, sessionIndexes); err != nil {
		return fmt.Errorf("failed to create session indexes: %w", err)
	}

	resolutionIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "video_id", Value: 1}, {Key: "extracted_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "extracted_at", Value: -1}},
		},
	}

	if _, err := m.resolutions.Indexes().CreateMany(ctx, resolutionIndexes); err != nil {
		return fmt.Errorf("failed to create resolution indexes: %w", err)
	}

	return nil
}

func (m *MongoDB) CreateSession(ctx context.Context, session *models.PlaybackSession) error {
	_, err := m.sessions.InsertOne(ctx, session)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (m *MongoDB) UpdateSession(ctx context.Context, session *models.PlaybackSession) error {
	filter := bson.M{"session_id": session.SessionID}
	result, err := m.sessions.ReplaceOne(ctx, filter, session)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("session %s not found", session.SessionID)
	}
	return nil
}

// UpdateSessionProgress sets only the progress fields of a live session.
// The state guard keeps a late progress tick from touching a row that has
// already reached a terminal state.
func (m *MongoDB) UpdateSessionProgress(ctx context.Context, sessionID string, progress models.Progress) error {
	filter := bson.M{
		"session_id": sessionID,
		"state": bson.M{"$in": []models.SessionState{
			models.SessionStateDownloading,
			models.SessionStateMerging,
		}},
	}
	update := bson.M{"$set": bson.M{
		"progress":   progress,
		"updated_at": time.Now(),
	}}
	if _, err := m.sessions.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to update session progress: %w", err)
	}
	return nil
}

func (m *MongoDB) GetSessionByID(ctx context.Context, sessionID string) (*models.PlaybackSession, error) {
	var session models.PlaybackSession
	err := m.sessions.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return &session, nil
}

// GetSessionByVideoQuality returns the newest session for a (video, quality)
// pair, used for playback deduplication.
func (m *MongoDB) GetSessionByVideoQuality(ctx context.Context, videoID, quality string) (*models.PlaybackSession, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	var session models.PlaybackSession
	err := m.sessions.FindOne(ctx, bson.M{"video_id": videoID, "quality": quality}, opts).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	return &session, nil
}

func (m *MongoDB) ListSessions(ctx context.Context, opts models.PaginationOptions) ([]models.PlaybackSession, int64, error) {
	sort := bson.D{{Key: "created_at", Value: -1}}
	if opts.Sort == "created_at_asc" {
		sort = bson.D{{Key: "created_at", Value: 1}}
	}

	total, err := m.sessions.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	findOpts := options.Find().
		SetSort(sort).
		SetSkip(int64((opts.Page - 1) * opts.Limit)).
		SetLimit(int64(opts.Limit))

	cursor, err := m.sessions.Find(ctx, bson.M{}, findOpts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []models.PlaybackSession
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, 0, fmt.Errorf("failed to decode sessions: %w", err)
	}

	return sessions, total, nil
}

func (m *MongoDB) DeleteSession(ctx context.Context, sessionID string) error {
	result, err := m.sessions.DeleteOne(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("session %s not found", sessionID)
	}
	return nil
}

// RecordResolution writes one extraction audit row.
func (m *MongoDB) RecordResolution(ctx context.Context, record *models.ResolutionRecord) error {
	_, err := m.resolutions.InsertOne(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to insert resolution record: %w", err)
	}
	return nil
}

// LatestResolution returns the most recent extraction for a video, or nil.
func (m *MongoDB) LatestResolution(ctx context.Context, videoID string) (*models.ResolutionRecord, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "extracted_at", Value: -1}})
	var record models.ResolutionRecord
	err := m.resolutions.FindOne(ctx, bson.M{"video_id": videoID}, opts).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find resolution record: %w", err)
	}
	return &record, nil
}

func (m *MongoDB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
