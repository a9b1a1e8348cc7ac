package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/startinsight/signal-pipeline/internal/models"
)

// Collection names within the pipeline database.
const (
	signalsCollection  = "signals"
	insightsCollection = "insights"
	contentCollection  = "content"
	ingestStatsColl    = "ingest_stats"
	pipelineRunsColl   = "pipeline_runs"
)

// dimensionFields is the fixed set of insight score dimensions the
// collector aggregates over.
var dimensionFields = []string{"relevance", "opportunity", "problem", "feasibility", "urgency"}

// MongoStore is the persisted signal/insight store.
type MongoStore struct {
	db *mongo.Database
}

// NewMongoStore connects to Mongo and ensures the signal URL index exists.
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	store := &MongoStore{db: client.Database(database)}
	if err := store.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(signalsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "url", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create signal index: %w", err)
	}

	_, err = s.db.Collection(contentCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "insight_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create content index: %w", err)
	}

	return nil
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

type signalDoc struct {
	URL       string            `bson:"url"`
	Title     string            `bson:"title"`
	Content   string            `bson:"content"`
	Source    string            `bson:"source"`
	Metadata  map[string]string `bson:"metadata"`
	Status    string            `bson:"status"`
	ScrapedAt time.Time         `bson:"scraped_at"`
}

// InsertSignals writes a batch, counting unique-index collisions as
// duplicates rather than failures. An ingest_stats document records the
// batch so duplicate rates can be aggregated per window.
func (s *MongoStore) InsertSignals(ctx context.Context, signals []models.ScrapeResult) (int, int, error) {
	if len(signals) == 0 {
		return 0, 0, nil
	}

	docs := make([]interface{}, 0, len(signals))
	for _, sig := range signals {
		docs = append(docs, signalDoc{
			URL:       sig.URL,
			Title:     sig.Title,
			Content:   sig.Content,
			Source:    sig.Source,
			Metadata:  sig.Metadata,
			Status:    "pending",
			ScrapedAt: sig.ScrapedAt,
		})
	}

	inserted := len(docs)
	duplicates := 0

	_, err := s.db.Collection(signalsCollection).InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		bulkErr, ok := err.(mongo.BulkWriteException)
		if !ok {
			return 0, 0, fmt.Errorf("failed to insert signals: %w", err)
		}

		for _, we := range bulkErr.WriteErrors {
			if mongo.IsDuplicateKeyError(we.WriteError) {
				duplicates++
			} else {
				return 0, 0, fmt.Errorf("failed to insert signals: %w", err)
			}
		}
		inserted -= duplicates
	}

	_, err = s.db.Collection(ingestStatsColl).InsertOne(ctx, bson.M{
		"at":         time.Now().UTC(),
		"inserted":   inserted,
		"duplicates": duplicates,
	})
	if err != nil {
		logrus.Errorf("Failed to record ingest stats: %v", err)
	}

	return inserted, duplicates, nil
}

// SignalStats aggregates signal counts over [start, end).
func (s *MongoStore) SignalStats(ctx context.Context, start, end time.Time) (int, map[string]int, int, int, error) {
	window := bson.M{"$gte": start, "$lt": end}

	total, err := s.db.Collection(signalsCollection).CountDocuments(ctx, bson.M{"scraped_at": window})
	if err != nil {
		return 0, nil, 0, 0, fmt.Errorf("failed to count signals: %w", err)
	}

	pending, err := s.db.Collection(signalsCollection).CountDocuments(ctx, bson.M{
		"scraped_at": window,
		"status":     "pending",
	})
	if err != nil {
		return 0, nil, 0, 0, fmt.Errorf("failed to count pending signals: %w", err)
	}

	bySource := make(map[string]int)
	cursor, err := s.db.Collection(signalsCollection).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"scraped_at": window}}},
		{{Key: "$group", Value: bson.M{"_id": "$source", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return 0, nil, 0, 0, fmt.Errorf("failed to group signals by source: %w", err)
	}
	var groups []struct {
		ID    string `bson:"_id"`
		Count int    `bson:"count"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return 0, nil, 0, 0, err
	}
	for _, g := range groups {
		bySource[g.ID] = g.Count
	}

	duplicates := 0
	cursor, err = s.db.Collection(ingestStatsColl).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"at": window}}},
		{{Key: "$group", Value: bson.M{"_id": nil, "duplicates": bson.M{"$sum": "$duplicates"}}}},
	})
	if err != nil {
		return 0, nil, 0, 0, fmt.Errorf("failed to sum duplicates: %w", err)
	}
	var dupGroups []struct {
		Duplicates int `bson:"duplicates"`
	}
	if err := cursor.All(ctx, &dupGroups); err != nil {
		return 0, nil, 0, 0, err
	}
	if len(dupGroups) > 0 {
		duplicates = dupGroups[0].Duplicates
	}

	return int(total), bySource, duplicates, int(pending), nil
}

// InsightStats aggregates insight counts, per-dimension averages, and
// integer score-bucket distributions over [start, end). Null dimension
// values are excluded from both averages and buckets.
func (s *MongoStore) InsightStats(ctx context.Context, start, end time.Time) (int, map[string]float64, map[string]map[string]int, error) {
	window := bson.M{"$gte": start, "$lt": end}

	total, err := s.db.Collection(insightsCollection).CountDocuments(ctx, bson.M{"created_at": window})
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to count insights: %w", err)
	}

	averages := make(map[string]float64)
	distribution := make(map[string]map[string]int)

	for _, dim := range dimensionFields {
		field := "$dimensions." + dim

		cursor, err := s.db.Collection(insightsCollection).Aggregate(ctx, mongo.Pipeline{
			{{Key: "$match", Value: bson.M{
				"created_at":        window,
				"dimensions." + dim: bson.M{"$ne": nil},
			}}},
			{{Key: "$group", Value: bson.M{
				"_id":   bson.M{"$floor": field},
				"count": bson.M{"$sum": 1},
				"sum":   bson.M{"$sum": field},
			}}},
		})
		if err != nil {
			return 0, nil, nil, fmt.Errorf("failed to aggregate dimension %s: %w", dim, err)
		}

		var buckets []struct {
			ID    float64 `bson:"_id"`
			Count int     `bson:"count"`
			Sum   float64 `bson:"sum"`
		}
		if err := cursor.All(ctx, &buckets); err != nil {
			return 0, nil, nil, err
		}

		if len(buckets) == 0 {
			continue
		}

		count := 0
		sum := 0.0
		dist := make(map[string]int)
		for _, b := range buckets {
			count += b.Count
			sum += b.Sum
			dist[fmt.Sprintf("%.0f", b.ID)] = b.Count
		}

		averages[dim] = sum / float64(count)
		distribution[dim] = dist
	}

	return int(total), averages, distribution, nil
}

// FindQualifying returns insights at or above minScore that moderation has
// not rejected.
func (s *MongoStore) FindQualifying(ctx context.Context, minScore float64) ([]models.Insight, error) {
	cursor, err := s.db.Collection(insightsCollection).Find(ctx, bson.M{
		"overall_score": bson.M{"$gte": minScore},
		"status":        bson.M{"$ne": "rejected"},
	}, options.Find().SetSort(bson.D{{Key: "overall_score", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find qualifying insights: %w", err)
	}

	var insights []models.Insight
	if err := cursor.All(ctx, &insights); err != nil {
		return nil, err
	}

	return insights, nil
}

// InsertContent writes drafts, skipping insights that already have a
// content item. Returns how many were actually inserted.
func (s *MongoStore) InsertContent(ctx context.Context, items []models.ContentItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	docs := make([]interface{}, 0, len(items))
	for _, item := range items {
		docs = append(docs, item)
	}

	inserted := len(docs)

	_, err := s.db.Collection(contentCollection).InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		bulkErr, ok := err.(mongo.BulkWriteException)
		if !ok {
			return 0, fmt.Errorf("failed to insert content: %w", err)
		}

		for _, we := range bulkErr.WriteErrors {
			if !mongo.IsDuplicateKeyError(we.WriteError) {
				return 0, fmt.Errorf("failed to insert content: %w", err)
			}
		}
		inserted -= len(bulkErr.WriteErrors)
	}

	return inserted, nil
}

// ContentByStatus returns content items in the given lifecycle state.
func (s *MongoStore) ContentByStatus(ctx context.Context, status string) ([]models.ContentItem, error) {
	cursor, err := s.db.Collection(contentCollection).Find(ctx, bson.M{"status": status},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find content by status: %w", err)
	}

	var items []models.ContentItem
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}

	return items, nil
}

// SetContentStatus moves one content item to a new lifecycle state.
func (s *MongoStore) SetContentStatus(ctx context.Context, id, status string) error {
	_, err := s.db.Collection(contentCollection).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return fmt.Errorf("failed to update content status: %w", err)
	}
	return nil
}

// RecordRun persists one pipeline run record.
func (s *MongoStore) RecordRun(ctx context.Context, run models.PipelineRun) error {
	_, err := s.db.Collection(pipelineRunsColl).InsertOne(ctx, run)
	if err != nil {
		return fmt.Errorf("failed to record pipeline run: %w", err)
	}
	return nil
}
