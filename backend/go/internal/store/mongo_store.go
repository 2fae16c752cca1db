package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TaskAgent/backend/go/internal/models"
	"TaskAgent/backend/go/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoTaskStore is an implementation of TaskStore using MongoDB.
type MongoTaskStore struct {
	collection *mongo.Collection
	log        *logger.Logger
}

// NewMongoTaskStore creates a new MongoTaskStore.
func NewMongoTaskStore(collection *mongo.Collection) *MongoTaskStore {
	return &MongoTaskStore{collection: collection, log: logger.New("task_store", "", "")}
}

// FetchPending returns up to limit pending rows for sourceID, oldest first.
// A row that cannot be decoded is returned with only its id and source so
// the parser rejects it and the row leaves the pending state.
func (s *MongoTaskStore) FetchPending(ctx context.Context, sourceID string, limit int) ([]models.TaskRecord, error) {
	filter, opts := pendingQuery(sourceID, limit)
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("query pending tasks: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []models.TaskRecord
	for cursor.Next(ctx) {
		rec, err := decodeRow(cursor.Current)
		if err != nil {
			id, ok := rowID(cursor.Current)
			log := s.log.WithError(models.ErrorInfo{Message: err.Error()})
			if !ok {
				log.WithPayload(map[string]interface{}{"_id": cursor.Current.Lookup("_id").String()}).Warn("Skipping task row with unusable _id")
				continue
			}
			log.WithPayload(map[string]interface{}{"_id": id}).Warn("Task row could not be decoded")
			rec = models.TaskRecord{ID: id, SourceID: sourceID, Status: models.TaskStatusPending}
		}
		rec.Payload = plainMap(rec.Payload)
		rows = append(rows, rec)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending tasks: %w", err)
	}
	return rows, nil
}

// MarkInProgress claims a pending row. It reports false when another
// worker already moved the row on.
func (s *MongoTaskStore) MarkInProgress(ctx context.Context, taskID string) (bool, error) {
	filter, update := claimDoc(taskID, time.Now())
	res, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("claim task %s: %w", taskID, err)
	}
	return res.MatchedCount == 1, nil
}

// Complete writes the terminal status and result. Rows already terminal
// are left untouched.
func (s *MongoTaskStore) Complete(ctx context.Context, taskID string, status models.TaskStatus, result models.TaskResult) error {
	filter, update := completeDoc(taskID, status, result, time.Now())
	res, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("complete task %s: %w", taskID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func pendingQuery(sourceID string, limit int) (bson.M, *options.FindOptions) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	return bson.M{"source_id": sourceID, "status": models.TaskStatusPending}, opts
}

func claimDoc(taskID string, now time.Time) (bson.M, bson.M) {
	filter := idFilter(taskID)
	filter["status"] = models.TaskStatusPending
	update := bson.M{"$set": bson.M{"status": models.TaskStatusInProgress, "updated_at": now}}
	return filter, update
}

func completeDoc(taskID string, status models.TaskStatus, result models.TaskResult, now time.Time) (bson.M, bson.M) {
	response, errCode := completion(result)
	filter := idFilter(taskID)
	filter["status"] = bson.M{"$nin": bson.A{models.TaskStatusDone, models.TaskStatusFailed}}
	update := bson.M{
		"$set": bson.M{
			"status":       status,
			"result":       response,
			"error":        errCode,
			"updated_at":   now,
			"completed_at": now,
		},
	}
	return filter, update
}

// idFilter matches taskID as a string id, and also as an ObjectID for rows
// inserted by producers that let the driver generate _id.
func idFilter(taskID string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(taskID); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{taskID, oid}}}
	}
	return bson.M{"_id": taskID}
}

// rowID returns the row id as the string form used by the pipeline.
func rowID(raw bson.Raw) (string, bool) {
	v := raw.Lookup("_id")
	if oid, ok := v.ObjectIDOK(); ok {
		return oid.Hex(), true
	}
	if id, ok := v.StringValueOK(); ok && id != "" {
		return id, true
	}
	return "", false
}

func decodeRow(raw bson.Raw) (models.TaskRecord, error) {
	var rec models.TaskRecord
	if oid, ok := raw.Lookup("_id").ObjectIDOK(); ok {
		var doc bson.D
		if err := bson.Unmarshal(raw, &doc); err != nil {
			return rec, err
		}
		for i := range doc {
			if doc[i].Key == "_id" {
				doc[i].Value = oid.Hex()
			}
		}
		b, err := bson.Marshal(doc)
		if err != nil {
			return rec, err
		}
		raw = b
	}
	err := bson.Unmarshal(raw, &rec)
	return rec, err
}

// Create inserts a new task record into the database.
func (s *MongoTaskStore) Create(ctx context.Context, rec *models.TaskRecord) error {
	if rec.Status == "" {
		rec.Status = models.TaskStatusPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.collection.InsertOne(ctx, rec)
	return err
}

// GetByID retrieves a task by its ID.
func (s *MongoTaskStore) GetByID(ctx context.Context, taskID string) (*models.TaskRecord, error) {
	var rec models.TaskRecord
	raw, err := s.collection.FindOne(ctx, idFilter(taskID)).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if rec, err = decodeRow(raw); err != nil {
		return nil, fmt.Errorf("decode task %s: %w", taskID, err)
	}
	rec.Payload = plainMap(rec.Payload)
	rec.Result = plainMap(rec.Result)
	return &rec, nil
}

// plain replaces driver container types with plain maps and slices.
func plain(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.D:
		m := make(map[string]interface{}, len(t))
		for _, e := range t {
			m[e.Key] = plain(e.Value)
		}
		return m
	case primitive.M:
		return plainMap(t)
	case map[string]interface{}:
		return plainMap(t)
	case primitive.A:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = plain(item)
		}
		return out
	case primitive.DateTime:
		return t.Time().UTC().Format(time.RFC3339Nano)
	case primitive.ObjectID:
		return t.Hex()
	default:
		return v
	}
}

func plainMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = plain(v)
	}
	return out
}
