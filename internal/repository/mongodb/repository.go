package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/wacloud/internal/domain/models"
)

const (
	updatesCollection = "updates"
	reportsCollection = "daily_reports"
)

// Repository defines the interface for update audit and report storage.
type Repository interface {
	SaveUpdate(ctx context.Context, record models.UpdateRecord) error
	SaveDailyReport(ctx context.Context, report models.DailyReport) error
}

// collection is the subset of *mongo.Collection the repository relies on.
type collection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
}

// MongoDBRepository implements the Repository interface for MongoDB.
type MongoDBRepository struct {
	client  *mongo.Client
	updates collection
	reports collection
}

// NewMongoDBRepository connects to uri and verifies the connection.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(dbName)
	return &MongoDBRepository{
		client:  client,
		updates: db.Collection(updatesCollection),
		reports: db.Collection(reportsCollection),
	}, nil
}

// SaveUpdate stores the audit record of one received update.
func (r *MongoDBRepository) SaveUpdate(ctx context.Context, record models.UpdateRecord) error {
	if _, err := r.updates.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to insert update %s: %w", record.UpdateID, err)
	}
	return nil
}

// SaveDailyReport upserts the report of the given day.
func (r *MongoDBRepository) SaveDailyReport(ctx context.Context, report models.DailyReport) error {
	_, err := r.reports.ReplaceOne(ctx,
		bson.M{"date": report.Date},
		report,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily report: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Disconnect(ctx)
}
