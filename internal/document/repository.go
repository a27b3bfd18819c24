package document

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const collectionName = "documents"

type Repository interface {
	Create(ctx context.Context, doc *Document, payload []byte) error
	Get(ctx context.Context, id string) (*Document, error)
	Payload(ctx context.Context, id string) ([]byte, error)
	ListByPatient(ctx context.Context, patientID string) ([]*Document, error)
	Delete(ctx context.Context, id string) error
}

type storedDocument struct {
	Document `bson:",inline"`
	Payload  []byte `bson:"payload"`
}

type mongoRepository struct {
	coll *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepository{coll: db.Collection(collectionName)}
}

// EnsureIndexes creates the patient lookup index.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(collectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "patient_id", Value: 1}, {Key: "upload_date", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create document indexes: %w", err)
	}
	return nil
}

var metadataOnly = bson.M{"payload": 0}

func (r *mongoRepository) Create(ctx context.Context, doc *Document, payload []byte) error {
	if _, err := r.coll.InsertOne(ctx, storedDocument{Document: *doc, Payload: payload}); err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}
	return nil
}

func (r *mongoRepository) Get(ctx context.Context, id string) (*Document, error) {
	var doc Document
	err := r.coll.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(metadataOnly)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	return &doc, nil
}

func (r *mongoRepository) Payload(ctx context.Context, id string) ([]byte, error) {
	var stored struct {
		Payload []byte `bson:"payload"`
	}
	err := r.coll.FindOne(ctx, bson.M{"_id": id}, options.FindOne().SetProjection(bson.M{"payload": 1})).Decode(&stored)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrDocumentNotFound
		}
		return nil, fmt.Errorf("failed to load document payload: %w", err)
	}
	return stored.Payload, nil
}

func (r *mongoRepository) ListByPatient(ctx context.Context, patientID string) ([]*Document, error) {
	findOptions := options.Find().
		SetProjection(metadataOnly).
		SetSort(bson.D{{Key: "upload_date", Value: -1}})

	cursor, err := r.coll.Find(ctx, bson.M{"patient_id": patientID}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer cursor.Close(ctx)

	docs := []*Document{}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode documents: %w", err)
	}
	return docs, nil
}

func (r *mongoRepository) Delete(ctx context.Context, id string) error {
	result, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrDocumentNotFound
	}
	return nil
}
