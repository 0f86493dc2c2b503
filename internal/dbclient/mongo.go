package dbclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"esgdata/internal/config"
	"esgdata/internal/domain"
	"esgdata/internal/logging"
)

// ErrMissingKey is returned for reporting documents without isin or date.
var ErrMissingKey = errors.New("reporting requires isin and date")

// MongoStore persists SustainabilityReporting documents.
type MongoStore struct {
	client  *mongo.Client
	db      *mongo.Database
	coll    *mongo.Collection
	timeout time.Duration
	log     *zap.Logger
}

// NewMongoStore connects to the document store described by cfg.
func NewMongoStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (*MongoStore, error) {
	log = logging.OrNop(log).Named("mongo")

	log.Info("connecting", zap.String("uri", redactURI(cfg.Mongo.URI)), zap.String("database", cfg.Mongo.Database))

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	s := &MongoStore{
		client:  client,
		db:      client.Database(cfg.Mongo.Database),
		timeout: cfg.GetMongoTimeout(),
		log:     log,
	}
	s.coll = s.db.Collection(cfg.Mongo.Collection)

	if err := s.TestConnection(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return s, nil
}

// redactURI masks the password of a mongodb:// or mongodb+srv:// URI for logging.
func redactURI(uri string) string {
	scheme := ""
	rest := uri
	for _, prefix := range []string{"mongodb+srv://", "mongodb://"} {
		if strings.HasPrefix(uri, prefix) {
			scheme, rest = prefix, uri[len(prefix):]
			break
		}
	}
	at := strings.LastIndex(rest, "@")
	if at == -1 {
		return uri
	}
	creds := rest[:at]
	if colon := strings.Index(creds, ":"); colon != -1 {
		creds = creds[:colon] + ":***"
	}
	return scheme + creds + rest[at:]
}

func (s *MongoStore) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.client.Ping(ctx, nil)
}

// EnsureIndexes creates the unique (isin, date) index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "isin", Value: 1}, {Key: "date", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("isin_date_unique"),
	})
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// UpsertReporting replaces the delivery for (isin, date), inserting it if absent.
func (s *MongoStore) UpsertReporting(ctx context.Context, r *domain.SustainabilityReporting) error {
	if r.ISIN == "" || r.Date.IsZero() {
		return ErrMissingKey
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	filter := bson.D{{Key: "isin", Value: r.ISIN}, {Key: "date", Value: r.Date}}
	// The replacement must not carry a zero _id over an existing document.
	doc := *r
	doc.ID = bson.ObjectID{}
	res, err := s.coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", r.ISIN, r.Date.Format(time.DateOnly), err)
	}
	if id, ok := res.UpsertedID.(bson.ObjectID); ok {
		r.ID = id
	}
	s.log.Debug("upserted reporting",
		zap.String("isin", r.ISIN),
		zap.Time("date", r.Date),
		zap.Int64("matched", res.MatchedCount),
		zap.Int64("upserted", res.UpsertedCount))
	return nil
}

// DeleteDelivery removes every reporting of the given delivery date.
func (s *MongoStore) DeleteDelivery(ctx context.Context, date time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err := s.coll.DeleteMany(ctx, bson.D{{Key: "date", Value: date}})
	if err != nil {
		return 0, fmt.Errorf("delete delivery: %w", err)
	}
	return res.DeletedCount, nil
}

// FindByISIN returns all deliveries for isin, newest first.
func (s *MongoStore) FindByISIN(ctx context.Context, isin string) ([]domain.SustainabilityReporting, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cursor, err := s.coll.Find(ctx, bson.D{{Key: "isin", Value: isin}},
		options.Find().SetSort(bson.D{{Key: "date", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	var out []domain.SustainabilityReporting
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return out, nil
}

// Aggregate runs pipeline against collection (the reporting collection when
// empty) and returns the documents with nested documents as maps.
func (s *MongoStore) Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]bson.M, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	coll := s.coll
	if collection != "" {
		coll = s.db.Collection(collection)
	}
	cursor, err := coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	for cursor.Next(ctx) {
		var raw bson.Raw
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		doc, err := decodeM(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := cursor.Err(); err != nil {
		s.log.Warn("cursor error", zap.Error(err))
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return docs, nil
}

// decodeM decodes raw with every nested document as bson.M.
func decodeM(raw bson.Raw) (bson.M, error) {
	dec := bson.NewDecoder(bson.NewDocumentReader(bytes.NewReader(raw)))
	dec.DefaultDocumentM()
	var doc bson.M
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return doc, nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
