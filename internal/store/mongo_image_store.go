package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/dunamismax/imaginify/internal/lazy"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	DefaultMongoDatabase = "imaginify"
	imagesCollection     = "images"
)

// mongoImage is the stored document shape.
type mongoImage struct {
	ID                 primitive.ObjectID      `bson:"_id,omitempty"`
	Author             string                  `bson:"author"`
	Title              string                  `bson:"title"`
	TransformationType string                  `bson:"transformationType"`
	PublicID           string                  `bson:"publicId"`
	SecureURL          string                  `bson:"secureURL"`
	Width              int                     `bson:"width,omitempty"`
	Height             int                     `bson:"height,omitempty"`
	Config             *domain.Transformations `bson:"config,omitempty"`
	TransformationURL  string                  `bson:"transformationURL,omitempty"`
	AspectRatio        string                  `bson:"aspectRatio,omitempty"`
	Color              string                  `bson:"color,omitempty"`
	Prompt             string                  `bson:"prompt,omitempty"`
	ExportStatus       string                  `bson:"exportStatus,omitempty"`
	ExportKey          string                  `bson:"exportKey,omitempty"`
	CreatedAt          time.Time               `bson:"createdAt"`
	UpdatedAt          time.Time               `bson:"updatedAt"`
}

type MongoImageStore struct {
	conn     *lazy.Handle[*mongo.Client]
	database string
	now      func() time.Time
}

// OpenMongo returns an open function for a lazy handle. The client is pinged
// before it is handed out.
func OpenMongo(uri string) lazy.OpenFunc[*mongo.Client] {
	return func(ctx context.Context) (*mongo.Client, error) {
		client, err := mongo.Connect(ctx, options.Client().
			ApplyURI(uri).
			SetAppName("imaginify"))
		if err != nil {
			return nil, fmt.Errorf("connect mongodb: %w", err)
		}

		if err := client.Ping(ctx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("ping mongodb: %w", err)
		}
		return client, nil
	}
}

// DisconnectMongo is the close function for a mongo lazy handle.
func DisconnectMongo(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return client.Disconnect(ctx)
}

func NewMongoImageStore(conn *lazy.Handle[*mongo.Client], database string) *MongoImageStore {
	if database == "" {
		database = DefaultMongoDatabase
	}
	return &MongoImageStore{
		conn:     conn,
		database: database,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MongoImageStore) EnsureIndexes(ctx context.Context) error {
	coll, err := s.collection(ctx)
	if err != nil {
		return err
	}
	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "author", Value: 1}, {Key: "updatedAt", Value: -1}},
	})
	if err != nil {
		return persistenceError("create images index", err)
	}
	return nil
}

func (s *MongoImageStore) Create(ctx context.Context, owner string, img domain.ImageRecord) (domain.ImageRecord, error) {
	img, err := prepareCreate(owner, img, s.now())
	if err != nil {
		return domain.ImageRecord{}, err
	}

	coll, err := s.collection(ctx)
	if err != nil {
		return domain.ImageRecord{}, err
	}

	res, err := coll.InsertOne(ctx, toMongoImage(img))
	if err != nil {
		return domain.ImageRecord{}, persistenceError("insert image", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return domain.ImageRecord{}, persistenceError("insert image", fmt.Errorf("unexpected id type %T", res.InsertedID))
	}
	img.ID = oid.Hex()
	return img, nil
}

func (s *MongoImageStore) Update(ctx context.Context, owner, id string, img domain.ImageRecord) (domain.ImageRecord, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return domain.ImageRecord{}, err
	}
	img, err = prepareUpdate(owner, existing, img, s.now())
	if err != nil {
		return domain.ImageRecord{}, err
	}

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ImageRecord{}, notFound(id)
	}
	coll, err := s.collection(ctx)
	if err != nil {
		return domain.ImageRecord{}, err
	}

	doc := toMongoImage(img)
	var updated mongoImage
	err = coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": oid, "author": img.Owner},
		bson.M{"$set": bson.M{
			"title":              doc.Title,
			"transformationType": doc.TransformationType,
			"publicId":           doc.PublicID,
			"secureURL":          doc.SecureURL,
			"width":              doc.Width,
			"height":             doc.Height,
			"config":             doc.Config,
			"transformationURL":  doc.TransformationURL,
			"aspectRatio":        doc.AspectRatio,
			"color":              doc.Color,
			"prompt":             doc.Prompt,
			"exportStatus":       doc.ExportStatus,
			"exportKey":          doc.ExportKey,
			"updatedAt":          doc.UpdatedAt,
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ImageRecord{}, notFound(id)
		}
		return domain.ImageRecord{}, persistenceError("update image", err)
	}
	return fromMongoImage(updated), nil
}

func (s *MongoImageStore) Get(ctx context.Context, id string) (domain.ImageRecord, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ImageRecord{}, notFound(id)
	}
	coll, err := s.collection(ctx)
	if err != nil {
		return domain.ImageRecord{}, err
	}

	var doc mongoImage
	if err := coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ImageRecord{}, notFound(id)
		}
		return domain.ImageRecord{}, persistenceError("find image", err)
	}
	return fromMongoImage(doc), nil
}

func (s *MongoImageStore) ListByOwner(ctx context.Context, owner string, limit int) ([]domain.ImageRecord, error) {
	coll, err := s.collection(ctx)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(
		ctx,
		bson.M{"author": owner},
		options.Find().
			SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
			SetLimit(int64(normalizeLimit(limit))),
	)
	if err != nil {
		return nil, persistenceError("list images", err)
	}

	var docs []mongoImage
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, persistenceError("decode images", err)
	}

	out := make([]domain.ImageRecord, 0, len(docs))
	for _, doc := range docs {
		out = append(out, fromMongoImage(doc))
	}
	return out, nil
}

func (s *MongoImageStore) Delete(ctx context.Context, owner, id string) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := checkOwner(owner, existing); err != nil {
		return err
	}

	oid, _ := primitive.ObjectIDFromHex(id)
	coll, err := s.collection(ctx)
	if err != nil {
		return err
	}
	if _, err := coll.DeleteOne(ctx, bson.M{"_id": oid, "author": owner}); err != nil {
		return persistenceError("delete image", err)
	}
	return nil
}

func (s *MongoImageStore) SetExport(ctx context.Context, id, status, key string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return notFound(id)
	}
	coll, err := s.collection(ctx)
	if err != nil {
		return err
	}

	set := bson.M{"exportStatus": status, "updatedAt": s.now()}
	if key != "" {
		set["exportKey"] = key
	}
	res, err := coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return persistenceError("update export status", err)
	}
	if res.MatchedCount == 0 {
		return notFound(id)
	}
	return nil
}

func (s *MongoImageStore) collection(ctx context.Context) (*mongo.Collection, error) {
	client, err := s.conn.Get(ctx)
	if err != nil {
		return nil, persistenceError("connect", err)
	}
	return client.Database(s.database).Collection(imagesCollection), nil
}

func toMongoImage(img domain.ImageRecord) mongoImage {
	doc := mongoImage{
		Author:             img.Owner,
		Title:              img.Title,
		TransformationType: string(img.TransformationType),
		PublicID:           img.AssetID,
		SecureURL:          img.SecureURL,
		Width:              img.Width,
		Height:             img.Height,
		Config:             img.Config,
		TransformationURL:  img.TransformationURL,
		AspectRatio:        img.AspectRatio,
		Color:              img.Color,
		Prompt:             img.Prompt,
		ExportStatus:       img.ExportStatus,
		ExportKey:          img.ExportKey,
		CreatedAt:          img.CreatedAt,
		UpdatedAt:          img.UpdatedAt,
	}
	if oid, err := primitive.ObjectIDFromHex(img.ID); err == nil {
		doc.ID = oid
	}
	return doc
}

func fromMongoImage(doc mongoImage) domain.ImageRecord {
	img := domain.ImageRecord{
		Owner:              doc.Author,
		Title:              doc.Title,
		TransformationType: domain.TransformationType(doc.TransformationType),
		AssetID:            doc.PublicID,
		SecureURL:          doc.SecureURL,
		Width:              doc.Width,
		Height:             doc.Height,
		Config:             doc.Config,
		TransformationURL:  doc.TransformationURL,
		AspectRatio:        doc.AspectRatio,
		Color:              doc.Color,
		Prompt:             doc.Prompt,
		ExportStatus:       doc.ExportStatus,
		ExportKey:          doc.ExportKey,
		CreatedAt:          doc.CreatedAt.UTC(),
		UpdatedAt:          doc.UpdatedAt.UTC(),
	}
	if !doc.ID.IsZero() {
		img.ID = doc.ID.Hex()
	}
	return img
}
