package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/text/cases"

	"github.com/ibrbtv/backend/internal/models"
)

const (
	collectionAdminUsers = "admin_users"
	collectionSessions   = "sessions"
)

type mongoVideo struct {
	ID            string     `bson:"_id"`
	YouTubeURL    string     `bson:"youtubeUrl"`
	Title         string     `bson:"title"`
	Summary       string     `bson:"summary"`
	Category      string     `bson:"category"`
	FinalCategory string     `bson:"finalCategory,omitempty"`
	ScheduledAt   *time.Time `bson:"scheduledAt,omitempty"`
	ViewCount     int64      `bson:"viewCount"`
	CreatedAt     time.Time  `bson:"createdAt"`
}

func (d mongoVideo) model() models.Video {
	v := models.Video{
		ID:            d.ID,
		YouTubeURL:    d.YouTubeURL,
		Title:         d.Title,
		Summary:       d.Summary,
		Category:      d.Category,
		FinalCategory: d.FinalCategory,
		ViewCount:     d.ViewCount,
		CreatedAt:     d.CreatedAt.UTC(),
	}
	if d.ScheduledAt != nil {
		t := d.ScheduledAt.UTC()
		v.ScheduledAt = &t
	}
	return v
}

type mongoCategory struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	NameKey   string    `bson:"nameKey"`
	CreatedAt time.Time `bson:"createdAt"`
}

type mongoSettings struct {
	ID             string    `bson:"_id"`
	LogoURL        string    `bson:"logoUrl"`
	DefaultSummary string    `bson:"defaultSummary"`
	LiveVideoID    string    `bson:"liveVideoId"`
	UpdatedAt      time.Time `bson:"updatedAt"`
}

type mongoAdminUser struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"passwordHash"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}

// EnsureMongoIndexes creates the unique indexes the Mongo repositories rely on.
func EnsureMongoIndexes(ctx context.Context, database *mongo.Database) error {
	indexes := []struct {
		collection string
		model      mongo.IndexModel
	}{
		{CollectionCategories, mongo.IndexModel{Keys: bson.D{{Key: "nameKey", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{CollectionVideos, mongo.IndexModel{Keys: bson.D{{Key: "createdAt", Value: -1}}}},
		{collectionAdminUsers, mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)}},
		{collectionSessions, mongo.IndexModel{Keys: bson.D{{Key: "userId", Value: 1}}}},
	}

	for _, idx := range indexes {
		if _, err := database.Collection(idx.collection).Indexes().CreateOne(ctx, idx.model); err != nil {
			return fmt.Errorf("create index on %s: %w", idx.collection, err)
		}
	}
	return nil
}

// MongoVideoRepository stores videos in the "videos" collection.
type MongoVideoRepository struct {
	database *mongo.Database
}

// NewMongoVideoRepository constructs a video repository backed by MongoDB.
func NewMongoVideoRepository(database *mongo.Database) *MongoVideoRepository {
	return &MongoVideoRepository{database: database}
}

func (r *MongoVideoRepository) collection() *mongo.Collection {
	return r.database.Collection(CollectionVideos)
}

// List returns every video, newest first.
func (r *MongoVideoRepository) List(ctx context.Context) ([]models.Video, error) {
	cursor, err := r.collection().Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find videos: %w", err)
	}

	var docs []mongoVideo
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode videos: %w", err)
	}

	videos := make([]models.Video, 0, len(docs))
	for _, d := range docs {
		videos = append(videos, d.model())
	}
	return videos, nil
}

// Get loads a single video.
func (r *MongoVideoRepository) Get(ctx context.Context, id string) (models.Video, error) {
	var doc mongoVideo
	if err := r.collection().FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("find video: %w", err)
	}
	return doc.model(), nil
}

// Create stores a new video.
func (r *MongoVideoRepository) Create(ctx context.Context, video models.Video) error {
	doc := mongoVideo{
		ID:            video.ID,
		YouTubeURL:    video.YouTubeURL,
		Title:         video.Title,
		Summary:       video.Summary,
		Category:      video.Category,
		FinalCategory: video.FinalCategory,
		ScheduledAt:   video.ScheduledAt,
		ViewCount:     video.ViewCount,
		CreatedAt:     video.CreatedAt,
	}
	if _, err := r.collection().InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

// Update applies patch with $set/$unset and returns the stored result.
func (r *MongoVideoRepository) Update(ctx context.Context, id string, patch models.VideoPatch) (models.Video, error) {
	set := bson.M{}
	unset := bson.M{}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Summary != nil {
		set["summary"] = *patch.Summary
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}
	if patch.FinalCategory != nil {
		set["finalCategory"] = *patch.FinalCategory
	}
	switch {
	case patch.ClearSchedule:
		unset["scheduledAt"] = ""
	case patch.ScheduledAt != nil:
		set["scheduledAt"] = patch.ScheduledAt.UTC()
	}

	if len(set) == 0 && len(unset) == 0 {
		return r.Get(ctx, id)
	}

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	var doc mongoVideo
	err := r.collection().FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("update video: %w", err)
	}
	return doc.model(), nil
}

// Delete removes a video and clears the live pointer when it referenced it.
func (r *MongoVideoRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}

	_, err = r.database.Collection(CollectionSettings).UpdateOne(ctx,
		bson.M{"_id": models.SettingsDocumentID, "liveVideoId": id},
		bson.M{"$set": bson.M{"liveVideoId": "", "updatedAt": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("clear live video: %w", err)
	}
	return nil
}

// IncrementViews atomically bumps the view counter with $inc.
func (r *MongoVideoRepository) IncrementViews(ctx context.Context, id string) error {
	res, err := r.collection().UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"viewCount": 1}})
	if err != nil {
		return fmt.Errorf("increment video views: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MongoCategoryRepository stores categories with a case-folded unique key.
type MongoCategoryRepository struct {
	database *mongo.Database
}

// NewMongoCategoryRepository constructs a category repository backed by MongoDB.
func NewMongoCategoryRepository(database *mongo.Database) *MongoCategoryRepository {
	return &MongoCategoryRepository{database: database}
}

func (r *MongoCategoryRepository) collection() *mongo.Collection {
	return r.database.Collection(CollectionCategories)
}

// List returns categories ordered by name.
func (r *MongoCategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	cursor, err := r.collection().Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find categories: %w", err)
	}

	var docs []mongoCategory
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}

	categories := make([]models.Category, 0, len(docs))
	for _, d := range docs {
		categories = append(categories, models.Category{ID: d.ID, Name: d.Name, CreatedAt: d.CreatedAt.UTC()})
	}
	return categories, nil
}

// Create stores a new category. A case-insensitive name clash yields ErrConflict.
func (r *MongoCategoryRepository) Create(ctx context.Context, category models.Category) error {
	doc := mongoCategory{
		ID:        category.ID,
		Name:      category.Name,
		NameKey:   cases.Fold().String(category.Name),
		CreatedAt: category.CreatedAt,
	}
	if _, err := r.collection().InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

// Delete removes a category.
func (r *MongoCategoryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.collection().DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MongoSettingsRepository stores the settings document under _id "config".
type MongoSettingsRepository struct {
	database *mongo.Database
}

// NewMongoSettingsRepository constructs a settings repository backed by MongoDB.
func NewMongoSettingsRepository(database *mongo.Database) *MongoSettingsRepository {
	return &MongoSettingsRepository{database: database}
}

// Get loads the settings document, returning zero Settings when absent.
func (r *MongoSettingsRepository) Get(ctx context.Context) (models.Settings, error) {
	var doc mongoSettings
	err := r.database.Collection(CollectionSettings).FindOne(ctx, bson.M{"_id": models.SettingsDocumentID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Settings{}, nil
		}
		return models.Settings{}, fmt.Errorf("find settings: %w", err)
	}
	return models.Settings{
		LogoURL:        doc.LogoURL,
		DefaultSummary: doc.DefaultSummary,
		LiveVideoID:    doc.LiveVideoID,
		UpdatedAt:      doc.UpdatedAt.UTC(),
	}, nil
}

// Upsert merges patch into the settings document. A live video id must
// reference an existing video.
func (r *MongoSettingsRepository) Upsert(ctx context.Context, patch models.SettingsPatch) (models.Settings, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if patch.LogoURL != nil {
		set["logoUrl"] = *patch.LogoURL
	}
	if patch.DefaultSummary != nil {
		set["defaultSummary"] = *patch.DefaultSummary
	}
	if patch.LiveVideoID != nil {
		if *patch.LiveVideoID != "" {
			count, err := r.database.Collection(CollectionVideos).CountDocuments(ctx, bson.M{"_id": *patch.LiveVideoID})
			if err != nil {
				return models.Settings{}, fmt.Errorf("check live video: %w", err)
			}
			if count == 0 {
				return models.Settings{}, ErrNotFound
			}
		}
		set["liveVideoId"] = *patch.LiveVideoID
	}

	var doc mongoSettings
	err := r.database.Collection(CollectionSettings).FindOneAndUpdate(ctx,
		bson.M{"_id": models.SettingsDocumentID},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)).Decode(&doc)
	if err != nil {
		return models.Settings{}, fmt.Errorf("upsert settings: %w", err)
	}
	return models.Settings{
		LogoURL:        doc.LogoURL,
		DefaultSummary: doc.DefaultSummary,
		LiveVideoID:    doc.LiveVideoID,
		UpdatedAt:      doc.UpdatedAt.UTC(),
	}, nil
}

// MongoAdminUserRepository stores admin accounts.
type MongoAdminUserRepository struct {
	database *mongo.Database
}

// NewMongoAdminUserRepository constructs an admin user repository backed by MongoDB.
func NewMongoAdminUserRepository(database *mongo.Database) *MongoAdminUserRepository {
	return &MongoAdminUserRepository{database: database}
}

// Create persists a new admin account.
func (r *MongoAdminUserRepository) Create(ctx context.Context, user models.AdminUser) error {
	_, err := r.database.Collection(collectionAdminUsers).InsertOne(ctx, mongoAdminUser(user))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert admin user: %w", err)
	}
	return nil
}

// FindByEmail fetches an admin account by email address.
func (r *MongoAdminUserRepository) FindByEmail(ctx context.Context, email string) (models.AdminUser, error) {
	var doc mongoAdminUser
	if err := r.database.Collection(collectionAdminUsers).FindOne(ctx, bson.M{"email": email}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.AdminUser{}, ErrNotFound
		}
		return models.AdminUser{}, fmt.Errorf("find admin user: %w", err)
	}
	return models.AdminUser(doc), nil
}

// Update replaces an existing admin account.
func (r *MongoAdminUserRepository) Update(ctx context.Context, user models.AdminUser) error {
	res, err := r.database.Collection(collectionAdminUsers).UpdateOne(ctx,
		bson.M{"_id": user.ID},
		bson.M{"$set": bson.M{"email": user.Email, "passwordHash": user.PasswordHash, "updatedAt": user.UpdatedAt}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("update admin user: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

var _ VideoRepository = (*MongoVideoRepository)(nil)
var _ CategoryRepository = (*MongoCategoryRepository)(nil)
var _ SettingsRepository = (*MongoSettingsRepository)(nil)
var _ AdminUserRepository = (*MongoAdminUserRepository)(nil)
