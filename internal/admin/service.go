// Package admin implements the catalog management operations behind the
// admin forms. Every operation validates fully before writing anything.
package admin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/ibrbtv/backend/internal/logging"
	"github.com/ibrbtv/backend/internal/models"
	"github.com/ibrbtv/backend/internal/repositories"
	"github.com/ibrbtv/backend/internal/summary"
	"github.com/ibrbtv/backend/internal/videos"
)

const localScheduleLayout = "2006-01-02T15:04"

// SummaryGenerator produces an AI title and summary for a video URL.
type SummaryGenerator interface {
	Generate(ctx context.Context, videoURL string) (summary.Result, error)
}

// ImageStore persists uploaded images and returns their public URL.
type ImageStore interface {
	SaveImage(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// ProfanityChecker flags offensive text.
type ProfanityChecker interface {
	IsProfane(s string) bool
}

// Service coordinates admin writes across the stores and external services.
type Service struct {
	Videos     repositories.VideoRepository
	Categories repositories.CategoryRepository
	Settings   repositories.SettingsRepository
	Titles     videos.Provider
	Summaries  SummaryGenerator
	Images     ImageStore
	Profanity  ProfanityChecker
	Location   *time.Location
	NowFunc    func() time.Time
}

// AddVideoInput is the add-video form.
type AddVideoInput struct {
	URL           string `json:"youtubeUrl"`
	Category      string `json:"category"`
	FinalCategory string `json:"finalCategory"`
	ScheduledAt   string `json:"scheduledAt"`
	Summary       string `json:"summary"`
	Generate      bool   `json:"generateSummary"`
}

// UpdateVideoInput is the edit-video form. Nil fields are left unchanged; an
// empty ScheduledAt clears the schedule.
type UpdateVideoInput struct {
	Title         *string `json:"title"`
	Summary       *string `json:"summary"`
	Category      *string `json:"category"`
	FinalCategory *string `json:"finalCategory"`
	ScheduledAt   *string `json:"scheduledAt"`
	Live          *bool   `json:"isLive"`
}

// SettingsInput is the settings form.
type SettingsInput struct {
	LogoURL        *string `json:"logoUrl"`
	DefaultSummary *string `json:"defaultSummary"`
}

// ListVideos returns every video with IsLive resolved.
func (s *Service) ListVideos(ctx context.Context) ([]models.Video, error) {
	list, err := s.Videos.List(ctx)
	if err != nil {
		return nil, err
	}
	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].IsLive = settings.LiveVideoID != "" && list[i].ID == settings.LiveVideoID
	}
	return list, nil
}

// AddVideo validates the form, resolves the title (and optionally an AI
// summary), and stores the video in embed form.
func (s *Service) AddVideo(ctx context.Context, in AddVideoInput) (models.Video, error) {
	ctx, span := logging.StartSpan(ctx, "admin.add_video")
	defer span.End()
	logger := logging.FromContext(ctx)

	rawURL := strings.TrimSpace(in.URL)
	if !isAbsoluteHTTPURL(rawURL) {
		return models.Video{}, invalid("youtubeUrl", "please enter a valid YouTube URL")
	}

	category, err := s.resolveCategory(ctx, in.Category)
	if err != nil {
		return models.Video{}, err
	}
	finalCategory := ""
	if strings.TrimSpace(in.FinalCategory) != "" {
		if finalCategory, err = s.resolveCategory(ctx, in.FinalCategory); err != nil {
			return models.Video{}, retag(err, "finalCategory")
		}
	}

	scheduledAt, err := s.parseSchedule(in.ScheduledAt)
	if err != nil {
		return models.Video{}, err
	}

	embed := videos.EmbedURL(rawURL)
	if !videos.IsEmbed(embed) {
		return models.Video{}, invalid("youtubeUrl", "the provided URL does not look like a valid YouTube video")
	}

	var title, generated string
	if in.Generate {
		if s.Summaries == nil {
			return models.Video{}, &ExternalError{Message: summary.Message(summary.ErrUnavailable), Err: summary.ErrUnavailable}
		}
		result, err := s.Summaries.Generate(ctx, rawURL)
		if err != nil {
			return models.Video{}, &ExternalError{Message: summary.Message(err), Err: err}
		}
		title, generated = result.Title, result.Summary
	}
	if title == "" {
		if s.Titles == nil {
			return models.Video{}, &ExternalError{Message: "could not fetch the video title", Err: videos.ErrProviderUnavailable}
		}
		meta, err := s.Titles.Lookup(ctx, rawURL)
		if err != nil {
			logger.Warn("title lookup failed", slog.String("url", rawURL), slog.Any("error", err))
			return models.Video{}, &ExternalError{Message: "could not fetch the video title", Err: err}
		}
		title = meta.Title
	}

	text := strings.TrimSpace(in.Summary)
	if text == "" {
		text = generated
	}
	if text == "" {
		settings, err := s.Settings.Get(ctx)
		if err != nil {
			return models.Video{}, err
		}
		text = settings.DefaultSummary
	}

	video := models.Video{
		ID:            uuid.NewString(),
		YouTubeURL:    embed,
		Title:         title,
		Summary:       text,
		Category:      category,
		FinalCategory: finalCategory,
		ScheduledAt:   scheduledAt,
		CreatedAt:     s.now(),
	}
	if err := s.Videos.Create(ctx, video); err != nil {
		return models.Video{}, err
	}

	logger.Info("video added", slog.String("video_id", video.ID), slog.String("category", category))
	return video, nil
}

// UpdateVideo applies the edit form. Setting Live makes this the single live
// video; clearing it only unsets the pointer if it referenced this video.
func (s *Service) UpdateVideo(ctx context.Context, id string, in UpdateVideoInput) (models.Video, error) {
	ctx, span := logging.StartSpan(ctx, "admin.update_video")
	defer span.End()

	var patch models.VideoPatch
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return models.Video{}, invalid("title", "title is required")
		}
		patch.Title = &title
	}
	if in.Summary != nil {
		text := strings.TrimSpace(*in.Summary)
		patch.Summary = &text
	}
	if in.Category != nil {
		category, err := s.resolveCategory(ctx, *in.Category)
		if err != nil {
			return models.Video{}, err
		}
		patch.Category = &category
	}
	if in.FinalCategory != nil {
		final := ""
		if strings.TrimSpace(*in.FinalCategory) != "" {
			var err error
			if final, err = s.resolveCategory(ctx, *in.FinalCategory); err != nil {
				return models.Video{}, retag(err, "finalCategory")
			}
		}
		patch.FinalCategory = &final
	}
	if in.ScheduledAt != nil {
		scheduledAt, err := s.parseSchedule(*in.ScheduledAt)
		if err != nil {
			return models.Video{}, err
		}
		if scheduledAt == nil {
			patch.ClearSchedule = true
		} else {
			patch.ScheduledAt = scheduledAt
		}
	}

	// Settings are read before anything is written so a failing settings
	// store leaves the edit unapplied. The two documents are still written
	// separately; a failed live upsert after the video write is reported and
	// the admin retries, last write wins.
	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return models.Video{}, err
	}

	video, err := s.Videos.Update(ctx, id, patch)
	if err != nil {
		return models.Video{}, err
	}

	if in.Live != nil {
		if settings, err = s.setLive(ctx, settings, id, *in.Live); err != nil {
			return models.Video{}, err
		}
	}
	video.IsLive = settings.LiveVideoID == video.ID
	return video, nil
}

// SetLive marks or unmarks the video as the live broadcast.
func (s *Service) SetLive(ctx context.Context, id string, live bool) (models.Settings, error) {
	ctx, span := logging.StartSpan(ctx, "admin.set_live")
	defer span.End()

	if _, err := s.Videos.Get(ctx, id); err != nil {
		return models.Settings{}, err
	}
	settings, err := s.Settings.Get(ctx)
	if err != nil {
		return models.Settings{}, err
	}
	return s.setLive(ctx, settings, id, live)
}

func (s *Service) setLive(ctx context.Context, current models.Settings, id string, live bool) (models.Settings, error) {
	switch {
	case live && current.LiveVideoID != id:
		return s.Settings.Upsert(ctx, models.SettingsPatch{LiveVideoID: &id})
	case !live && current.LiveVideoID == id:
		empty := ""
		return s.Settings.Upsert(ctx, models.SettingsPatch{LiveVideoID: &empty})
	default:
		return current, nil
	}
}

// DeleteVideo removes a video. The store clears the live pointer with it.
func (s *Service) DeleteVideo(ctx context.Context, id string) error {
	ctx, span := logging.StartSpan(ctx, "admin.delete_video")
	defer span.End()
	return s.Videos.Delete(ctx, id)
}

// WatchNow releases a scheduled video immediately, filing it under its final
// category when one was chosen.
func (s *Service) WatchNow(ctx context.Context, id string) (models.Video, error) {
	ctx, span := logging.StartSpan(ctx, "admin.watch_now")
	defer span.End()

	video, err := s.Videos.Get(ctx, id)
	if err != nil {
		return models.Video{}, err
	}

	patch := models.VideoPatch{ClearSchedule: true}
	if final := strings.TrimSpace(video.FinalCategory); final != "" {
		empty := ""
		patch.Category = &final
		patch.FinalCategory = &empty
	}
	return s.Videos.Update(ctx, id, patch)
}

// ListCategories returns every category.
func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.Categories.List(ctx)
}

// AddCategory creates a category after blank, profanity and case-insensitive
// duplicate checks.
func (s *Service) AddCategory(ctx context.Context, name string) (models.Category, error) {
	ctx, span := logging.StartSpan(ctx, "admin.add_category")
	defer span.End()

	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return models.Category{}, invalid("name", "category name is required")
	}
	if s.Profanity != nil && s.Profanity.IsProfane(name) {
		return models.Category{}, invalid("name", "category name contains inappropriate language")
	}

	existing, err := s.Categories.List(ctx)
	if err != nil {
		return models.Category{}, err
	}
	if _, ok := findCategory(existing, name); ok {
		return models.Category{}, ErrDuplicateCategory
	}

	category := models.Category{ID: uuid.NewString(), Name: name, CreatedAt: s.now()}
	if err := s.Categories.Create(ctx, category); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.Category{}, ErrDuplicateCategory
		}
		return models.Category{}, err
	}
	return category, nil
}

// DeleteCategory removes a category. Videos keep their category string.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	ctx, span := logging.StartSpan(ctx, "admin.delete_category")
	defer span.End()
	return s.Categories.Delete(ctx, id)
}

// GetSettings returns the settings document.
func (s *Service) GetSettings(ctx context.Context) (models.Settings, error) {
	return s.Settings.Get(ctx)
}

// UpdateSettings merges the settings form into the settings document.
func (s *Service) UpdateSettings(ctx context.Context, in SettingsInput) (models.Settings, error) {
	ctx, span := logging.StartSpan(ctx, "admin.update_settings")
	defer span.End()

	var patch models.SettingsPatch
	if in.LogoURL != nil {
		logo := strings.TrimSpace(*in.LogoURL)
		if logo != "" && !isAbsoluteHTTPURL(logo) {
			return models.Settings{}, invalid("logoUrl", "logo must be an absolute URL")
		}
		patch.LogoURL = &logo
	}
	if in.DefaultSummary != nil {
		text := strings.TrimSpace(*in.DefaultSummary)
		patch.DefaultSummary = &text
	}
	if patch.LogoURL == nil && patch.DefaultSummary == nil {
		return s.Settings.Get(ctx)
	}
	return s.Settings.Upsert(ctx, patch)
}

// UploadLogo stores an image and points the settings logo at it.
func (s *Service) UploadLogo(ctx context.Context, name, contentType string, r io.Reader) (models.Settings, error) {
	ctx, span := logging.StartSpan(ctx, "admin.upload_logo")
	defer span.End()

	if s.Images == nil {
		return models.Settings{}, ErrUploadsDisabled
	}
	if !strings.HasPrefix(contentType, "image/") {
		return models.Settings{}, invalid("logo", "logo must be an image")
	}

	location, err := s.Images.SaveImage(ctx, name, contentType, r)
	if err != nil {
		return models.Settings{}, &ExternalError{Message: "could not upload the logo", Err: err}
	}
	return s.Settings.Upsert(ctx, models.SettingsPatch{LogoURL: &location})
}

func (s *Service) resolveCategory(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", invalid("category", "category is required")
	}
	existing, err := s.Categories.List(ctx)
	if err != nil {
		return "", err
	}
	category, ok := findCategory(existing, name)
	if !ok {
		return "", invalid("category", "unknown category")
	}
	return category.Name, nil
}

func findCategory(categories []models.Category, name string) (models.Category, bool) {
	fold := cases.Fold()
	want := fold.String(name)
	for _, c := range categories {
		if fold.String(strings.TrimSpace(c.Name)) == want {
			return c, true
		}
	}
	return models.Category{}, false
}

func (s *Service) parseSchedule(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(localScheduleLayout, raw, loc)
	if err != nil {
		return nil, invalid("scheduledAt", "invalid date and time")
	}
	t = t.UTC()
	return &t, nil
}

func retag(err error, field string) error {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return invalid(field, verr.Message)
	}
	return err
}

func isAbsoluteHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func (s *Service) now() time.Time {
	if s.NowFunc != nil {
		return s.NowFunc()
	}
	return time.Now().UTC()
}
