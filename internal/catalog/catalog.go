// Package catalog derives what a viewer sees on the watch page from the
// current store snapshot and the viewer's own state. Everything here is pure:
// no I/O, no clocks, no goroutines.
package catalog

import (
	"time"

	"github.com/ibrbtv/backend/internal/models"
)

// AllCategories is the category filter value that disables category filtering.
const AllCategories = "all"

// State is the per-viewer state the deriver reads.
type State struct {
	SelectedCategory string
	SearchTerm       string
	// Acknowledged holds ids of videos whose countdown completed while the
	// viewer was watching; they stay in the upcoming list until selected.
	Acknowledged map[string]struct{}
	SelectedID   string
	// Explicit marks a selection the viewer made on purpose. Explicit
	// non-live selections are bound with autoplay enabled.
	Explicit bool
}

// Input bundles everything Derive needs.
type Input struct {
	// Videos in store order (createdAt descending) with IsLive already resolved.
	Videos      []models.Video
	Categories  []models.Category
	Now         time.Time
	State       State
	RequestedID string
	Seed        uint64
}

// UpcomingEntry is a scheduled video or one whose countdown completed in this session.
type UpcomingEntry struct {
	Video           models.Video  `json:"video"`
	Available       bool          `json:"available"`
	StartsIn        time.Duration `json:"-"`
	StartsInSeconds int64         `json:"startsInSeconds"`
	Countdown       string        `json:"countdown"`
}

// View is the derived watch-page state.
type View struct {
	Live             *models.Video   `json:"live,omitempty"`
	Upcoming         []UpcomingEntry `json:"upcoming"`
	Catalog          []models.Video  `json:"catalog"`
	Current          *models.Video   `json:"current,omitempty"`
	SelectedID       string          `json:"selectedId,omitempty"`
	Explicit         bool            `json:"-"`
	SelectedCategory string          `json:"selectedCategory"`
	SearchTerm       string          `json:"searchTerm"`
	Categories       []CategoryCount `json:"categories"`
	Total            int             `json:"total"`
	Empty            bool            `json:"empty"`
	RequestApplied   bool            `json:"-"`
}

// Derive computes the watch-page view.
func Derive(in Input) View {
	state := in.State
	if state.SelectedCategory == "" {
		state.SelectedCategory = AllCategories
	}

	upcoming := Upcoming(in.Videos, state.Acknowledged, in.Now)
	upcomingIDs := make(map[string]struct{}, len(upcoming))
	for _, entry := range upcoming {
		upcomingIDs[entry.Video.ID] = struct{}{}
	}

	view := View{
		Upcoming:   upcoming,
		Categories: CountByCategory(in.Videos, in.Categories),
		Total:      len(in.Videos),
		Empty:      len(in.Videos) == 0,
	}

	var requested *models.Video
	if in.RequestedID != "" {
		if video, ok := findVideo(in.Videos, in.RequestedID); ok {
			if _, isUpcoming := upcomingIDs[video.ID]; !isUpcoming {
				requested = &video
				if video.Category != state.SelectedCategory {
					state.SelectedCategory = video.Category
				}
				// A search that hides the requested video is dropped so the
				// selection stays visible on later derivations.
				if !matchesSearch(video.Title, state.SearchTerm) {
					state.SearchTerm = ""
				}
			}
		}
	}

	view.Live = liveVideo(in.Videos, state.SearchTerm)
	view.Catalog = Filter(in.Videos, upcomingIDs, state.SelectedCategory, state.SearchTerm, in.Seed)
	view.SelectedCategory = state.SelectedCategory
	view.SearchTerm = state.SearchTerm

	var (
		current  *models.Video
		explicit bool
		kept     = visible(view, state.SelectedID)
	)
	switch {
	case requested != nil:
		current, explicit = requested, true
		view.RequestApplied = true
	case kept != nil:
		current, explicit = kept, state.Explicit
	case view.Live == nil && len(view.Catalog) == 0 && len(view.Upcoming) > 0:
		// Nothing browsable right now; leave whatever is bound alone.
		if previous, ok := findVideo(in.Videos, state.SelectedID); ok {
			current, explicit = &previous, state.Explicit
		}
	case view.Live != nil:
		current = view.Live
	case len(view.Catalog) > 0:
		current = &view.Catalog[0]
	}

	if current != nil {
		bound := *current
		if explicit && !bound.IsLive {
			bound.YouTubeURL = PlaybackURL(bound.YouTubeURL)
		}
		view.Current = &bound
		view.SelectedID = bound.ID
		view.Explicit = explicit
	}

	return view
}

func visible(view View, id string) *models.Video {
	if view.Live != nil && view.Live.ID == id {
		return view.Live
	}
	for i := range view.Catalog {
		if view.Catalog[i].ID == id {
			return &view.Catalog[i]
		}
	}
	return nil
}

func findVideo(videos []models.Video, id string) (models.Video, bool) {
	for _, v := range videos {
		if v.ID == id {
			return v, true
		}
	}
	return models.Video{}, false
}

func liveVideo(videos []models.Video, search string) *models.Video {
	for _, v := range videos {
		if !v.IsLive {
			continue
		}
		if !matchesSearch(v.Title, search) {
			return nil
		}
		live := v
		return &live
	}
	return nil
}
