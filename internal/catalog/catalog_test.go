package catalog

import (
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/ibrbtv/backend/internal/models"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := baseTime.Add(d)
	return &t
}

func ids(videos []models.Video) []string {
	out := make([]string, len(videos))
	for i, v := range videos {
		out[i] = v.ID
	}
	return out
}

func upcomingIDs(entries []UpcomingEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Video.ID
	}
	return out
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func scenarioVideos() []models.Video {
	return []models.Video{
		{ID: "L", Title: "Culto ao vivo", Category: "A", IsLive: true, YouTubeURL: "https://www.youtube.com/embed/live"},
		{ID: "S", Title: "Evento especial", Category: "B", ScheduledAt: at(10 * time.Minute), YouTubeURL: "https://www.youtube.com/embed/s"},
		{ID: "P1", Title: "Estudo bíblico", Category: "A", YouTubeURL: "https://www.youtube.com/embed/p1"},
		{ID: "P2", Title: "Domingo de manhã", Category: "B", YouTubeURL: "https://www.youtube.com/embed/p2"},
	}
}

func TestUpcomingContainsExactlyFutureVideos(t *testing.T) {
	videos := []models.Video{
		{ID: "past", ScheduledAt: at(-time.Hour)},
		{ID: "none"},
		{ID: "soon", ScheduledAt: at(time.Minute)},
		{ID: "later", ScheduledAt: at(2 * time.Hour)},
		{ID: "exact", ScheduledAt: at(0)},
	}

	view := Derive(Input{Videos: videos, Now: baseTime, Seed: 1})

	if got := upcomingIDs(view.Upcoming); !equalStrings(got, []string{"soon", "later"}) {
		t.Fatalf("unexpected upcoming list: %v", got)
	}
	for _, v := range view.Catalog {
		if v.ID == "soon" || v.ID == "later" {
			t.Fatalf("future video %s leaked into catalog", v.ID)
		}
	}
	if got := sortedCopy(ids(view.Catalog)); !equalStrings(got, []string{"exact", "none", "past"}) {
		t.Fatalf("unexpected catalog set: %v", got)
	}
}

func TestAcknowledgedVideosAreAvailableFirst(t *testing.T) {
	videos := []models.Video{
		{ID: "future", ScheduledAt: at(5 * time.Minute)},
		{ID: "released", ScheduledAt: at(-time.Second)},
	}

	view := Derive(Input{
		Videos: videos,
		Now:    baseTime,
		State:  State{Acknowledged: map[string]struct{}{"released": {}}},
	})

	if got := upcomingIDs(view.Upcoming); !equalStrings(got, []string{"released", "future"}) {
		t.Fatalf("unexpected upcoming order: %v", got)
	}
	if !view.Upcoming[0].Available || view.Upcoming[1].Available {
		t.Fatalf("unexpected availability flags: %+v", view.Upcoming)
	}
	if len(view.Catalog) != 0 {
		t.Fatalf("acknowledged video should not be in catalog: %v", ids(view.Catalog))
	}
	if view.Upcoming[1].Countdown != "00:05:00" {
		t.Fatalf("unexpected countdown label: %q", view.Upcoming[1].Countdown)
	}
}

func TestCatalogIsPermutationWithoutFilters(t *testing.T) {
	var videos []models.Video
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		videos = append(videos, models.Video{ID: id, Category: "X"})
	}
	videos = append(videos, models.Video{ID: "live", IsLive: true}, models.Video{ID: "up", ScheduledAt: at(time.Hour)})

	view := Derive(Input{Videos: videos, Now: baseTime, Seed: 42})

	if got := sortedCopy(ids(view.Catalog)); !equalStrings(got, []string{"a", "b", "c", "d", "e", "f", "g"}) {
		t.Fatalf("catalog is not a permutation of browsable videos: %v", got)
	}

	again := Derive(Input{Videos: videos, Now: baseTime.Add(time.Minute), Seed: 42})
	if !equalStrings(ids(view.Catalog), ids(again.Catalog)) {
		t.Fatalf("order changed across derivations of the same set: %v vs %v", ids(view.Catalog), ids(again.Catalog))
	}

	reversed := make([]models.Video, len(videos))
	for i, v := range videos {
		reversed[len(videos)-1-i] = v
	}
	shuffledFromReverse := Derive(Input{Videos: reversed, Now: baseTime, Seed: 42})
	if !equalStrings(ids(view.Catalog), ids(shuffledFromReverse.Catalog)) {
		t.Fatalf("order should depend only on seed and id set")
	}
}

func TestCatalogKeepsStoreOrderUnderFilters(t *testing.T) {
	videos := []models.Video{
		{ID: "1", Title: "Estudo de Romanos", Category: "Estudo"},
		{ID: "2", Title: "Louvor", Category: "Música"},
		{ID: "3", Title: "ESTUDO de Atos", Category: "Estudo"},
		{ID: "4", Title: "Estudo especial", Category: "Evento"},
	}

	tests := []struct {
		name     string
		category string
		search   string
		want     []string
	}{
		{name: "category only", category: "Estudo", want: []string{"1", "3"}},
		{name: "search only", category: AllCategories, search: "estudo", want: []string{"1", "3", "4"}},
		{name: "both", category: "Estudo", search: "atos", want: []string{"3"}},
		{name: "no match", category: "Música", search: "estudo", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			view := Derive(Input{
				Videos: videos,
				Now:    baseTime,
				State:  State{SelectedCategory: tt.category, SearchTerm: tt.search},
				Seed:   7,
			})
			if got := ids(view.Catalog); !equalStrings(got, tt.want) {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}
}

func TestRequestedVideoWinsAndSwitchesCategory(t *testing.T) {
	videos := scenarioVideos()

	view := Derive(Input{
		Videos:      videos,
		Now:         baseTime,
		State:       State{SelectedCategory: "A", SelectedID: "P1"},
		RequestedID: "P2",
	})

	if view.Current == nil || view.Current.ID != "P2" {
		t.Fatalf("expected requested video to be selected, got %+v", view.Current)
	}
	if view.SelectedCategory != "B" {
		t.Fatalf("expected category to switch to B, got %q", view.SelectedCategory)
	}
	if !view.RequestApplied {
		t.Fatal("expected request to be marked applied")
	}
	if strings.Count(view.Current.YouTubeURL, "autoplay=1") != 1 {
		t.Fatalf("expected autoplay in playback url, got %q", view.Current.YouTubeURL)
	}
}

func TestRequestedVideoClearsHidingSearch(t *testing.T) {
	videos := scenarioVideos()

	view := Derive(Input{
		Videos:      videos,
		Now:         baseTime,
		State:       State{SearchTerm: "estudo"},
		RequestedID: "P2",
	})
	if view.Current == nil || view.Current.ID != "P2" || view.SearchTerm != "" {
		t.Fatalf("expected P2 bound with search cleared, got current=%+v search=%q", view.Current, view.SearchTerm)
	}

	next := Derive(Input{
		Videos: videos,
		Now:    baseTime,
		State:  State{SelectedCategory: view.SelectedCategory, SearchTerm: view.SearchTerm, SelectedID: view.SelectedID, Explicit: view.Explicit},
	})
	if next.Current == nil || next.Current.ID != "P2" || !next.Explicit {
		t.Fatalf("expected P2 to stay bound on the next derivation, got %+v", next.Current)
	}

	kept := Derive(Input{
		Videos:      videos,
		Now:         baseTime,
		State:       State{SearchTerm: "domingo"},
		RequestedID: "P2",
	})
	if kept.SearchTerm != "domingo" {
		t.Fatalf("a search that matches the requested video must be kept, got %q", kept.SearchTerm)
	}
}

func TestRequestedUpcomingVideoIsIgnored(t *testing.T) {
	view := Derive(Input{
		Videos:      scenarioVideos(),
		Now:         baseTime,
		State:       State{SelectedID: "P1"},
		RequestedID: "S",
	})

	if view.RequestApplied {
		t.Fatal("request for an upcoming video must not be applied")
	}
	if view.Current == nil || view.Current.ID != "P1" {
		t.Fatalf("expected existing selection to be kept, got %+v", view.Current)
	}
}

func TestEndToEndScenario(t *testing.T) {
	videos := scenarioVideos()

	view := Derive(Input{Videos: videos, Now: baseTime, Seed: 3})
	if got := upcomingIDs(view.Upcoming); !equalStrings(got, []string{"S"}) {
		t.Fatalf("unexpected upcoming: %v", got)
	}
	if view.Live == nil || view.Live.ID != "L" {
		t.Fatalf("expected live video L, got %+v", view.Live)
	}
	if view.Current == nil || view.Current.ID != "L" {
		t.Fatalf("expected L selected, got %+v", view.Current)
	}
	if got := sortedCopy(ids(view.Catalog)); !equalStrings(got, []string{"P1", "P2"}) {
		t.Fatalf("unexpected catalog: %v", got)
	}

	filtered := Derive(Input{
		Videos: videos,
		Now:    baseTime,
		State:  State{SelectedCategory: "A", SelectedID: "P2", Explicit: true},
		Seed:   3,
	})
	if got := ids(filtered.Catalog); !equalStrings(got, []string{"P1"}) {
		t.Fatalf("expected only P1 in category A, got %v", got)
	}
	if got := upcomingIDs(filtered.Upcoming); !equalStrings(got, []string{"S"}) {
		t.Fatalf("upcoming must ignore the category filter, got %v", got)
	}
	if filtered.Current == nil || (filtered.Current.ID != "L" && filtered.Current.ID != "P1") {
		t.Fatalf("expected reselection to fall to L or P1, got %+v", filtered.Current)
	}
}

func TestSelectionFallbacks(t *testing.T) {
	t.Run("keeps visible selection", func(t *testing.T) {
		view := Derive(Input{Videos: scenarioVideos(), Now: baseTime, State: State{SelectedID: "P2"}})
		if view.Current == nil || view.Current.ID != "P2" {
			t.Fatalf("expected P2 kept, got %+v", view.Current)
		}
		if strings.Contains(view.Current.YouTubeURL, "autoplay") {
			t.Fatalf("implicit selection should keep stored url, got %q", view.Current.YouTubeURL)
		}
	})

	t.Run("first catalog video without live", func(t *testing.T) {
		videos := []models.Video{{ID: "1", Category: "A"}, {ID: "2", Category: "A"}}
		view := Derive(Input{Videos: videos, Now: baseTime, State: State{SelectedCategory: "A"}})
		if view.Current == nil || view.Current.ID != "1" {
			t.Fatalf("expected first catalog video, got %+v", view.Current)
		}
	})

	t.Run("only upcoming leaves selection alone", func(t *testing.T) {
		videos := []models.Video{{ID: "S", ScheduledAt: at(time.Hour)}}
		view := Derive(Input{Videos: videos, Now: baseTime})
		if view.Current != nil {
			t.Fatalf("expected no selection, got %+v", view.Current)
		}
		if view.Empty {
			t.Fatal("store is not empty")
		}
	})

	t.Run("empty store", func(t *testing.T) {
		view := Derive(Input{Now: baseTime, State: State{SelectedID: "gone"}})
		if view.Current != nil || !view.Empty {
			t.Fatalf("expected explicit empty state, got %+v", view)
		}
	})

	t.Run("live hidden by search", func(t *testing.T) {
		view := Derive(Input{Videos: scenarioVideos(), Now: baseTime, State: State{SearchTerm: "domingo"}})
		if view.Live != nil {
			t.Fatalf("live video should not pass a non-matching search, got %+v", view.Live)
		}
		if view.Current == nil || view.Current.ID != "P2" {
			t.Fatalf("expected P2, got %+v", view.Current)
		}
	})
}

func TestCountByCategory(t *testing.T) {
	counts := CountByCategory(scenarioVideos(), []models.Category{
		{ID: "b", Name: "B"},
		{ID: "a", Name: "A"},
		{ID: "c", Name: "C"},
	})

	want := []CategoryCount{{ID: "a", Name: "A", Count: 2}, {ID: "b", Name: "B", Count: 2}, {ID: "c", Name: "C", Count: 0}}
	if len(counts) != len(want) {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("count %d: got %+v want %+v", i, counts[i], want[i])
		}
	}
}
