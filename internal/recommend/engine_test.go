package recommend

import (
	"math"
	"testing"

	"github.com/handrew/reelrec/internal/catalog"
	"github.com/handrew/reelrec/internal/sentiment"
)

// Catalog where A and B share their whole genre set and C/D/E share
// nothing with A.
func genreCatalog() []catalog.Movie {
	return []catalog.Movie{
		{ID: 1, Title: "A", Genres: []string{"Action", "Thriller"}},
		{ID: 2, Title: "B", Genres: []string{"Action", "Thriller"}},
		{ID: 3, Title: "C", Genres: []string{"Romance"}},
		{ID: 4, Title: "D", Genres: []string{"Comedy"}},
		{ID: 5, Title: "E", Genres: []string{"Documentary"}},
	}
}

func TestContentSharedGenresWin(t *testing.T) {
	e := New(genreCatalog(), nil)

	got := e.Content("A", 1)
	if len(got) != 1 {
		t.Fatalf("expected 1 recommendation, got %d", len(got))
	}
	if got[0].Movie.Title != "B" {
		t.Errorf("expected B, got %s (score %f)", got[0].Movie.Title, got[0].Score)
	}
	if got[0].Score <= 0 {
		t.Errorf("expected positive similarity for shared genre set, got %f", got[0].Score)
	}
}

func TestContentExcludesTarget(t *testing.T) {
	e := New(genreCatalog(), nil)
	for _, title := range []string{"A", "B", "C"} {
		for _, rec := range e.Content(title, 10) {
			if rec.Movie.Title == title {
				t.Errorf("target %q appeared in its own recommendations", title)
			}
		}
	}
}

func TestContentCaps(t *testing.T) {
	e := New(genreCatalog(), nil)
	if got := e.Content("A", 2); len(got) != 2 {
		t.Errorf("n=2: got %d results", len(got))
	}
	// At most |catalog|-1 when the target is excluded.
	if got := e.Content("A", 100); len(got) > len(genreCatalog())-1 {
		t.Errorf("got %d results, want at most %d", len(got), len(genreCatalog())-1)
	}
}

func TestContentUnknownTitle(t *testing.T) {
	e := New(genreCatalog(), nil)
	if got := e.Content("Nonexistent", 5); len(got) != 0 {
		t.Errorf("unknown title: got %d results, want 0", len(got))
	}
}

func TestContentEmptyCatalog(t *testing.T) {
	e := New(nil, nil)
	if got := e.Content("A", 5); len(got) != 0 {
		t.Errorf("empty catalog: got %d results", len(got))
	}
}

func TestContentCaseInsensitiveLookup(t *testing.T) {
	e := New(genreCatalog(), nil)
	if got := e.Content("  a ", 1); len(got) != 1 || got[0].Movie.Title != "B" {
		t.Errorf("case/space-insensitive lookup failed: %+v", got)
	}
}

func TestContentToleratesMissingFields(t *testing.T) {
	movies := []catalog.Movie{
		{ID: 1, Title: "Full", Genres: []string{"Action"}, Overview: "explosions", Cast: []string{"Someone"}},
		{ID: 2, Title: "Bare"}, // no overview, cast, genres
		{ID: 3, Title: "AlsoAction", Genres: []string{"Action"}},
	}
	e := New(movies, nil)
	got := e.Content("Full", 2)
	if len(got) == 0 {
		t.Fatal("engine aborted on a record with missing fields")
	}
	if got[0].Movie.Title != "AlsoAction" {
		t.Errorf("expected AlsoAction first, got %s", got[0].Movie.Title)
	}
}

func TestSentimentMonotonicAndThreshold(t *testing.T) {
	movies := []catalog.Movie{
		{ID: 1, Title: "Joy", Overview: "A wonderful, delightful and heartwarming triumph."},
		{ID: 2, Title: "Meh", Overview: "A film about a person who goes to work."},
		{ID: 3, Title: "Doom", Overview: "A horrible, depressing disaster full of misery and dread."},
	}
	e := New(movies, nil)

	got := e.Sentiment(-1, 10)
	if len(got) != 3 {
		t.Fatalf("min=-1: got %d results, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("scores not non-increasing at %d: %f > %f", i, got[i].Score, got[i-1].Score)
		}
	}

	positiveOnly := e.Sentiment(0.05, 10)
	for _, rec := range positiveOnly {
		if rec.Score < 0.05 {
			t.Errorf("%s scored %f, below the threshold", rec.Movie.Title, rec.Score)
		}
	}
}

func TestRatingHistory(t *testing.T) {
	e := New(genreCatalog(), nil)
	ratings := map[string]float64{
		"A": 9, // liked -> neighbors of A are candidates
		"C": 2, // rated but not liked -> still excluded from results
	}

	got := e.RatingHistory(ratings, 10)
	if len(got) == 0 {
		t.Fatal("expected recommendations from liked history")
	}
	if got[0].Movie.Title != "B" {
		t.Errorf("expected B first, got %s", got[0].Movie.Title)
	}
	for _, rec := range got {
		if rec.Movie.Title == "A" || rec.Movie.Title == "C" {
			t.Errorf("already-rated movie %s recommended", rec.Movie.Title)
		}
	}
}

func TestRatingHistoryNoLiked(t *testing.T) {
	e := New(genreCatalog(), nil)
	got := e.RatingHistory(map[string]float64{"A": 3}, 10)
	if len(got) != 0 {
		t.Errorf("no liked movies: got %d results, want 0", len(got))
	}
}

func TestRatingHistoryEmpty(t *testing.T) {
	e := New(genreCatalog(), nil)
	if got := e.RatingHistory(nil, 10); len(got) != 0 {
		t.Errorf("empty ratings: got %d results", len(got))
	}
}

func TestHybridWeightedSum(t *testing.T) {
	analyzer := sentiment.NewAnalyzer()
	movies := []catalog.Movie{
		{ID: 1, Title: "A", Genres: []string{"Action", "Thriller"}, Overview: "A thrilling and wonderful ride."},
		{ID: 2, Title: "B", Genres: []string{"Action", "Thriller"}, Overview: "An excellent, exciting film."},
		{ID: 3, Title: "C", Genres: []string{"Action"}, Overview: "A fine movie with some charm."},
		{ID: 4, Title: "D", Genres: []string{"Romance"}, Overview: "A lovely and touching romance."},
	}
	e := New(movies, analyzer)

	req := HybridRequest{
		TargetTitle:  "A",
		Ratings:      map[string]float64{"A": 9},
		MinSentiment: -1,
		N:            3,
	}
	got := e.Hybrid(req)
	if len(got) == 0 {
		t.Fatal("hybrid returned nothing")
	}
	for _, rec := range got {
		if rec.Movie.Title == "A" {
			t.Error("target movie appeared in hybrid output")
		}
	}

	// Rebuild the expected blend from the public strategy outputs.
	pool := req.N * 2
	content := normalizeByID(e.Content(req.TargetTitle, pool))
	history := normalizeByID(e.RatingHistory(req.Ratings, pool))
	sentiments := normalizeByID(e.Sentiment(req.MinSentiment, pool))

	for _, rec := range got {
		id := rec.Movie.ID
		want := DefaultWeights.Content*content[id] +
			DefaultWeights.History*history[id] +
			DefaultWeights.Sentiment*sentiments[id]
		if math.Abs(rec.Score-want) > 1e-9 {
			t.Errorf("%s: hybrid score %f, want weighted sum %f", rec.Movie.Title, rec.Score, want)
		}
	}

	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Errorf("hybrid scores not sorted at %d", i)
		}
	}
}

func TestHybridCustomWeights(t *testing.T) {
	e := New(genreCatalog(), nil)
	// Content-only blend: sentiment and history weights zeroed.
	got := e.Hybrid(HybridRequest{
		TargetTitle: "A",
		N:           1,
		Weights:     &Weights{Content: 1},
		MinSentiment: 2, // above any polarity, empties the sentiment set
	})
	if len(got) != 1 || got[0].Movie.Title != "B" {
		t.Errorf("content-only hybrid: got %+v, want B", got)
	}
}

func TestNormalizeByID(t *testing.T) {
	scored := []Scored{
		{Movie: catalog.Movie{ID: 1}, Score: 0.2},
		{Movie: catalog.Movie{ID: 2}, Score: 0.6},
		{Movie: catalog.Movie{ID: 3}, Score: 1.0},
	}
	norm := normalizeByID(scored)
	if norm[1] != 0 || norm[3] != 1 {
		t.Errorf("min-max endpoints wrong: %v", norm)
	}
	if math.Abs(norm[2]-0.5) > 1e-9 {
		t.Errorf("midpoint = %f, want 0.5", norm[2])
	}

	constant := normalizeByID([]Scored{{Movie: catalog.Movie{ID: 7}, Score: 0.4}})
	if constant[7] != 1 {
		t.Errorf("singleton set should normalize to 1, got %f", constant[7])
	}

	if normalizeByID(nil) != nil {
		t.Error("empty input should normalize to nil")
	}
}
