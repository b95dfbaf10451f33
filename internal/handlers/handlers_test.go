package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/handrew/reelrec/internal/catalog"
	"github.com/handrew/reelrec/internal/tmdb"
	"github.com/handrew/reelrec/internal/watchlist"
)

type stubTMDB struct {
	page    tmdb.Page
	details catalog.Movie
	genres  []tmdb.Genre
	people  []tmdb.Person
	reviews []string
	err     error

	trendingPage tmdb.Page
	popularPage  tmdb.Page

	genreCalls int
}

func (s *stubTMDB) SearchMovies(_ context.Context, _ string, _ int) (tmdb.Page, error) {
	return s.page, s.err
}

func (s *stubTMDB) MovieDetails(_ context.Context, _ int64) (catalog.Movie, error) {
	return s.details, s.err
}

func (s *stubTMDB) Discover(_ context.Context, _ tmdb.DiscoverFilters, _ int) (tmdb.Page, error) {
	return s.page, s.err
}

func (s *stubTMDB) Trending(_ context.Context, _ string, _ int) (tmdb.Page, error) {
	if s.trendingPage.Results != nil {
		return s.trendingPage, s.err
	}
	return s.page, s.err
}

func (s *stubTMDB) Popular(_ context.Context, _ int) (tmdb.Page, error) {
	if s.popularPage.Results != nil {
		return s.popularPage, s.err
	}
	return s.page, s.err
}

func (s *stubTMDB) TopRated(_ context.Context, _ int) (tmdb.Page, error)   { return s.page, s.err }
func (s *stubTMDB) NowPlaying(_ context.Context, _ int) (tmdb.Page, error) { return s.page, s.err }
func (s *stubTMDB) Upcoming(_ context.Context, _ int) (tmdb.Page, error)   { return s.page, s.err }

func (s *stubTMDB) Genres(_ context.Context) ([]tmdb.Genre, error) {
	s.genreCalls++
	return s.genres, s.err
}

func (s *stubTMDB) SearchPerson(_ context.Context, _ string, _ int) ([]tmdb.Person, error) {
	return s.people, s.err
}

func (s *stubTMDB) MovieReviews(_ context.Context, _ int64) ([]string, error) {
	return s.reviews, s.err
}

func newTestRouter(t *testing.T, stub *stubTMDB) chi.Router {
	t.Helper()
	store, err := watchlist.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})

	h, err := New(&Config{TMDB: stub, Store: store})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func doJSON(t *testing.T, r chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t, &stubTMDB{})
	rec := doJSON(t, r, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody[HealthResponse](t, rec); got.Status != "ok" {
		t.Errorf("body = %+v", got)
	}
}

func TestSearch(t *testing.T) {
	stub := &stubTMDB{page: tmdb.Page{
		Results: []catalog.Movie{{ID: 949, Title: "Heat"}},
		Page:    1, TotalPages: 1, TotalResults: 1,
	}}
	r := newTestRouter(t, stub)

	rec := doJSON(t, r, http.MethodGet, "/search?q=heat", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	got := decodeBody[PageResponse](t, rec)
	if len(got.Results) != 1 || got.Results[0].Title != "Heat" {
		t.Errorf("results = %+v", got.Results)
	}

	if rec := doJSON(t, r, http.MethodGet, "/search", nil); rec.Code != http.StatusBadRequest {
		t.Errorf("missing q: status = %d", rec.Code)
	}
}

func TestSearchUpstreamFailure(t *testing.T) {
	r := newTestRouter(t, &stubTMDB{err: errors.New("tmdb down")})
	rec := doJSON(t, r, http.MethodGet, "/search?q=heat", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if got := decodeBody[ErrorResponse](t, rec); got.Error == "" {
		t.Error("expected a JSON error body")
	}
}

func TestGetMovieBadID(t *testing.T) {
	r := newTestRouter(t, &stubTMDB{})
	// Non-numeric ids don't match the route pattern.
	if rec := doJSON(t, r, http.MethodGet, "/movies/abc", nil); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestGetMovieReviews(t *testing.T) {
	r := newTestRouter(t, &stubTMDB{reviews: []string{"Masterpiece."}})
	rec := doJSON(t, r, http.MethodGet, "/movies/949/reviews", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody[[]string](t, rec); len(got) != 1 || got[0] != "Masterpiece." {
		t.Errorf("reviews = %v", got)
	}
}

func TestGenresCached(t *testing.T) {
	stub := &stubTMDB{genres: []tmdb.Genre{{ID: 28, Name: "Action"}}}
	r := newTestRouter(t, stub)

	for range 3 {
		rec := doJSON(t, r, http.MethodGet, "/genres", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	}
	if stub.genreCalls != 1 {
		t.Errorf("genre list fetched %d times, want 1", stub.genreCalls)
	}
}

func TestPostFilter(t *testing.T) {
	r := newTestRouter(t, &stubTMDB{})
	minRating := 8.0

	rec := doJSON(t, r, http.MethodPost, "/filter", FilterRequest{
		Movies: []catalog.Movie{
			{ID: 1, Title: "Good", VoteAverage: 8.5},
			{ID: 2, Title: "Bad", VoteAverage: 3.0},
		},
		Filter: catalog.Filter{MinRating: &minRating},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	got := decodeBody[FilterResponse](t, rec)
	if got.Count != 1 || got.Movies[0].Title != "Good" {
		t.Errorf("response = %+v", got)
	}
}

func TestPostFilterEmptyInputIs200(t *testing.T) {
	r := newTestRouter(t, &stubTMDB{})
	rec := doJSON(t, r, http.MethodPost, "/filter", FilterRequest{})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decodeBody[FilterResponse](t, rec)
	if got.Count != 0 || got.Movies == nil {
		t.Errorf("want empty array, got %+v", got)
	}
}

func TestPostRecommend(t *testing.T) {
	r := newTestRouter(t, &stubTMDB{})
	movies := []catalog.Movie{
		{ID: 1, Title: "A", Genres: []string{"Action", "Thriller"}},
		{ID: 2, Title: "B", Genres: []string{"Action", "Thriller"}},
		{ID: 3, Title: "C", Genres: []string{"Romance"}},
	}

	rec := doJSON(t, r, http.MethodPost, "/recommend", RecommendRequest{
		Strategy: "content",
		Movies:   movies,
		Title:    "A",
		N:        1,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	got := decodeBody[RecommendResponse](t, rec)
	if got.Count != 1 || got.Results[0].Movie.Title != "B" {
		t.Errorf("response = %+v", got)
	}
}

func TestPostRecommendValidation(t *testing.T) {
	r := newTestRouter(t, &stubTMDB{})

	rec := doJSON(t, r, http.MethodPost, "/recommend", RecommendRequest{Strategy: "psychic"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("unknown strategy: status = %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/recommend", RecommendRequest{Strategy: "content"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("content without title: status = %d", rec.Code)
	}

	// Degenerate inputs are a 200 with an empty array.
	rec = doJSON(t, r, http.MethodPost, "/recommend", RecommendRequest{
		Strategy: "content",
		Title:    "Unknown",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody[RecommendResponse](t, rec); got.Count != 0 || got.Results == nil {
		t.Errorf("want empty array, got %+v", got)
	}
}

func TestPostQuery(t *testing.T) {
	r := newTestRouter(t, &stubTMDB{})
	movies := []catalog.Movie{
		{ID: 1, Title: "Scream", ReleaseDate: "1996-12-20", Genres: []string{"Horror"}},
		{ID: 2, Title: "Heat", ReleaseDate: "1995-12-15", Genres: []string{"Crime"}},
	}

	rec := doJSON(t, r, http.MethodPost, "/query", QueryRequest{
		Query:  "scary movies from the 90s",
		Movies: movies,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	got := decodeBody[QueryResponse](t, rec)
	if len(got.Movies) != 1 || got.Movies[0].Title != "Scream" {
		t.Errorf("movies = %+v", got.Movies)
	}
	if got.Parsed.Decade == nil || *got.Parsed.Decade != 1990 {
		t.Errorf("parsed = %+v", got.Parsed)
	}
	if !strings.Contains(got.Summary, "1 movie") {
		t.Errorf("summary = %q", got.Summary)
	}

	if rec := doJSON(t, r, http.MethodPost, "/query", QueryRequest{}); rec.Code != http.StatusBadRequest {
		t.Errorf("empty query: status = %d", rec.Code)
	}
}

func TestWatchlistFlow(t *testing.T) {
	r := newTestRouter(t, &stubTMDB{})
	movie := catalog.Movie{ID: 949, Title: "Heat", ReleaseDate: "1995-12-15", VoteAverage: 8.3}

	rec := doJSON(t, r, http.MethodPost, "/watchlist", movie)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: status = %d, body = %s", rec.Code, rec.Body)
	}
	entry := decodeBody[WatchlistEntry](t, rec)
	if entry.TMDBID != 949 || entry.Status != watchlist.StatusPlanned {
		t.Errorf("entry = %+v", entry)
	}

	rec = doJSON(t, r, http.MethodPost, "/watchlist/949/rating", RatingRequest{Rating: 9})
	if rec.Code != http.StatusOK {
		t.Fatalf("rate: status = %d, body = %s", rec.Code, rec.Body)
	}
	entry = decodeBody[WatchlistEntry](t, rec)
	if entry.Status != watchlist.StatusWatched || entry.Rating == nil || *entry.Rating != 9 {
		t.Errorf("rated entry = %+v", entry)
	}

	rec = doJSON(t, r, http.MethodPost, "/watchlist/949/toggle-status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle: status = %d", rec.Code)
	}
	if entry = decodeBody[WatchlistEntry](t, rec); entry.Status != watchlist.StatusPlanned {
		t.Errorf("toggled entry = %+v", entry)
	}

	rec = doJSON(t, r, http.MethodGet, "/watchlist", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}
	if got := decodeBody[WatchlistResponse](t, rec); got.Count != 1 {
		t.Errorf("list = %+v", got)
	}

	rec = doJSON(t, r, http.MethodDelete, "/watchlist/949", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/watchlist", nil)
	if got := decodeBody[WatchlistResponse](t, rec); got.Count != 0 {
		t.Errorf("list after delete = %+v", got)
	}
}

func TestWatchlistRatingValidation(t *testing.T) {
	r := newTestRouter(t, &stubTMDB{})

	rec := doJSON(t, r, http.MethodPost, "/watchlist/123/rating", RatingRequest{Rating: 5})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown movie: status = %d", rec.Code)
	}

	if rec := doJSON(t, r, http.MethodPost, "/watchlist", catalog.Movie{ID: 123, Title: "X"}); rec.Code != http.StatusCreated {
		t.Fatalf("add: status = %d", rec.Code)
	}
	rec = doJSON(t, r, http.MethodPost, "/watchlist/123/rating", RatingRequest{Rating: 42})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("out-of-range rating: status = %d", rec.Code)
	}
}

func TestWatchlistExport(t *testing.T) {
	r := newTestRouter(t, &stubTMDB{})
	if rec := doJSON(t, r, http.MethodPost, "/watchlist", catalog.Movie{ID: 1, Title: "Saved"}); rec.Code != http.StatusCreated {
		t.Fatalf("add: status = %d", rec.Code)
	}

	rec := doJSON(t, r, http.MethodGet, "/watchlist/export", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "attachment") {
		t.Errorf("Content-Disposition = %q", got)
	}
	payload := decodeBody[ExportPayload](t, rec)
	if payload.ExportedAt == "" || len(payload.Entries) != 1 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestWatchlistRecommendations(t *testing.T) {
	stub := &stubTMDB{
		trendingPage: tmdb.Page{Results: []catalog.Movie{
			{ID: 10, Title: "Liked", Genres: []string{"Action", "Thriller"}},
			{ID: 11, Title: "Neighbor", Genres: []string{"Action", "Thriller"}},
		}},
		popularPage: tmdb.Page{Results: []catalog.Movie{
			{ID: 11, Title: "Neighbor", Genres: []string{"Action", "Thriller"}},
			{ID: 12, Title: "Stranger", Genres: []string{"Romance"}},
		}},
	}
	r := newTestRouter(t, stub)

	// No ratings yet: empty 200.
	rec := doJSON(t, r, http.MethodGet, "/watchlist/recommendations", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody[RecommendResponse](t, rec); got.Count != 0 {
		t.Errorf("no ratings: %+v", got)
	}

	if rec := doJSON(t, r, http.MethodPost, "/watchlist", catalog.Movie{ID: 10, Title: "Liked"}); rec.Code != http.StatusCreated {
		t.Fatalf("add: status = %d", rec.Code)
	}
	if rec := doJSON(t, r, http.MethodPost, "/watchlist/10/rating", RatingRequest{Rating: 9}); rec.Code != http.StatusOK {
		t.Fatalf("rate: status = %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/watchlist/recommendations", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	got := decodeBody[RecommendResponse](t, rec)
	if got.Count == 0 {
		t.Fatal("expected recommendations from the rated movie")
	}
	if got.Results[0].Movie.Title != "Neighbor" {
		t.Errorf("first = %s, want Neighbor", got.Results[0].Movie.Title)
	}
	for _, res := range got.Results {
		if res.Movie.Title == "Liked" {
			t.Error("rated movie recommended back")
		}
	}
}

func TestStatsEndpoints(t *testing.T) {
	r := newTestRouter(t, &stubTMDB{})
	movies := []catalog.Movie{
		{Title: "A", ReleaseDate: "1995-01-01", VoteAverage: 8.3, Genres: []string{"Crime"}, Cast: []string{"Alice"}},
		{Title: "B", ReleaseDate: "2019-01-01", VoteAverage: 7.6, Genres: []string{"Crime", "History"}, Cast: []string{"Alice", "Bob"}},
	}

	rec := doJSON(t, r, http.MethodPost, "/stats/ratings", HistogramRequest{Movies: movies, Bins: 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("ratings: status = %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/stats/genres", MoviesRequest{Movies: movies})
	if rec.Code != http.StatusOK {
		t.Fatalf("genres: status = %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/stats/timeline", MoviesRequest{Movies: movies})
	if rec.Code != http.StatusOK {
		t.Fatalf("timeline: status = %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/stats/actors", ActorsRequest{Movies: movies, N: 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("actors: status = %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/stats/compare", MoviesRequest{Movies: movies})
	if rec.Code != http.StatusOK {
		t.Fatalf("compare: status = %d", rec.Code)
	}
	got := decodeBody[CompareResponse](t, rec)
	if len(got.Rows) != 2 {
		t.Errorf("rows = %+v", got.Rows)
	}
	if got.Traits == nil || len(got.Traits.SharedGenres) != 1 {
		t.Errorf("traits = %+v", got.Traits)
	}
}
