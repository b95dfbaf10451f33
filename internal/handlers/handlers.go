// Package handlers exposes the HTTP API: TMDB browsing, filtering,
// recommendations, natural-language queries, the watchlist and stats.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/handrew/reelrec/internal/catalog"
	"github.com/handrew/reelrec/internal/nlquery"
	"github.com/handrew/reelrec/internal/recommend"
	"github.com/handrew/reelrec/internal/sentiment"
	"github.com/handrew/reelrec/internal/stats"
	"github.com/handrew/reelrec/internal/tmdb"
	"github.com/handrew/reelrec/internal/watchlist"
)

const (
	defaultRecommendN  = 10
	defaultMinPolarity = 0.05
)

// TMDB is the metadata client surface the handlers consume.
type TMDB interface {
	SearchMovies(ctx context.Context, query string, page int) (tmdb.Page, error)
	MovieDetails(ctx context.Context, id int64) (catalog.Movie, error)
	Discover(ctx context.Context, filters tmdb.DiscoverFilters, page int) (tmdb.Page, error)
	Trending(ctx context.Context, window string, page int) (tmdb.Page, error)
	Popular(ctx context.Context, page int) (tmdb.Page, error)
	TopRated(ctx context.Context, page int) (tmdb.Page, error)
	NowPlaying(ctx context.Context, page int) (tmdb.Page, error)
	Upcoming(ctx context.Context, page int) (tmdb.Page, error)
	Genres(ctx context.Context) ([]tmdb.Genre, error)
	SearchPerson(ctx context.Context, query string, page int) ([]tmdb.Person, error)
	MovieReviews(ctx context.Context, id int64) ([]string, error)
}

type Config struct {
	TMDB     TMDB
	Store    *watchlist.Store
	Parser   *nlquery.Parser
	Analyzer *sentiment.Analyzer
}

type Handler struct {
	tmdb     TMDB
	store    *watchlist.Store
	parser   *nlquery.Parser
	analyzer *sentiment.Analyzer

	genres genreCache
}

type genreCache struct {
	mu        sync.RWMutex
	items     []tmdb.Genre
	fetchedAt time.Time
}

func New(cfg *Config) (*Handler, error) {
	if cfg.TMDB == nil {
		return nil, errors.New("tmdb client is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}

	analyzer := cfg.Analyzer
	if analyzer == nil {
		analyzer = sentiment.NewAnalyzer()
	}
	parser := cfg.Parser
	if parser == nil {
		parser = nlquery.NewParser(analyzer, nil)
	}

	return &Handler{
		tmdb:     cfg.TMDB,
		store:    cfg.Store,
		parser:   parser,
		analyzer: analyzer,
	}, nil
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Method(http.MethodGet, "/healthz", Adapt(h.getHealthz))

	r.Method(http.MethodGet, "/search", Adapt(h.getSearch))
	r.Method(http.MethodGet, "/movies/{id:[0-9]+}", Adapt(h.getMovie))
	r.Method(http.MethodGet, "/movies/{id:[0-9]+}/reviews", Adapt(h.getMovieReviews))
	r.Method(http.MethodGet, "/discover", Adapt(h.getDiscover))
	r.Method(http.MethodGet, "/trending", Adapt(h.getTrending))
	r.Method(http.MethodGet, "/popular", Adapt(h.getPopular))
	r.Method(http.MethodGet, "/top-rated", Adapt(h.getTopRated))
	r.Method(http.MethodGet, "/now-playing", Adapt(h.getNowPlaying))
	r.Method(http.MethodGet, "/upcoming", Adapt(h.getUpcoming))
	r.Method(http.MethodGet, "/genres", Adapt(h.getGenres))
	r.Method(http.MethodGet, "/people", Adapt(h.getPeople))

	r.Method(http.MethodPost, "/filter", Adapt(h.postFilter))
	r.Method(http.MethodPost, "/recommend", Adapt(h.postRecommend))
	r.Method(http.MethodPost, "/query", Adapt(h.postQuery))

	r.Route("/watchlist", func(r chi.Router) {
		r.Method(http.MethodGet, "/", Adapt(h.getWatchlist))
		r.Method(http.MethodPost, "/", Adapt(h.postWatchlist))
		r.Method(http.MethodGet, "/export", Adapt(h.getWatchlistExport))
		r.Method(http.MethodGet, "/recommendations", Adapt(h.getWatchlistRecommendations))

		r.Route("/{tmdbID:[0-9]+}", func(r chi.Router) {
			r.Method(http.MethodDelete, "/", Adapt(h.deleteWatchlist))
			r.Method(http.MethodPost, "/rating", Adapt(h.postWatchlistRating))
			r.Method(http.MethodPost, "/toggle-status", Adapt(h.postWatchlistToggleStatus))
		})
	})

	r.Route("/stats", func(r chi.Router) {
		r.Method(http.MethodPost, "/ratings", Adapt(h.postStatsRatings))
		r.Method(http.MethodPost, "/genres", Adapt(h.postStatsGenres))
		r.Method(http.MethodPost, "/timeline", Adapt(h.postStatsTimeline))
		r.Method(http.MethodPost, "/actors", Adapt(h.postStatsActors))
		r.Method(http.MethodPost, "/compare", Adapt(h.postStatsCompare))
	})
}

func (h *Handler) getHealthz(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, &HealthResponse{Status: "ok"})
	return nil
}

func (h *Handler) getSearch(w http.ResponseWriter, r *http.Request) error {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		return badRequest("q is required")
	}

	page, err := h.tmdb.SearchMovies(r.Context(), query, queryInt(r, "page", 1))
	if err != nil {
		slog.Warn("tmdb search failed", slog.Any("err", err))
		return badGateway(err)
	}
	writePage(w, page)
	return nil
}

func (h *Handler) getMovie(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return badRequest("bad id")
	}

	movie, err := h.tmdb.MovieDetails(r.Context(), id)
	if err != nil {
		slog.Warn("tmdb details failed", slog.Int64("id", id), slog.Any("err", err))
		return badGateway(err)
	}
	writeJSON(w, http.StatusOK, movie)
	return nil
}

func (h *Handler) getMovieReviews(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return badRequest("bad id")
	}

	reviews, err := h.tmdb.MovieReviews(r.Context(), id)
	if err != nil {
		slog.Warn("tmdb reviews failed", slog.Int64("id", id), slog.Any("err", err))
		return badGateway(err)
	}
	if reviews == nil {
		reviews = []string{}
	}
	writeJSON(w, http.StatusOK, reviews)
	return nil
}

func (h *Handler) getDiscover(w http.ResponseWriter, r *http.Request) error {
	filters := tmdb.DiscoverFilters{
		YearFrom:   queryIntPtr(r, "year_from"),
		YearTo:     queryIntPtr(r, "year_to"),
		MinRating:  queryFloatPtr(r, "min_rating"),
		MaxRating:  queryFloatPtr(r, "max_rating"),
		MinRuntime: queryIntPtr(r, "min_runtime"),
		MaxRuntime: queryIntPtr(r, "max_runtime"),
		MinVotes:   queryIntPtr(r, "min_votes"),
		Language:   r.URL.Query().Get("language"),
		Sort:       r.URL.Query().Get("sort"),
	}
	for _, raw := range strings.Split(r.URL.Query().Get("genres"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest("bad genre id " + raw)
		}
		filters.GenreIDs = append(filters.GenreIDs, id)
	}

	page, err := h.tmdb.Discover(r.Context(), filters, queryInt(r, "page", 1))
	if err != nil {
		slog.Warn("tmdb discover failed", slog.Any("err", err))
		return badGateway(err)
	}
	writePage(w, page)
	return nil
}

func (h *Handler) getTrending(w http.ResponseWriter, r *http.Request) error {
	window := r.URL.Query().Get("window")
	if window == "" {
		window = "week"
	}
	if window != "day" && window != "week" {
		return badRequest("window must be day or week")
	}

	page, err := h.tmdb.Trending(r.Context(), window, queryInt(r, "page", 1))
	if err != nil {
		slog.Warn("tmdb trending failed", slog.Any("err", err))
		return badGateway(err)
	}
	writePage(w, page)
	return nil
}

func (h *Handler) getPopular(w http.ResponseWriter, r *http.Request) error {
	return h.simpleList(w, r, h.tmdb.Popular)
}

func (h *Handler) getTopRated(w http.ResponseWriter, r *http.Request) error {
	return h.simpleList(w, r, h.tmdb.TopRated)
}

func (h *Handler) getNowPlaying(w http.ResponseWriter, r *http.Request) error {
	return h.simpleList(w, r, h.tmdb.NowPlaying)
}

func (h *Handler) getUpcoming(w http.ResponseWriter, r *http.Request) error {
	return h.simpleList(w, r, h.tmdb.Upcoming)
}

func (h *Handler) simpleList(w http.ResponseWriter, r *http.Request, fetch func(context.Context, int) (tmdb.Page, error)) error {
	page, err := fetch(r.Context(), queryInt(r, "page", 1))
	if err != nil {
		slog.Warn("tmdb list failed", slog.Any("err", err))
		return badGateway(err)
	}
	writePage(w, page)
	return nil
}

func (h *Handler) getGenres(w http.ResponseWriter, r *http.Request) error {
	genres, err := h.fetchGenres(r.Context())
	if err != nil {
		slog.Warn("tmdb genres failed", slog.Any("err", err))
		return badGateway(err)
	}
	writeJSON(w, http.StatusOK, genres)
	return nil
}

func (h *Handler) fetchGenres(ctx context.Context) ([]tmdb.Genre, error) {
	const cacheTTL = 24 * time.Hour

	h.genres.mu.RLock()
	if h.genres.items != nil && time.Since(h.genres.fetchedAt) < cacheTTL {
		items := append([]tmdb.Genre(nil), h.genres.items...)
		h.genres.mu.RUnlock()
		return items, nil
	}
	h.genres.mu.RUnlock()

	items, err := h.tmdb.Genres(ctx)
	if err != nil {
		return nil, err
	}

	h.genres.mu.Lock()
	h.genres.items = append([]tmdb.Genre(nil), items...)
	h.genres.fetchedAt = time.Now()
	h.genres.mu.Unlock()

	return items, nil
}

func (h *Handler) getPeople(w http.ResponseWriter, r *http.Request) error {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		return badRequest("q is required")
	}

	people, err := h.tmdb.SearchPerson(r.Context(), query, queryInt(r, "page", 1))
	if err != nil {
		slog.Warn("tmdb person search failed", slog.Any("err", err))
		return badGateway(err)
	}
	if people == nil {
		people = []tmdb.Person{}
	}
	writeJSON(w, http.StatusOK, people)
	return nil
}

func (h *Handler) postFilter(w http.ResponseWriter, r *http.Request) error {
	var req FilterRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("bad request")
	}

	filtered := catalog.Apply(req.Movies, req.Filter)
	if filtered == nil {
		filtered = []catalog.Movie{}
	}
	writeJSON(w, http.StatusOK, &FilterResponse{Movies: filtered, Count: len(filtered)})
	return nil
}

func (h *Handler) postRecommend(w http.ResponseWriter, r *http.Request) error {
	var req RecommendRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("bad request")
	}

	n := req.N
	if n <= 0 {
		n = defaultRecommendN
	}
	minPolarity := defaultMinPolarity
	if req.MinSentiment != nil {
		minPolarity = *req.MinSentiment
	}

	engine := recommend.New(req.Movies, h.analyzer)

	var results []recommend.Scored
	switch req.Strategy {
	case "content":
		if strings.TrimSpace(req.Title) == "" {
			return badRequest("title is required for the content strategy")
		}
		results = engine.Content(req.Title, n)
	case "sentiment":
		results = engine.Sentiment(minPolarity, n)
	case "history":
		results = engine.RatingHistory(req.Ratings, n)
	case "hybrid":
		results = engine.Hybrid(recommend.HybridRequest{
			TargetTitle:  req.Title,
			Ratings:      req.Ratings,
			MinSentiment: minPolarity,
			N:            n,
			Weights:      req.Weights,
		})
	default:
		return badRequest("strategy must be content, sentiment, history or hybrid")
	}

	if results == nil {
		results = []recommend.Scored{}
	}
	writeJSON(w, http.StatusOK, &RecommendResponse{Results: results, Count: len(results)})
	return nil
}

func (h *Handler) postQuery(w http.ResponseWriter, r *http.Request) error {
	var req QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("bad request")
	}
	if strings.TrimSpace(req.Query) == "" {
		return badRequest("query is required")
	}

	parsed := h.parser.ParseContext(r.Context(), req.Query)

	filter := catalog.Filter{
		Decade:     parsed.Decade,
		MinRating:  parsed.MinRating,
		GenreNames: parsed.Genres,
	}
	if parsed.Year != nil {
		filter.YearFrom = parsed.Year
		filter.YearTo = parsed.Year
	}

	matched := catalog.Apply(req.Movies, filter)
	if parsed.SortBy == "popularity" {
		sort.SliceStable(matched, func(i, j int) bool {
			return matched[i].Popularity > matched[j].Popularity
		})
	}

	summary := nlquery.Summarize(len(matched), parsed)

	n := req.N
	if n <= 0 {
		n = defaultRecommendN
	}
	if len(matched) > n {
		matched = matched[:n]
	}
	if matched == nil {
		matched = []catalog.Movie{}
	}

	writeJSON(w, http.StatusOK, &QueryResponse{
		Parsed:  parsed,
		Movies:  matched,
		Summary: summary,
	})
	return nil
}

func (h *Handler) getWatchlist(w http.ResponseWriter, r *http.Request) error {
	entries, err := h.store.List(r.Context(), watchlist.ListFilters{
		Status: r.URL.Query().Get("status"),
		Sort:   r.URL.Query().Get("sort"),
	})
	if err != nil {
		slog.Warn("list watchlist failed", slog.Any("err", err))
		return internal(err)
	}

	out := toAPIEntries(entries)
	writeJSON(w, http.StatusOK, &WatchlistResponse{Entries: out, Count: len(out)})
	return nil
}

func (h *Handler) postWatchlist(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	var movie catalog.Movie
	if err := decodeJSON(r, &movie); err != nil {
		return badRequest("bad request")
	}
	if movie.ID == 0 {
		return badRequest("id required")
	}
	if strings.TrimSpace(movie.Title) == "" {
		return badRequest("title required")
	}

	if _, err := h.store.Add(ctx, movie); err != nil {
		slog.Warn("add to watchlist failed", slog.Int64("tmdb_id", movie.ID), slog.Any("err", err))
		return internal(err)
	}

	entry, err := h.store.Get(ctx, movie.ID)
	if err != nil {
		return internal(err)
	}
	writeJSON(w, http.StatusCreated, toAPIEntry(entry))
	return nil
}

func (h *Handler) deleteWatchlist(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "tmdbID")
	if err != nil {
		return badRequest("bad id")
	}
	if err := h.store.Remove(r.Context(), id); err != nil {
		return internal(err)
	}
	writeJSON(w, http.StatusNoContent, nil)
	return nil
}

func (h *Handler) postWatchlistRating(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "tmdbID")
	if err != nil {
		return badRequest("bad id")
	}

	var req RatingRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("bad request")
	}

	err = h.store.SetRating(r.Context(), id, req.Rating)
	switch {
	case errors.Is(err, watchlist.ErrInvalidRating):
		return badRequest(err.Error())
	case isNoRows(err):
		return notFound("not on the watchlist")
	case err != nil:
		return internal(err)
	}

	entry, err := h.store.Get(r.Context(), id)
	if err != nil {
		return internal(err)
	}
	writeJSON(w, http.StatusOK, toAPIEntry(entry))
	return nil
}

func (h *Handler) postWatchlistToggleStatus(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	id, err := idParam(r, "tmdbID")
	if err != nil {
		return badRequest("bad id")
	}

	entry, err := h.store.Get(ctx, id)
	if isNoRows(err) {
		return notFound("not on the watchlist")
	}
	if err != nil {
		return internal(err)
	}

	next := watchlist.StatusWatched
	if entry.Status == watchlist.StatusWatched {
		next = watchlist.StatusPlanned
	}
	if err := h.store.SetStatus(ctx, id, next); err != nil {
		return internal(err)
	}

	entry, err = h.store.Get(ctx, id)
	if err != nil {
		return internal(err)
	}
	writeJSON(w, http.StatusOK, toAPIEntry(entry))
	return nil
}

func (h *Handler) getWatchlistExport(w http.ResponseWriter, r *http.Request) error {
	entries, err := h.store.List(r.Context(), watchlist.ListFilters{Status: "all"})
	if err != nil {
		return internal(err)
	}

	payload := &ExportPayload{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Entries:    toAPIEntries(entries),
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		return internal(err)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=watchlist.json")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("export write failed", slog.Any("err", err))
	}
	return nil
}

// getWatchlistRecommendations feeds the stored ratings into the
// rating-history strategy against a trending+popular candidate pool.
func (h *Handler) getWatchlistRecommendations(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	ratings, err := h.store.Ratings(ctx)
	if err != nil {
		return internal(err)
	}
	if len(ratings) == 0 {
		writeJSON(w, http.StatusOK, &RecommendResponse{Results: []recommend.Scored{}, Count: 0})
		return nil
	}

	candidates, err := h.candidatePool(ctx)
	if err != nil {
		slog.Warn("candidate fetch failed", slog.Any("err", err))
		return badGateway(err)
	}

	engine := recommend.New(candidates, h.analyzer)
	results := engine.RatingHistory(ratings, queryInt(r, "n", defaultRecommendN))
	if results == nil {
		results = []recommend.Scored{}
	}
	writeJSON(w, http.StatusOK, &RecommendResponse{Results: results, Count: len(results)})
	return nil
}

// candidatePool merges the first trending and popular pages, deduped
// by TMDB id.
func (h *Handler) candidatePool(ctx context.Context) ([]catalog.Movie, error) {
	trending, err := h.tmdb.Trending(ctx, "week", 1)
	if err != nil {
		return nil, err
	}
	popular, err := h.tmdb.Popular(ctx, 1)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]struct{}, len(trending.Results)+len(popular.Results))
	out := make([]catalog.Movie, 0, len(trending.Results)+len(popular.Results))
	for _, m := range append(trending.Results, popular.Results...) {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out, nil
}

func (h *Handler) postStatsRatings(w http.ResponseWriter, r *http.Request) error {
	var req HistogramRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("bad request")
	}
	writeJSON(w, http.StatusOK, stats.RatingHistogram(req.Movies, req.Bins))
	return nil
}

func (h *Handler) postStatsGenres(w http.ResponseWriter, r *http.Request) error {
	var req MoviesRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("bad request")
	}
	writeJSON(w, http.StatusOK, stats.GenreCounts(req.Movies))
	return nil
}

func (h *Handler) postStatsTimeline(w http.ResponseWriter, r *http.Request) error {
	var req MoviesRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("bad request")
	}
	writeJSON(w, http.StatusOK, stats.Timeline(req.Movies))
	return nil
}

func (h *Handler) postStatsActors(w http.ResponseWriter, r *http.Request) error {
	var req ActorsRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("bad request")
	}
	writeJSON(w, http.StatusOK, stats.TopActors(req.Movies, req.N))
	return nil
}

func (h *Handler) postStatsCompare(w http.ResponseWriter, r *http.Request) error {
	var req MoviesRequest
	if err := decodeJSON(r, &req); err != nil {
		return badRequest("bad request")
	}

	resp := &CompareResponse{Rows: stats.Compare(req.Movies)}
	if len(req.Movies) == 2 {
		traits := stats.SharedTraits(req.Movies[0], req.Movies[1])
		resp.Traits = &traits
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

func writePage(w http.ResponseWriter, page tmdb.Page) {
	results := page.Results
	if results == nil {
		results = []catalog.Movie{}
	}
	writeJSON(w, http.StatusOK, &PageResponse{
		Results:      results,
		Page:         page.Page,
		TotalPages:   page.TotalPages,
		TotalResults: page.TotalResults,
	})
}

func toAPIEntry(entry watchlist.Entry) WatchlistEntry {
	return WatchlistEntry{
		ID:          entry.ID,
		TMDBID:      entry.TMDBID,
		Title:       entry.Title,
		Year:        fromSQLNull(entry.Year),
		Genres:      fromSQLNull(entry.Genres),
		Overview:    fromSQLNull(entry.Overview),
		PosterPath:  fromSQLNull(entry.PosterPath),
		VoteAverage: fromSQLNull(entry.VoteAverage),
		Status:      entry.Status,
		Rating:      fromSQLNull(entry.Rating),
		CreatedAt:   entry.CreatedAt,
		UpdatedAt:   entry.UpdatedAt,
	}
}

func toAPIEntries(entries []watchlist.Entry) []WatchlistEntry {
	out := make([]WatchlistEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toAPIEntry(entry))
	}
	return out
}
