package handlers

import (
	"github.com/handrew/reelrec/internal/catalog"
	"github.com/handrew/reelrec/internal/nlquery"
	"github.com/handrew/reelrec/internal/recommend"
	"github.com/handrew/reelrec/internal/stats"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type PageResponse struct {
	Results      []catalog.Movie `json:"results"`
	Page         int             `json:"page"`
	TotalPages   int             `json:"total_pages"`
	TotalResults int             `json:"total_results"`
}

type FilterRequest struct {
	Movies []catalog.Movie `json:"movies"`
	Filter catalog.Filter  `json:"filter"`
}

type FilterResponse struct {
	Movies []catalog.Movie `json:"movies"`
	Count  int             `json:"count"`
}

type RecommendRequest struct {
	Strategy     string             `json:"strategy"`
	Movies       []catalog.Movie    `json:"movies"`
	Title        string             `json:"title,omitempty"`
	Ratings      map[string]float64 `json:"ratings,omitempty"`
	MinSentiment *float64           `json:"min_sentiment,omitempty"`
	N            int                `json:"n,omitempty"`
	Weights      *recommend.Weights `json:"weights,omitempty"`
}

type RecommendResponse struct {
	Results []recommend.Scored `json:"results"`
	Count   int                `json:"count"`
}

type QueryRequest struct {
	Query  string          `json:"query"`
	Movies []catalog.Movie `json:"movies"`
	N      int             `json:"n,omitempty"`
}

type QueryResponse struct {
	Parsed  nlquery.Request `json:"parsed"`
	Movies  []catalog.Movie `json:"movies"`
	Summary string          `json:"summary"`
}

type WatchlistEntry struct {
	ID          int64    `json:"id"`
	TMDBID      int64    `json:"tmdb_id"`
	Title       string   `json:"title"`
	Year        *int64   `json:"year,omitempty"`
	Genres      *string  `json:"genres,omitempty"`
	Overview    *string  `json:"overview,omitempty"`
	PosterPath  *string  `json:"poster_path,omitempty"`
	VoteAverage *float64 `json:"vote_average,omitempty"`
	Status      string   `json:"status"`
	Rating      *float64 `json:"rating,omitempty"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

type WatchlistResponse struct {
	Entries []WatchlistEntry `json:"entries"`
	Count   int              `json:"count"`
}

type RatingRequest struct {
	Rating float64 `json:"rating"`
}

type ExportPayload struct {
	ExportedAt string           `json:"exported_at"`
	Entries    []WatchlistEntry `json:"entries"`
}

type HistogramRequest struct {
	Movies []catalog.Movie `json:"movies"`
	Bins   int             `json:"bins,omitempty"`
}

type MoviesRequest struct {
	Movies []catalog.Movie `json:"movies"`
}

type ActorsRequest struct {
	Movies []catalog.Movie `json:"movies"`
	N      int             `json:"n,omitempty"`
}

type CompareResponse struct {
	Rows   []stats.CompareRow `json:"rows"`
	Traits *stats.Traits      `json:"traits,omitempty"`
}
