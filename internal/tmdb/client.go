// Package tmdb wraps the TMDB API for searching, discovering and
// fetching movie metadata.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/handrew/reelrec/internal/catalog"
)

const defaultBaseURL = "https://api.themoviedb.org/3"

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func New(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Page is one page of movie results.
type Page struct {
	Results      []catalog.Movie `json:"results"`
	Page         int             `json:"page"`
	TotalPages   int             `json:"total_pages"`
	TotalResults int             `json:"total_results"`
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Person struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Department string  `json:"known_for_department"`
	Popularity float64 `json:"popularity"`
}

// DiscoverFilters map to TMDB discover query parameters. Nil fields
// are omitted from the request.
type DiscoverFilters struct {
	YearFrom   *int
	YearTo     *int
	MinRating  *float64
	MaxRating  *float64
	MinRuntime *int
	MaxRuntime *int
	MinVotes   *int
	GenreIDs   []int
	Language   string
	Sort       string
}

type listResponse struct {
	Page         int `json:"page"`
	TotalPages   int `json:"total_pages"`
	TotalResults int `json:"total_results"`
	Results      []struct {
		ID               int64   `json:"id"`
		Title            string  `json:"title"`
		ReleaseDate      string  `json:"release_date"`
		Overview         string  `json:"overview"`
		GenreIDs         []int   `json:"genre_ids"`
		OriginalLanguage string  `json:"original_language"`
		VoteAverage      float64 `json:"vote_average"`
		VoteCount        int     `json:"vote_count"`
		Popularity       float64 `json:"popularity"`
		PosterPath       string  `json:"poster_path"`
	} `json:"results"`
}

type detailResponse struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	ReleaseDate      string  `json:"release_date"`
	Overview         string  `json:"overview"`
	Runtime          int     `json:"runtime"`
	OriginalLanguage string  `json:"original_language"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	Popularity       float64 `json:"popularity"`
	PosterPath       string  `json:"poster_path"`
	Genres           []Genre `json:"genres"`
	Credits          struct {
		Cast []struct {
			Name string `json:"name"`
		} `json:"cast"`
		Crew []struct {
			Name string `json:"name"`
			Job  string `json:"job"`
		} `json:"crew"`
	} `json:"credits"`
	Keywords struct {
		Keywords []struct {
			Name string `json:"name"`
		} `json:"keywords"`
	} `json:"keywords"`
	Reviews reviewsResponse `json:"reviews"`
}

type reviewsResponse struct {
	Results []struct {
		Content string `json:"content"`
	} `json:"results"`
}

type genreListResponse struct {
	Genres []Genre `json:"genres"`
}

type personSearchResponse struct {
	Results []Person `json:"results"`
}

// SearchMovies searches movies by title. An empty query returns an
// empty page without hitting the network.
func (c *Client) SearchMovies(ctx context.Context, query string, page int) (Page, error) {
	if strings.TrimSpace(query) == "" {
		return Page{}, nil
	}
	values := url.Values{}
	values.Set("query", query)
	values.Set("include_adult", "false")
	values.Set("page", strconv.Itoa(normalizePage(page)))
	return c.fetchList(ctx, "/search/movie", values)
}

// MovieDetails fetches one movie with credits, keywords and reviews
// appended.
func (c *Client) MovieDetails(ctx context.Context, id int64) (catalog.Movie, error) {
	values := url.Values{}
	values.Set("append_to_response", "credits,keywords,reviews")

	var payload detailResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/movie/%d", id), values, &payload); err != nil {
		return catalog.Movie{}, err
	}
	return movieFromDetail(payload), nil
}

// Discover lists movies matching the filter parameters, most popular
// first unless the filters say otherwise.
func (c *Client) Discover(ctx context.Context, filters DiscoverFilters, page int) (Page, error) {
	values := url.Values{}
	values.Set("include_adult", "false")
	sortBy := filters.Sort
	if sortBy == "" {
		sortBy = "popularity.desc"
	}
	values.Set("sort_by", sortBy)
	if filters.YearFrom != nil {
		values.Set("primary_release_date.gte", fmt.Sprintf("%04d-01-01", *filters.YearFrom))
	}
	if filters.YearTo != nil {
		values.Set("primary_release_date.lte", fmt.Sprintf("%04d-12-31", *filters.YearTo))
	}
	if filters.MinRating != nil {
		values.Set("vote_average.gte", strconv.FormatFloat(*filters.MinRating, 'f', 1, 64))
	}
	if filters.MaxRating != nil {
		values.Set("vote_average.lte", strconv.FormatFloat(*filters.MaxRating, 'f', 1, 64))
	}
	if filters.MinRuntime != nil {
		values.Set("with_runtime.gte", strconv.Itoa(*filters.MinRuntime))
	}
	if filters.MaxRuntime != nil {
		values.Set("with_runtime.lte", strconv.Itoa(*filters.MaxRuntime))
	}
	if filters.MinVotes != nil {
		values.Set("vote_count.gte", strconv.Itoa(*filters.MinVotes))
	}
	if len(filters.GenreIDs) > 0 {
		ids := make([]string, 0, len(filters.GenreIDs))
		for _, id := range filters.GenreIDs {
			ids = append(ids, strconv.Itoa(id))
		}
		values.Set("with_genres", strings.Join(ids, ","))
	}
	if filters.Language != "" {
		values.Set("with_original_language", filters.Language)
	}
	values.Set("page", strconv.Itoa(normalizePage(page)))
	return c.fetchList(ctx, "/discover/movie", values)
}

// Trending lists trending movies for the window ("day" or "week").
func (c *Client) Trending(ctx context.Context, window string, page int) (Page, error) {
	if window != "day" && window != "week" {
		return Page{}, errors.New("invalid trending window")
	}
	values := url.Values{}
	values.Set("page", strconv.Itoa(normalizePage(page)))
	return c.fetchList(ctx, "/trending/movie/"+window, values)
}

func (c *Client) Popular(ctx context.Context, page int) (Page, error) {
	return c.fetchSimpleList(ctx, "/movie/popular", page)
}

func (c *Client) TopRated(ctx context.Context, page int) (Page, error) {
	return c.fetchSimpleList(ctx, "/movie/top_rated", page)
}

func (c *Client) NowPlaying(ctx context.Context, page int) (Page, error) {
	return c.fetchSimpleList(ctx, "/movie/now_playing", page)
}

func (c *Client) Upcoming(ctx context.Context, page int) (Page, error) {
	return c.fetchSimpleList(ctx, "/movie/upcoming", page)
}

// Genres fetches the movie genre id/name table.
func (c *Client) Genres(ctx context.Context) ([]Genre, error) {
	var payload genreListResponse
	if err := c.getJSON(ctx, "/genre/movie/list", url.Values{}, &payload); err != nil {
		return nil, err
	}
	return payload.Genres, nil
}

// SearchPerson searches actors, directors and other people.
func (c *Client) SearchPerson(ctx context.Context, query string, page int) ([]Person, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	values := url.Values{}
	values.Set("query", query)
	values.Set("page", strconv.Itoa(normalizePage(page)))

	var payload personSearchResponse
	if err := c.getJSON(ctx, "/search/person", values, &payload); err != nil {
		return nil, err
	}
	return payload.Results, nil
}

// MovieReviews fetches the review texts for a movie.
func (c *Client) MovieReviews(ctx context.Context, id int64) ([]string, error) {
	var payload reviewsResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/movie/%d/reviews", id), url.Values{}, &payload); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(payload.Results))
	for _, r := range payload.Results {
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		out = append(out, r.Content)
	}
	return out, nil
}

func (c *Client) fetchSimpleList(ctx context.Context, path string, page int) (Page, error) {
	values := url.Values{}
	values.Set("page", strconv.Itoa(normalizePage(page)))
	return c.fetchList(ctx, path, values)
}

func (c *Client) fetchList(ctx context.Context, path string, values url.Values) (Page, error) {
	var payload listResponse
	if err := c.getJSON(ctx, path, values, &payload); err != nil {
		return Page{}, err
	}

	out := make([]catalog.Movie, 0, len(payload.Results))
	for _, r := range payload.Results {
		out = append(out, catalog.Movie{
			ID:               r.ID,
			Title:            r.Title,
			ReleaseDate:      r.ReleaseDate,
			Overview:         r.Overview,
			GenreIDs:         r.GenreIDs,
			OriginalLanguage: r.OriginalLanguage,
			VoteAverage:      r.VoteAverage,
			VoteCount:        r.VoteCount,
			Popularity:       r.Popularity,
			PosterPath:       r.PosterPath,
		})
	}
	return Page{
		Results:      out,
		Page:         payload.Page,
		TotalPages:   payload.TotalPages,
		TotalResults: payload.TotalResults,
	}, nil
}

func (c *Client) getJSON(ctx context.Context, path string, values url.Values, dst any) error {
	values.Set("api_key", c.apiKey)
	endpoint := c.baseURL + path + "?" + values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		statusErr := fmt.Errorf("tmdb request failed: %s", resp.Status)
		if cerr := resp.Body.Close(); cerr != nil {
			return errors.Join(statusErr, cerr)
		}
		return statusErr
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		if cerr := resp.Body.Close(); cerr != nil {
			return errors.Join(err, cerr)
		}
		return err
	}
	return resp.Body.Close()
}

func movieFromDetail(payload detailResponse) catalog.Movie {
	movie := catalog.Movie{
		ID:               payload.ID,
		Title:            payload.Title,
		ReleaseDate:      payload.ReleaseDate,
		Overview:         payload.Overview,
		Runtime:          payload.Runtime,
		OriginalLanguage: payload.OriginalLanguage,
		VoteAverage:      payload.VoteAverage,
		VoteCount:        payload.VoteCount,
		Popularity:       payload.Popularity,
		PosterPath:       payload.PosterPath,
	}
	for _, g := range payload.Genres {
		if strings.TrimSpace(g.Name) == "" {
			continue
		}
		movie.Genres = append(movie.Genres, g.Name)
		movie.GenreIDs = append(movie.GenreIDs, g.ID)
	}
	for _, member := range payload.Credits.Cast {
		if strings.TrimSpace(member.Name) == "" {
			continue
		}
		movie.Cast = append(movie.Cast, member.Name)
	}
	for _, member := range payload.Credits.Crew {
		if member.Job == "Director" {
			movie.Director = member.Name
			break
		}
	}
	for _, k := range payload.Keywords.Keywords {
		if strings.TrimSpace(k.Name) == "" {
			continue
		}
		movie.Keywords = append(movie.Keywords, k.Name)
	}
	for _, r := range payload.Reviews.Results {
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		movie.Reviews = append(movie.Reviews, r.Content)
	}
	return movie
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// ParseYear converts a year string to *int, nil when empty or
// malformed.
func ParseYear(year string) *int {
	year = strings.TrimSpace(year)
	if year == "" {
		return nil
	}
	val, err := strconv.Atoi(year)
	if err != nil {
		return nil
	}
	return &val
}
