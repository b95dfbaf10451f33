// Package catalog holds the in-memory movie record and the pure filter
// predicates applied over fetched result sets.
package catalog

import (
	"strconv"
	"strings"
)

// Movie is an immutable snapshot of a TMDB movie. Fields that the
// upstream response omits stay zero-valued; consumers tolerate that.
type Movie struct {
	ID               int64    `json:"id"`
	Title            string   `json:"title"`
	ReleaseDate      string   `json:"release_date,omitempty"`
	Overview         string   `json:"overview,omitempty"`
	Genres           []string `json:"genres,omitempty"`
	GenreIDs         []int    `json:"genre_ids,omitempty"`
	Cast             []string `json:"cast,omitempty"`
	Director         string   `json:"director,omitempty"`
	Keywords         []string `json:"keywords,omitempty"`
	Reviews          []string `json:"reviews,omitempty"`
	Runtime          int      `json:"runtime,omitempty"`
	OriginalLanguage string   `json:"original_language,omitempty"`
	VoteAverage      float64  `json:"vote_average"`
	VoteCount        int      `json:"vote_count"`
	Popularity       float64  `json:"popularity"`
	PosterPath       string   `json:"poster_path,omitempty"`
}

// Year parses the release year, 0 when the date is missing or mangled.
func (m Movie) Year() int {
	date := strings.TrimSpace(m.ReleaseDate)
	if len(date) < 4 {
		return 0
	}
	year, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return year
}

// HasGenreName reports whether the movie carries the genre,
// case-insensitively.
func (m Movie) HasGenreName(name string) bool {
	for _, g := range m.Genres {
		if strings.EqualFold(g, name) {
			return true
		}
	}
	return false
}

// HasGenreID reports whether the movie carries the TMDB genre id.
func (m Movie) HasGenreID(id int) bool {
	for _, gid := range m.GenreIDs {
		if gid == id {
			return true
		}
	}
	return false
}
