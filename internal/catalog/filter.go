package catalog

import "strings"

// Filter is a bundle of optional criteria. Nil/zero fields impose no
// constraint; set fields compose with logical AND.
type Filter struct {
	YearFrom      *int     `json:"year_from,omitempty"`
	YearTo        *int     `json:"year_to,omitempty"`
	Decade        *int     `json:"decade,omitempty"`
	MinRating     *float64 `json:"min_rating,omitempty"`
	MaxRating     *float64 `json:"max_rating,omitempty"`
	MinVotes      *int     `json:"min_votes,omitempty"`
	MinPopularity *float64 `json:"min_popularity,omitempty"`
	MinRuntime    *int     `json:"min_runtime,omitempty"`
	MaxRuntime    *int     `json:"max_runtime,omitempty"`
	Languages     []string `json:"languages,omitempty"`
	GenreIDs      []int    `json:"genre_ids,omitempty"`
	GenreNames    []string `json:"genre_names,omitempty"`
	Actors        []string `json:"actors,omitempty"`
	Director      string   `json:"director,omitempty"`
}

func (f Filter) IsEmpty() bool {
	return f.YearFrom == nil && f.YearTo == nil && f.Decade == nil &&
		f.MinRating == nil && f.MaxRating == nil && f.MinVotes == nil &&
		f.MinPopularity == nil && f.MinRuntime == nil && f.MaxRuntime == nil &&
		len(f.Languages) == 0 && len(f.GenreIDs) == 0 && len(f.GenreNames) == 0 &&
		len(f.Actors) == 0 && strings.TrimSpace(f.Director) == ""
}

// Apply narrows movies by every set criterion. The input slice is never
// mutated and relative order is preserved.
func Apply(movies []Movie, f Filter) []Movie {
	out := movies
	if f.YearFrom != nil || f.YearTo != nil {
		out = ByYear(out, f.YearFrom, f.YearTo)
	}
	if f.Decade != nil {
		out = ByDecade(out, *f.Decade)
	}
	if f.MinRating != nil || f.MaxRating != nil {
		out = ByRating(out, f.MinRating, f.MaxRating)
	}
	if f.MinVotes != nil {
		out = ByVoteCount(out, *f.MinVotes)
	}
	if f.MinPopularity != nil {
		out = ByPopularity(out, *f.MinPopularity)
	}
	if f.MinRuntime != nil || f.MaxRuntime != nil {
		out = ByRuntime(out, f.MinRuntime, f.MaxRuntime)
	}
	if len(f.Languages) > 0 {
		out = ByLanguage(out, f.Languages)
	}
	if len(f.GenreIDs) > 0 || len(f.GenreNames) > 0 {
		out = ByGenres(out, f.GenreIDs, f.GenreNames)
	}
	if len(f.Actors) > 0 {
		out = ByCast(out, f.Actors)
	}
	if strings.TrimSpace(f.Director) != "" {
		out = ByDirector(out, f.Director)
	}
	return out
}

// ByYear keeps movies whose release year falls inside the range.
// Movies without a parseable release date are dropped.
func ByYear(movies []Movie, minYear, maxYear *int) []Movie {
	out := make([]Movie, 0, len(movies))
	for _, m := range movies {
		year := m.Year()
		if year == 0 {
			continue
		}
		if minYear != nil && year < *minYear {
			continue
		}
		if maxYear != nil && year > *maxYear {
			continue
		}
		out = append(out, m)
	}
	return out
}

// ByDecade keeps movies released within [decade, decade+9].
func ByDecade(movies []Movie, decade int) []Movie {
	to := decade + 9
	return ByYear(movies, &decade, &to)
}

func ByRating(movies []Movie, minRating, maxRating *float64) []Movie {
	out := make([]Movie, 0, len(movies))
	for _, m := range movies {
		if minRating != nil && m.VoteAverage < *minRating {
			continue
		}
		if maxRating != nil && m.VoteAverage > *maxRating {
			continue
		}
		out = append(out, m)
	}
	return out
}

func ByVoteCount(movies []Movie, minVotes int) []Movie {
	out := make([]Movie, 0, len(movies))
	for _, m := range movies {
		if m.VoteCount < minVotes {
			continue
		}
		out = append(out, m)
	}
	return out
}

func ByPopularity(movies []Movie, minPopularity float64) []Movie {
	out := make([]Movie, 0, len(movies))
	for _, m := range movies {
		if m.Popularity < minPopularity {
			continue
		}
		out = append(out, m)
	}
	return out
}

// ByRuntime keeps movies inside the runtime range. Movies without
// runtime data are dropped.
func ByRuntime(movies []Movie, minRuntime, maxRuntime *int) []Movie {
	out := make([]Movie, 0, len(movies))
	for _, m := range movies {
		if m.Runtime == 0 {
			continue
		}
		if minRuntime != nil && m.Runtime < *minRuntime {
			continue
		}
		if maxRuntime != nil && m.Runtime > *maxRuntime {
			continue
		}
		out = append(out, m)
	}
	return out
}

func ByLanguage(movies []Movie, languages []string) []Movie {
	if len(languages) == 0 {
		return movies
	}
	allowed := make(map[string]struct{}, len(languages))
	for _, lang := range languages {
		allowed[strings.ToLower(strings.TrimSpace(lang))] = struct{}{}
	}
	out := make([]Movie, 0, len(movies))
	for _, m := range movies {
		if _, ok := allowed[strings.ToLower(m.OriginalLanguage)]; ok {
			out = append(out, m)
		}
	}
	return out
}

// ByGenres keeps movies whose genre set intersects the given ids or
// names (either match suffices).
func ByGenres(movies []Movie, genreIDs []int, genreNames []string) []Movie {
	if len(genreIDs) == 0 && len(genreNames) == 0 {
		return movies
	}
	out := make([]Movie, 0, len(movies))
	for _, m := range movies {
		if matchesGenre(m, genreIDs, genreNames) {
			out = append(out, m)
		}
	}
	return out
}

func matchesGenre(m Movie, genreIDs []int, genreNames []string) bool {
	for _, id := range genreIDs {
		if m.HasGenreID(id) {
			return true
		}
	}
	for _, name := range genreNames {
		if m.HasGenreName(name) {
			return true
		}
	}
	return false
}

// ByCast keeps movies featuring any of the named actors,
// case-insensitive substring match on the cast list.
func ByCast(movies []Movie, actors []string) []Movie {
	if len(actors) == 0 {
		return movies
	}
	wanted := make([]string, 0, len(actors))
	for _, a := range actors {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			wanted = append(wanted, a)
		}
	}
	out := make([]Movie, 0, len(movies))
	for _, m := range movies {
		if castMatches(m.Cast, wanted) {
			out = append(out, m)
		}
	}
	return out
}

func castMatches(cast []string, wanted []string) bool {
	for _, member := range cast {
		member = strings.ToLower(member)
		for _, w := range wanted {
			if strings.Contains(member, w) {
				return true
			}
		}
	}
	return false
}

// ByDirector keeps movies directed by the named person,
// case-insensitive substring match.
func ByDirector(movies []Movie, director string) []Movie {
	director = strings.ToLower(strings.TrimSpace(director))
	if director == "" {
		return movies
	}
	out := make([]Movie, 0, len(movies))
	for _, m := range movies {
		if strings.Contains(strings.ToLower(m.Director), director) {
			out = append(out, m)
		}
	}
	return out
}
