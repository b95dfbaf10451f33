// Package stats computes chart-ready aggregates over a set of movies:
// rating histograms, genre distributions, release timelines, actor
// appearance counts and pairwise comparisons.
package stats

import (
	"sort"
	"strconv"
	"strings"

	"github.com/handrew/reelrec/internal/catalog"
)

const maxActorCredits = 5

// Bucket is one histogram bar.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TimelinePoint places one movie on the release timeline. Undated
// movies are dropped.
type TimelinePoint struct {
	Year   int     `json:"year"`
	Title  string  `json:"title"`
	Rating float64 `json:"rating"`
}

// ActorCount is one actor's appearance tally with up to five of the
// titles they appeared in.
type ActorCount struct {
	Name    string   `json:"name"`
	Count   int      `json:"count"`
	Credits []string `json:"credits"`
}

// CompareRow is one movie's side-by-side comparison line.
type CompareRow struct {
	Title      string   `json:"title"`
	Year       int      `json:"year,omitempty"`
	Rating     float64  `json:"rating"`
	Votes      int      `json:"votes"`
	Popularity float64  `json:"popularity"`
	Runtime    int      `json:"runtime,omitempty"`
	Genres     []string `json:"genres,omitempty"`
}

// Traits describes what two movies have in common.
type Traits struct {
	SharedGenres []string `json:"shared_genres,omitempty"`
	SharedCast   []string `json:"shared_cast,omitempty"`
	RatingDelta  float64  `json:"rating_delta"`
	YearDelta    int      `json:"year_delta"`
}

// RatingHistogram buckets vote averages over [0,10] into bins equal
// slices. Out-of-range ratings clamp into the edge buckets.
func RatingHistogram(movies []catalog.Movie, bins int) []Bucket {
	if bins <= 0 {
		bins = 10
	}
	width := 10.0 / float64(bins)
	out := make([]Bucket, bins)
	for i := range out {
		lo := float64(i) * width
		out[i].Label = formatRange(lo, lo+width)
	}
	for _, m := range movies {
		idx := int(m.VoteAverage / width)
		if idx < 0 {
			idx = 0
		}
		if idx >= bins {
			idx = bins - 1
		}
		out[idx].Count++
	}
	return out
}

func formatRange(lo, hi float64) string {
	return trimFloat(lo) + "-" + trimFloat(hi)
}

func trimFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', 1, 64)
	return strings.TrimSuffix(s, ".0")
}

// GenreCounts tallies genre membership, most frequent first, ties by
// name.
func GenreCounts(movies []catalog.Movie) []Bucket {
	counts := make(map[string]int)
	for _, m := range movies {
		for _, g := range m.Genres {
			if g = strings.TrimSpace(g); g != "" {
				counts[g]++
			}
		}
	}
	out := make([]Bucket, 0, len(counts))
	for g, n := range counts {
		out = append(out, Bucket{Label: g, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// Timeline orders dated movies by release year.
func Timeline(movies []catalog.Movie) []TimelinePoint {
	out := make([]TimelinePoint, 0, len(movies))
	for _, m := range movies {
		year := m.Year()
		if year == 0 {
			continue
		}
		out = append(out, TimelinePoint{Year: year, Title: m.Title, Rating: m.VoteAverage})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// TopActors counts cast appearances across the set and keeps the n
// most frequent, each with at most five film credits.
func TopActors(movies []catalog.Movie, n int) []ActorCount {
	if n <= 0 {
		n = 10
	}
	counts := make(map[string]*ActorCount)
	var order []string
	for _, m := range movies {
		for _, actor := range m.Cast {
			actor = strings.TrimSpace(actor)
			if actor == "" {
				continue
			}
			ac, ok := counts[actor]
			if !ok {
				ac = &ActorCount{Name: actor}
				counts[actor] = ac
				order = append(order, actor)
			}
			ac.Count++
			if len(ac.Credits) < maxActorCredits {
				ac.Credits = append(ac.Credits, m.Title)
			}
		}
	}

	out := make([]ActorCount, 0, len(order))
	for _, name := range order {
		out = append(out, *counts[name])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Compare builds one row per movie with its first three genres.
func Compare(movies []catalog.Movie) []CompareRow {
	out := make([]CompareRow, 0, len(movies))
	for _, m := range movies {
		genres := m.Genres
		if len(genres) > 3 {
			genres = genres[:3]
		}
		out = append(out, CompareRow{
			Title:      m.Title,
			Year:       m.Year(),
			Rating:     m.VoteAverage,
			Votes:      m.VoteCount,
			Popularity: m.Popularity,
			Runtime:    m.Runtime,
			Genres:     genres,
		})
	}
	return out
}

// SharedTraits reports what two movies have in common. Deltas are
// a minus b; year deltas with an undated side are 0.
func SharedTraits(a, b catalog.Movie) Traits {
	t := Traits{
		SharedGenres: intersect(a.Genres, b.Genres),
		SharedCast:   intersect(a.Cast, b.Cast),
		RatingDelta:  a.VoteAverage - b.VoteAverage,
	}
	if ay, by := a.Year(), b.Year(); ay != 0 && by != 0 {
		t.YearDelta = ay - by
	}
	return t
}

// intersect keeps a's order, matching case-insensitively.
func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}
	var out []string
	seen := make(map[string]struct{})
	for _, s := range a {
		key := strings.ToLower(strings.TrimSpace(s))
		if _, ok := set[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
