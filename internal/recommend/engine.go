// Package recommend ranks catalog movies with four interchangeable
// strategies: content similarity, sentiment, rating history, and a
// weighted hybrid of the three.
package recommend

import (
	"math"
	"sort"
	"strings"

	"github.com/james-bowman/nlp"
	"github.com/james-bowman/nlp/measures/pairwise"
	"gonum.org/v1/gonum/mat"

	"github.com/handrew/reelrec/internal/catalog"
	"github.com/handrew/reelrec/internal/sentiment"
)

// LikedThreshold is the rating (on TMDB's 10-point scale) at or above
// which a movie counts as liked for the rating-history strategy.
const LikedThreshold = 7.0

const maxCastFeatures = 5
const maxReviewsScored = 5

// Scored pairs a movie with a strategy-specific score. Scores are only
// comparable within one strategy's result set.
type Scored struct {
	Movie catalog.Movie `json:"movie"`
	Score float64       `json:"score"`
}

// Weights blends the hybrid strategy. They are not required to sum
// to 1.
type Weights struct {
	Content   float64 `json:"content"`
	History   float64 `json:"history"`
	Sentiment float64 `json:"sentiment"`
}

// DefaultWeights is a tunable default, not a validated constant.
var DefaultWeights = Weights{Content: 0.4, History: 0.3, Sentiment: 0.3}

// HybridRequest parameterizes the blended strategy. Zero-valued parts
// simply contribute nothing.
type HybridRequest struct {
	TargetTitle  string             `json:"target_title,omitempty"`
	Ratings      map[string]float64 `json:"ratings,omitempty"`
	MinSentiment float64            `json:"min_sentiment"`
	N            int                `json:"n"`
	Weights      *Weights           `json:"weights,omitempty"`
}

// Engine holds a fitted TF-IDF model over one catalog. Build a fresh
// engine per catalog; fitting happens once in New.
type Engine struct {
	movies   []catalog.Movie
	byTitle  map[string]int
	vectors  []mat.Vector
	analyzer *sentiment.Analyzer
}

// New fits the engine over the catalog. A nil analyzer gets a default
// one. Movies with missing text fields vectorize from whatever is
// present; a fully empty catalog yields an engine whose strategies all
// return empty results.
func New(movies []catalog.Movie, analyzer *sentiment.Analyzer) *Engine {
	if analyzer == nil {
		analyzer = sentiment.NewAnalyzer()
	}
	e := &Engine{
		movies:   movies,
		byTitle:  make(map[string]int, len(movies)),
		analyzer: analyzer,
	}
	for i, m := range movies {
		title := strings.ToLower(strings.TrimSpace(m.Title))
		if title == "" {
			continue
		}
		if _, ok := e.byTitle[title]; !ok {
			e.byTitle[title] = i
		}
	}
	e.fit()
	return e
}

// fit vectorizes the combined feature strings. On any vectorizer error
// the engine keeps nil vectors and the content strategy degrades to
// empty results.
func (e *Engine) fit() {
	if len(e.movies) == 0 {
		return
	}
	docs := make([]string, len(e.movies))
	for i, m := range e.movies {
		docs[i] = featureString(m)
	}

	vectoriser := nlp.NewCountVectoriser(englishStopWords...)
	counts, err := vectoriser.FitTransform(docs...)
	if err != nil {
		return
	}
	tfidf, err := nlp.NewTfidfTransformer().FitTransform(counts)
	if err != nil {
		return
	}

	dense := mat.DenseCopyOf(tfidf)
	e.vectors = make([]mat.Vector, len(e.movies))
	for i := range e.movies {
		e.vectors[i] = dense.ColView(i)
	}
}

// featureString combines genres, overview, keywords, top cast and
// director into the text the content strategy vectorizes.
func featureString(m catalog.Movie) string {
	parts := make([]string, 0, len(m.Genres)+len(m.Keywords)+maxCastFeatures+2)
	parts = append(parts, m.Genres...)
	if m.Overview != "" {
		parts = append(parts, m.Overview)
	}
	parts = append(parts, m.Keywords...)
	for i, actor := range m.Cast {
		if i >= maxCastFeatures {
			break
		}
		parts = append(parts, actor)
	}
	if m.Director != "" {
		parts = append(parts, m.Director)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// Content returns up to n movies most similar to the titled movie by
// TF-IDF cosine similarity, target excluded, ties kept in catalog
// order. Unknown titles yield an empty result.
func (e *Engine) Content(title string, n int) []Scored {
	idx, ok := e.byTitle[strings.ToLower(strings.TrimSpace(title))]
	if !ok || e.vectors == nil {
		return nil
	}
	scores := e.similarTo(idx)
	out := make([]Scored, 0, len(scores))
	for i, score := range scores {
		if i == idx {
			continue
		}
		out = append(out, Scored{Movie: e.movies[i], Score: score})
	}
	sortStableDesc(out)
	return capN(out, n)
}

// similarTo returns the cosine similarity of every catalog vector
// against the vector at idx, index-aligned with the catalog.
func (e *Engine) similarTo(idx int) []float64 {
	target := e.vectors[idx]
	scores := make([]float64, len(e.vectors))
	for i, v := range e.vectors {
		if i == idx {
			scores[i] = 1
			continue
		}
		s := pairwise.CosineSimilarity(target, v)
		if math.IsNaN(s) {
			s = 0
		}
		scores[i] = s
	}
	return scores
}

// Sentiment ranks the catalog by text polarity (overview averaged with
// up to five reviews), dropping movies below minPolarity. Vote average
// breaks polarity ties, catalog order breaks the rest.
func (e *Engine) Sentiment(minPolarity float64, n int) []Scored {
	out := make([]Scored, 0, len(e.movies))
	for _, m := range e.movies {
		polarity := e.analyzer.MoviePolarity(m.Overview, m.Reviews, maxReviewsScored)
		if polarity < minPolarity {
			continue
		}
		out = append(out, Scored{Movie: m, Score: polarity})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Movie.VoteAverage > out[j].Movie.VoteAverage
	})
	return capN(out, n)
}

// RatingHistory recommends neighbors of the user's liked movies
// (rating >= LikedThreshold). A candidate's score is the max content
// similarity it reaches against any liked movie; already-rated movies
// are excluded.
func (e *Engine) RatingHistory(ratings map[string]float64, n int) []Scored {
	if len(ratings) == 0 || e.vectors == nil {
		return nil
	}

	rated := make(map[int]struct{}, len(ratings))
	var liked []int
	for title, rating := range ratings {
		idx, ok := e.byTitle[strings.ToLower(strings.TrimSpace(title))]
		if !ok {
			continue
		}
		rated[idx] = struct{}{}
		if rating >= LikedThreshold {
			liked = append(liked, idx)
		}
	}
	if len(liked) == 0 {
		return nil
	}
	sort.Ints(liked)

	best := make(map[int]float64)
	for _, idx := range liked {
		for i, score := range e.similarTo(idx) {
			if _, already := rated[i]; already || i == idx || score <= 0 {
				continue
			}
			if score > best[i] {
				best[i] = score
			}
		}
	}

	out := make([]Scored, 0, len(best))
	for i, score := range best {
		out = append(out, Scored{Movie: e.movies[i], Score: score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Movie.ID < out[j].Movie.ID
	})
	return capN(out, n)
}

// Hybrid blends the three strategies: each result set is min-max
// normalized to [0,1] on its own, then summed with the request weights
// (DefaultWeights when absent); a movie missing from a strategy scores
// 0 there. The target movie never appears in the output.
func (e *Engine) Hybrid(req HybridRequest) []Scored {
	n := req.N
	if n <= 0 {
		n = 10
	}
	weights := DefaultWeights
	if req.Weights != nil {
		weights = *req.Weights
	}
	pool := n * 2

	content := normalizeByID(e.Content(req.TargetTitle, pool))
	history := normalizeByID(e.RatingHistory(req.Ratings, pool))
	sentiments := normalizeByID(e.Sentiment(req.MinSentiment, pool))

	targetID := int64(-1)
	if idx, ok := e.byTitle[strings.ToLower(strings.TrimSpace(req.TargetTitle))]; ok {
		targetID = e.movies[idx].ID
	}

	combined := make(map[int64]float64)
	for id, s := range content {
		combined[id] += weights.Content * s
	}
	for id, s := range history {
		combined[id] += weights.History * s
	}
	for id, s := range sentiments {
		combined[id] += weights.Sentiment * s
	}
	delete(combined, targetID)

	out := make([]Scored, 0, len(combined))
	for _, m := range e.movies {
		if score, ok := combined[m.ID]; ok {
			out = append(out, Scored{Movie: m, Score: score})
			delete(combined, m.ID)
		}
	}
	sortStableDesc(out)
	return capN(out, n)
}

// normalizeByID min-max normalizes one strategy's scores to [0,1],
// keyed by movie id. A constant (or singleton) result set maps to 1.
func normalizeByID(scored []Scored) map[int64]float64 {
	if len(scored) == 0 {
		return nil
	}
	lo, hi := scored[0].Score, scored[0].Score
	for _, s := range scored[1:] {
		if s.Score < lo {
			lo = s.Score
		}
		if s.Score > hi {
			hi = s.Score
		}
	}
	out := make(map[int64]float64, len(scored))
	for _, s := range scored {
		if hi > lo {
			out[s.Movie.ID] = (s.Score - lo) / (hi - lo)
		} else {
			out[s.Movie.ID] = 1
		}
	}
	return out
}

func sortStableDesc(scored []Scored) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
}

func capN(scored []Scored, n int) []Scored {
	if n > 0 && len(scored) > n {
		return scored[:n]
	}
	return scored
}
