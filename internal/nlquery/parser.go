// Package nlquery turns free-text movie queries into structured
// requests, by keyword and pattern rules with an optional delegation
// to a hosted completion API.
package nlquery

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/handrew/reelrec/internal/sentiment"
)

// Request is the structured form of a free-text query. Every field is
// optional; a query that matches nothing yields an unconstrained
// request.
type Request struct {
	Year           *int     `json:"year,omitempty"`
	Decade         *int     `json:"decade,omitempty"`
	Genres         []string `json:"genres,omitempty"`
	MinRating      *float64 `json:"min_rating,omitempty"`
	SortBy         string   `json:"sort_by,omitempty"`
	Keywords       string   `json:"keywords,omitempty"`
	QuerySentiment float64  `json:"query_sentiment"`
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

var decadePatterns = []struct {
	pattern *regexp.Regexp
	decade  int
}{
	{regexp.MustCompile(`\b(nineteen )?(eighties|80s)\b`), 1980},
	{regexp.MustCompile(`\b(nineteen )?(nineties|90s)\b`), 1990},
	{regexp.MustCompile(`\b(two thousand|2000s)\b`), 2000},
	{regexp.MustCompile(`\b(twenty tens|2010s)\b`), 2010},
	{regexp.MustCompile(`\b(twenty twenties|2020s)\b`), 2020},
}

// genreKeywords is ordered so detected genres come out deterministic.
var genreKeywords = []struct {
	genre    string
	keywords []string
}{
	{"action", []string{"action", "fight", "battle"}},
	{"comedy", []string{"comedy", "funny", "humor", "laugh"}},
	{"drama", []string{"drama", "dramatic"}},
	{"horror", []string{"horror", "scary", "terrifying"}},
	{"thriller", []string{"thriller", "suspense", "suspenseful"}},
	{"romance", []string{"romance", "romantic", "love story"}},
	{"science fiction", []string{"sci-fi", "science fiction", "scifi"}},
	{"fantasy", []string{"fantasy", "magical"}},
	{"animation", []string{"animation", "animated", "cartoon"}},
	{"documentary", []string{"documentary"}},
}

var highRatingWords = []string{"highly rated", "top rated", "best", "excellent"}
var goodRatingWords = []string{"good", "quality"}
var popularityWords = []string{"popular", "trending", "famous"}

var keywordStopWords = map[string]struct{}{
	"movie": {}, "movies": {}, "film": {}, "films": {}, "show": {},
	"like": {}, "similar": {}, "about": {}, "find": {}, "recommend": {},
	"want": {}, "looking": {}, "for": {}, "with": {}, "from": {},
	"the": {}, "a": {}, "an": {}, "and": {}, "that": {}, "this": {},
}

// Parser extracts structured requests. llm is optional; when present
// it is tried first and any failure falls back to the rules.
type Parser struct {
	analyzer *sentiment.Analyzer
	llm      *LLMClient
}

func NewParser(analyzer *sentiment.Analyzer, llm *LLMClient) *Parser {
	if analyzer == nil {
		analyzer = sentiment.NewAnalyzer()
	}
	return &Parser{analyzer: analyzer, llm: llm}
}

// Parse applies the deterministic rules only.
func (p *Parser) Parse(query string) Request {
	lower := strings.ToLower(query)
	req := Request{}

	if match := yearPattern.FindString(query); match != "" {
		if year, err := strconv.Atoi(match); err == nil {
			req.Year = &year
		}
	}

	for _, d := range decadePatterns {
		if d.pattern.MatchString(lower) {
			decade := d.decade
			req.Decade = &decade
			break
		}
	}

	for _, g := range genreKeywords {
		for _, kw := range g.keywords {
			if strings.Contains(lower, kw) {
				req.Genres = append(req.Genres, g.genre)
				break
			}
		}
	}

	if containsAny(lower, highRatingWords) {
		rating := 7.0
		req.MinRating = &rating
	} else if containsAny(lower, goodRatingWords) {
		rating := 6.0
		req.MinRating = &rating
	}

	if containsAny(lower, popularityWords) {
		req.SortBy = "popularity"
	}

	req.Keywords = extractKeywords(lower)
	req.QuerySentiment = p.analyzer.Polarity(query)
	return req
}

// ParseContext tries the completion API first when configured; any LLM
// failure degrades silently to the rule-based path. It never errors.
func (p *Parser) ParseContext(ctx context.Context, query string) Request {
	if p.llm != nil {
		if req, err := p.llm.Extract(ctx, query); err == nil {
			req.QuerySentiment = p.analyzer.Polarity(query)
			return req
		}
	}
	return p.Parse(query)
}

// Summarize builds the one-line response sentence for a result count
// and the request that produced it.
func Summarize(count int, req Request) string {
	if count == 0 {
		return "I couldn't find any movies matching your criteria. Try adjusting your search!"
	}

	plural := "s"
	if count == 1 {
		plural = ""
	}
	parts := []string{fmt.Sprintf("I found %d movie%s for you", count, plural)}

	if len(req.Genres) > 0 {
		parts = append(parts, fmt.Sprintf("in the %s genre(s)", strings.Join(req.Genres, ", ")))
	}
	if req.Year != nil {
		parts = append(parts, fmt.Sprintf("from %d", *req.Year))
	} else if req.Decade != nil {
		parts = append(parts, fmt.Sprintf("from the %ds", *req.Decade))
	}
	if req.MinRating != nil {
		parts = append(parts, fmt.Sprintf("with rating above %.1f", *req.MinRating))
	}
	return strings.Join(parts, " ") + "!"
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}

// extractKeywords keeps the first three non-stop-words longer than two
// characters.
func extractKeywords(lower string) string {
	var kept []string
	for _, word := range strings.Fields(lower) {
		word = strings.Trim(word, ".,!?\"'")
		if len(word) <= 2 {
			continue
		}
		if _, stop := keywordStopWords[word]; stop {
			continue
		}
		kept = append(kept, word)
		if len(kept) == 3 {
			break
		}
	}
	return strings.Join(kept, " ")
}
