package model

import "time"

// Dimension is a topical facet of research used to route queries and score
// coverage.
type Dimension string

const (
	DimensionFeatures    Dimension = "features"
	DimensionCompetitors Dimension = "competitors"
	DimensionMarket      Dimension = "market"
	DimensionPricing     Dimension = "pricing"
	DimensionReviews     Dimension = "reviews"
	DimensionTechnical   Dimension = "technical"
)

// Dimensions lists every facet the planner covers on a first pass.
var Dimensions = []Dimension{
	DimensionFeatures,
	DimensionCompetitors,
	DimensionMarket,
	DimensionPricing,
	DimensionReviews,
	DimensionTechnical,
}

// SearchQuery is one planned query. Immutable once created by the planner.
type SearchQuery struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Purpose   string    `json:"purpose"`
	Dimension Dimension `json:"dimension"`
	Priority  int       `json:"priority"` // 1-10
	Hints     []string  `json:"hints,omitempty"`
}

// SearchResult is one gathered source document reference. Results are
// deduplicated by URL and content hash across iterations; Crawled flips
// false to true exactly once, by the extractor.
type SearchResult struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Content     string     `json:"content,omitempty"`
	Quality     int        `json:"quality"` // 1-10
	Crawled     bool       `json:"crawled"`
	QueryID     string     `json:"query_id"`
	Dimension   Dimension  `json:"dimension"`
	CrawledAt   *time.Time `json:"crawled_at,omitempty"`
	ContentHash string     `json:"content_hash,omitempty"`
}

// ExtractionMetadata describes content pulled from one crawled result.
type ExtractionMetadata struct {
	CrawledAt     time.Time `json:"crawled_at"`
	ContentLength int       `json:"content_length"`
	QualityScore  float64   `json:"quality_score"` // 0-10
	Features      []string  `json:"features,omitempty"`
	Competitors   []string  `json:"competitors,omitempty"`
	UseCases      []string  `json:"use_cases,omitempty"`
	TechStack     []string  `json:"tech_stack,omitempty"`
}

// ExtractionResult is the extracted content of one crawled SearchResult.
// Appended, never mutated.
type ExtractionResult struct {
	URL      string             `json:"url"`
	Source   string             `json:"source"`
	Title    string             `json:"title"`
	Content  string             `json:"content"`
	Metadata ExtractionMetadata `json:"metadata"`
}
