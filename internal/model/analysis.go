package model

// Feature is one identified product capability.
type Feature struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Sources     []string `json:"sources,omitempty"`
}

// Competitor is one identified competing product or vendor.
type Competitor struct {
	Name       string   `json:"name"`
	Strengths  []string `json:"strengths,omitempty"`
	Weaknesses []string `json:"weaknesses,omitempty"`
	Segment    string   `json:"segment,omitempty"`
}

// SWOT holds the four-quadrant strategic assessment.
type SWOT struct {
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
	Opportunities []string `json:"opportunities"`
	Threats       []string `json:"threats"`
}

// MarketData holds market sizing estimates.
type MarketData struct {
	TAM        string  `json:"tam,omitempty"`
	SAM        string  `json:"sam,omitempty"`
	SOM        string  `json:"som,omitempty"`
	GrowthRate string  `json:"growth_rate,omitempty"`
	Confidence float64 `json:"confidence"`
}

// BusinessMetrics holds quantitative indicators surfaced from sources.
type BusinessMetrics struct {
	PricingModel   string   `json:"pricing_model,omitempty"`
	PricePoints    []string `json:"price_points,omitempty"`
	ReviewScore    float64  `json:"review_score,omitempty"`
	ReviewCount    int      `json:"review_count,omitempty"`
	AdoptionSignal string   `json:"adoption_signal,omitempty"`
}

// AnalysisResult is the aggregate produced once per successful run by the
// analyzer. Every field is always populated (possibly with empty
// collections) so the reporter never observes a partial shape.
type AnalysisResult struct {
	Summary         string          `json:"summary"`
	Features        []Feature       `json:"features"`
	Competitors     []Competitor    `json:"competitors"`
	UseCases        []string        `json:"use_cases"`
	TechStack       []string        `json:"tech_stack"`
	SWOT            *SWOT           `json:"swot"`
	MarketData      *MarketData     `json:"market_data"`
	Metrics         BusinessMetrics `json:"metrics"`
	ConfidenceScore float64         `json:"confidence_score"` // 0-1
	DataGaps        []string        `json:"data_gaps"`
	Method          string          `json:"method"` // "generative" or "rule_based"
}
