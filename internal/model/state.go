package model

import "time"

// ResearchStatus is the pipeline phase recorded on a ResearchState.
type ResearchStatus string

const (
	ResearchStatusPending    ResearchStatus = "pending"
	ResearchStatusPlanning   ResearchStatus = "planning"
	ResearchStatusSearching  ResearchStatus = "searching"
	ResearchStatusExtracting ResearchStatus = "extracting"
	ResearchStatusAnalyzing  ResearchStatus = "analyzing"
	ResearchStatusReporting  ResearchStatus = "reporting"
	ResearchStatusCompleted  ResearchStatus = "completed"
	ResearchStatusFailed     ResearchStatus = "failed"
	ResearchStatusCancelled  ResearchStatus = "cancelled"
)

// Terminal reports whether the research run has finished.
func (s ResearchStatus) Terminal() bool {
	switch s {
	case ResearchStatusCompleted, ResearchStatusFailed, ResearchStatusCancelled:
		return true
	}
	return false
}

// Step names one stage worker of the pipeline.
type Step string

const (
	StepPlanner   Step = "planner"
	StepSearcher  Step = "searcher"
	StepExtractor Step = "extractor"
	StepAnalyzer  Step = "analyzer"
	StepReporter  Step = "reporter"
)

// StepOrder is the canonical stage sequence. The graph only moves forward
// through it, except on an explicit quality-gate loop-back to the planner.
var StepOrder = []Step{StepPlanner, StepSearcher, StepExtractor, StepAnalyzer, StepReporter}

// ResearchState is the single mutable aggregate driving one pipeline run.
// Exactly one instance exists in memory per active task; the durable
// checkpoint file is the source of truth for recovery.
type ResearchState struct {
	ProjectID       string         `json:"project_id"`
	Title           string         `json:"title"`
	Status          ResearchStatus `json:"status"`
	CurrentStep     Step           `json:"current_step"`
	Progress        int            `json:"progress"`
	ProgressMessage string         `json:"progress_message"`
	StartedAt       time.Time      `json:"started_at"`
	UpdatedAt       time.Time      `json:"updated_at"`

	PendingQueries   []SearchQuery      `json:"pending_queries"`
	SearchResults    []SearchResult     `json:"search_results"`
	ExtractedContent []ExtractionResult `json:"extracted_content"`
	Analysis         *AnalysisResult    `json:"analysis,omitempty"`
	Report           string             `json:"report,omitempty"`

	Thresholds QualityThresholds `json:"thresholds"`

	// SearchIterations counts searcher passes; TotalSearches counts
	// individual queries across all passes.
	SearchIterations int `json:"search_iterations"`
	TotalSearches    int `json:"total_searches"`
	MaxRetries       int `json:"max_retries"`
	RetryCount       int `json:"retry_count"`
}

// NewResearchState returns a pending state for a project.
func NewResearchState(projectID, title string) *ResearchState {
	now := time.Now().UTC()
	return &ResearchState{
		ProjectID:   projectID,
		Title:       title,
		Status:      ResearchStatusPending,
		CurrentStep: StepPlanner,
		MaxRetries:  3,
		StartedAt:   now,
		UpdatedAt:   now,
	}
}

// SetProgress advances the progress indicator. Progress never decreases
// while the run is non-terminal.
func (s *ResearchState) SetProgress(pct int, msg string) {
	if pct > s.Progress {
		s.Progress = pct
	}
	s.ProgressMessage = msg
	s.UpdatedAt = time.Now().UTC()
}

// SeenURLs returns the set of result URLs already collected, used by the
// searcher to keep re-runs idempotent.
func (s *ResearchState) SeenURLs() map[string]bool {
	seen := make(map[string]bool, len(s.SearchResults))
	for _, r := range s.SearchResults {
		seen[r.URL] = true
	}
	return seen
}

// QualityThresholds governs the quality gate. Set once by the planner,
// read-only thereafter.
type QualityThresholds struct {
	MinFeatures      int     `json:"min_features"`
	MinCompetitors   int     `json:"min_competitors"`
	MinUseCases      int     `json:"min_use_cases"`
	MinTechStack     int     `json:"min_tech_stack"`
	MinSearchResults int     `json:"min_search_results"`
	MinIterations    int     `json:"min_iterations"`
	CompletionScore  float64 `json:"completion_score"`
}

// DefaultThresholds returns the planner's baseline gate thresholds.
func DefaultThresholds() QualityThresholds {
	return QualityThresholds{
		MinFeatures:      5,
		MinCompetitors:   3,
		MinUseCases:      3,
		MinTechStack:     3,
		MinSearchResults: 10,
		MinIterations:    1,
		CompletionScore:  0.7,
	}
}
