// Package report exports research results to spreadsheet workbooks.
package report

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/research-orchestrator/internal/model"
)

// WriteWorkbook exports a completed research state to an xlsx workbook with
// one sheet per concern: overview, features, competitors, sources and
// business metrics.
func WriteWorkbook(path string, state *model.ResearchState) error {
	if state.Analysis == nil {
		return eris.New("report: workbook requires a completed analysis")
	}

	f := xlsx.NewFile()

	if err := addOverviewSheet(f, state); err != nil {
		return err
	}
	if err := addFeaturesSheet(f, state.Analysis); err != nil {
		return err
	}
	if err := addCompetitorsSheet(f, state.Analysis); err != nil {
		return err
	}
	if err := addSourcesSheet(f, state); err != nil {
		return err
	}
	if err := addMetricsSheet(f, state.Analysis); err != nil {
		return err
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "report: save workbook")
	}
	return nil
}

func addOverviewSheet(f *xlsx.File, state *model.ResearchState) error {
	sheet, err := f.AddSheet("Overview")
	if err != nil {
		return eris.Wrap(err, "report: add overview sheet")
	}
	a := state.Analysis

	addKV(sheet, "Topic", state.Title)
	addKV(sheet, "Status", string(state.Status))
	addKV(sheet, "Summary", a.Summary)
	addKV(sheet, "Analysis method", a.Method)
	addKV(sheet, "Confidence", fmt.Sprintf("%.0f%%", a.ConfidenceScore*100))
	addKV(sheet, "Search results", fmt.Sprintf("%d", len(state.SearchResults)))
	addKV(sheet, "Extracted documents", fmt.Sprintf("%d", len(state.ExtractedContent)))
	addKV(sheet, "Loop-backs", fmt.Sprintf("%d", state.RetryCount))
	addKV(sheet, "Data gaps", strings.Join(a.DataGaps, "; "))
	return nil
}

func addFeaturesSheet(f *xlsx.File, a *model.AnalysisResult) error {
	sheet, err := f.AddSheet("Features")
	if err != nil {
		return eris.Wrap(err, "report: add features sheet")
	}
	addRow(sheet, "Feature", "Category", "Description", "Sources")
	for _, feat := range a.Features {
		addRow(sheet, feat.Name, feat.Category, feat.Description, strings.Join(feat.Sources, ", "))
	}
	return nil
}

func addCompetitorsSheet(f *xlsx.File, a *model.AnalysisResult) error {
	sheet, err := f.AddSheet("Competitors")
	if err != nil {
		return eris.Wrap(err, "report: add competitors sheet")
	}
	addRow(sheet, "Competitor", "Segment", "Strengths", "Weaknesses")
	for _, c := range a.Competitors {
		addRow(sheet, c.Name, c.Segment, strings.Join(c.Strengths, "; "), strings.Join(c.Weaknesses, "; "))
	}
	return nil
}

func addSourcesSheet(f *xlsx.File, state *model.ResearchState) error {
	sheet, err := f.AddSheet("Sources")
	if err != nil {
		return eris.Wrap(err, "report: add sources sheet")
	}
	addRow(sheet, "Title", "URL", "Source", "Dimension", "Quality", "Crawled")
	for _, r := range state.SearchResults {
		addRow(sheet, r.Title, r.URL, r.Source, string(r.Dimension),
			fmt.Sprintf("%d", r.Quality), fmt.Sprintf("%t", r.Crawled))
	}
	return nil
}

func addMetricsSheet(f *xlsx.File, a *model.AnalysisResult) error {
	sheet, err := f.AddSheet("Metrics")
	if err != nil {
		return eris.Wrap(err, "report: add metrics sheet")
	}
	addKV(sheet, "Pricing model", a.Metrics.PricingModel)
	addKV(sheet, "Price points", strings.Join(a.Metrics.PricePoints, "; "))
	if a.Metrics.ReviewScore > 0 {
		addKV(sheet, "Review score", fmt.Sprintf("%.1f/5", a.Metrics.ReviewScore))
	}
	if a.Metrics.ReviewCount > 0 {
		addKV(sheet, "Review count", fmt.Sprintf("%d", a.Metrics.ReviewCount))
	}
	addKV(sheet, "Adoption signal", a.Metrics.AdoptionSignal)
	if a.MarketData != nil {
		addKV(sheet, "TAM", a.MarketData.TAM)
		addKV(sheet, "SAM", a.MarketData.SAM)
		addKV(sheet, "SOM", a.MarketData.SOM)
		addKV(sheet, "Growth rate", a.MarketData.GrowthRate)
	}
	return nil
}

func addRow(sheet *xlsx.Sheet, values ...string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().Value = v
	}
}

func addKV(sheet *xlsx.Sheet, key, value string) {
	addRow(sheet, key, value)
}
