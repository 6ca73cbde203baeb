package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/research-orchestrator/internal/model"
	"github.com/sells-group/research-orchestrator/internal/report"
	"github.com/sells-group/research-orchestrator/pkg/notion"
)

var (
	runTopic   string
	runProject string
	runExport  bool
	runPublish bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run research for a single topic",
	Long:  "Runs the full planner/searcher/extractor/analyzer/reporter pipeline synchronously for one topic, resuming from a checkpoint when one exists.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		projectID := runProject
		if projectID == "" {
			projectID = uuid.NewString()
		}

		if err := env.Store.UpsertProject(ctx, &model.Project{
			ID:     projectID,
			Topic:  runTopic,
			Status: model.ProjectStatusIdle,
		}); err != nil {
			return eris.Wrap(err, "upsert project")
		}

		state, err := env.Checkpoints.Load(projectID)
		if err != nil {
			zap.L().Warn("checkpoint unreadable, starting fresh", zap.Error(err))
			state = nil
		}
		if state == nil || state.Status.Terminal() {
			state = model.NewResearchState(projectID, runTopic)
			if cfg.Pipeline.MaxRetries > 0 {
				state.MaxRetries = cfg.Pipeline.MaxRetries
			}
		}

		if err := env.Graph.Run(ctx, state, func() bool { return false }); err != nil {
			return eris.Wrap(err, "pipeline run")
		}
		if state.Status != model.ResearchStatusCompleted {
			return eris.Errorf("run ended with status %s", state.Status)
		}

		var analysisJSON []byte
		if state.Analysis != nil {
			analysisJSON, _ = json.Marshal(state.Analysis)
		}
		if err := env.Store.SaveReport(ctx, projectID, state.Report, analysisJSON); err != nil {
			zap.L().Warn("report save failed", zap.Error(err))
		}

		zap.L().Info("research complete",
			zap.String("project_id", projectID),
			zap.Int("searches", state.TotalSearches),
			zap.Int("sources", len(state.SearchResults)),
			zap.Int("extracted", len(state.ExtractedContent)),
			zap.Int("loop_backs", state.RetryCount),
		)

		if runExport {
			if err := os.MkdirAll(cfg.Data.ExportDir, 0o755); err != nil {
				return eris.Wrap(err, "create export dir")
			}
			path := filepath.Join(cfg.Data.ExportDir, projectID+".xlsx")
			if err := report.WriteWorkbook(path, state); err != nil {
				return eris.Wrap(err, "export workbook")
			}
			zap.L().Info("workbook exported", zap.String("path", path))
		}

		if runPublish {
			if env.Notion == nil {
				return eris.New("notion token not configured")
			}
			url, err := notion.PublishReport(ctx, env.Notion, cfg.Notion.ReportDB, state.Title, state.Report)
			if err != nil {
				return eris.Wrap(err, "publish report")
			}
			zap.L().Info("report published", zap.String("url", url))
		}

		// Print run summary JSON to stdout
		summary := map[string]any{
			"project_id": projectID,
			"status":     state.Status,
			"searches":   state.TotalSearches,
			"sources":    len(state.SearchResults),
			"extracted":  len(state.ExtractedContent),
			"loop_backs": state.RetryCount,
		}
		if state.Analysis != nil {
			summary["confidence_score"] = state.Analysis.ConfidenceScore
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	},
}

func init() {
	runCmd.Flags().StringVar(&runTopic, "topic", "", "research topic (required)")
	runCmd.Flags().StringVar(&runProject, "project", "", "project ID to resume or create (default: new)")
	runCmd.Flags().BoolVar(&runExport, "export", false, "write an xlsx workbook to the export dir")
	runCmd.Flags().BoolVar(&runPublish, "publish", false, "publish the report to Notion")
	_ = runCmd.MarkFlagRequired("topic")
	rootCmd.AddCommand(runCmd)
}
