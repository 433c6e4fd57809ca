package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/healthspec-ai/healthspec/cmd/healthspec/ui"
	"github.com/healthspec-ai/healthspec/internal/domain"
	"github.com/healthspec-ai/healthspec/internal/observability"
	"github.com/healthspec-ai/healthspec/internal/storage"
)

var (
	listProjectID string
	listDBPath    string
)

var requirementsCmd = &cobra.Command{
	Use:   "requirements",
	Short: "List persisted requirements for a project",
	RunE:  runListRequirements,
}

func init() {
	requirementsCmd.Flags().StringVarP(&listProjectID, "project", "p", "", "Project UUID (required)")
	requirementsCmd.Flags().StringVar(&listDBPath, "db", "", "SQLite database path (required)")
	requirementsCmd.MarkFlagRequired("project")
	requirementsCmd.MarkFlagRequired("db")
	rootCmd.AddCommand(requirementsCmd)
}

func runListRequirements(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	projectID, err := uuid.Parse(listProjectID)
	if err != nil {
		return fmt.Errorf("invalid project id %q: %w", listProjectID, err)
	}

	db, err := storage.Open("sqlite", listDBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	logger := observability.NewLogger(observability.LogConfig{
		Level:       "warn",
		Format:      "console",
		ServiceName: "healthspec",
	})

	records, err := storage.NewRequirementRepository(db).ListByProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("list requirements: %w", err)
	}
	if len(records) == 0 {
		ui.Info("No requirements found for project %s", listProjectID)
		return nil
	}

	requirements := make([]domain.GeneratedRequirement, 0, len(records))
	for _, rec := range records {
		req, err := rec.ToGenerated()
		if err != nil {
			logger.Warn().Err(err).Str("req", rec.ReqKey).Msg("Skipping undecodable requirement")
			continue
		}
		requirements = append(requirements, req)
	}

	ui.Success("Found %d requirements", len(requirements))
	return writeOutput(map[string]any{
		"projectId":    listProjectID,
		"requirements": requirements,
	})
}
