package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/intentest/intentest/internal/model"
)

// Report is the machine-readable artifact of one run. Results keep
// scenario declaration order.
type Report struct {
	RunID       string                 `json:"run_id"`
	Project     string                 `json:"project,omitempty"`
	Environment string                 `json:"environment,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	FinishedAt  time.Time              `json:"finished_at"`
	Summary     model.RunSummary       `json:"summary"`
	Results     []model.ScenarioResult `json:"results"`
}

// New assembles a report from run results.
func New(project, environment string, startedAt time.Time, results []model.ScenarioResult) *Report {
	return &Report{
		RunID:       uuid.NewString(),
		Project:     project,
		Environment: environment,
		StartedAt:   startedAt,
		FinishedAt:  time.Now(),
		Summary:     model.Summarize(results),
		Results:     results,
	}
}

// Write saves the report as indented JSON, creating parent directories
// as needed.
func (r *Report) Write(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
