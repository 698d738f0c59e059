package collector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pricecollector/pkg/price"
)

// FileName names the run log: daily-<date>.json for daily runs, <mode>-<day>-<unix ms>.json otherwise.
func (r *Report) FileName(loc *time.Location) string {
	if r.Mode == ModeDaily && len(r.Dates) == 1 {
		return fmt.Sprintf("daily-%s.json", r.Dates[0])
	}
	day := price.DateOf(r.StartedAt, loc)
	return fmt.Sprintf("%s-%s-%d.json", r.Mode, day, r.StartedAt.UnixMilli())
}

// WriteReport stores r as indented JSON under dir and returns the file path.
func WriteReport(dir string, r *Report, loc *time.Location) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}

	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}

	path := filepath.Join(dir, r.FileName(loc))
	if err := os.WriteFile(path, b, 0644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
