package handlers

import (
	"fmt"
	"math"
	"net/http"

	"github.com/ClarenceChoo/Digital-Forensics/internal/domain"
)

type statsResponse struct {
	Total                        int     `json:"total"`
	Failed                       int     `json:"failed"`
	SuccessRate                  string  `json:"success_rate"`
	AverageProcessingTimeSeconds float64 `json:"average_processing_time_seconds"`
}

// Stats summarizes the pipeline. Records still in flight count toward total
// but are excluded from the success rate and the duration average.
func (a *App) Stats(w http.ResponseWriter, r *http.Request) {
	records, err := a.Repo.List(r.Context())
	if err != nil {
		a.Log.Error().Err(err).Msg("load stats failed")
		a.error(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	var total, failed, success int
	var durationSum float64
	for i := range records {
		total++
		switch records[i].Status {
		case domain.StatusFailed:
			failed++
		case domain.StatusSuccess:
			success++
		default:
			continue
		}
		durationSum += records[i].ProcessingDurationSeconds
	}

	terminal := success + failed
	rate := 0.0
	if terminal > 0 {
		rate = float64(success) / float64(terminal) * 100
	}
	avg := 0.0
	if terminal > 0 {
		avg = durationSum / float64(terminal)
	}

	a.json(w, http.StatusOK, statsResponse{
		Total:                        total,
		Failed:                       failed,
		SuccessRate:                  fmt.Sprintf("%.2f%%", rate),
		AverageProcessingTimeSeconds: math.Round(avg*100) / 100,
	})
}
