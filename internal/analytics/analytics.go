package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"chat-gateway/internal/storage"
)

// DailyStats summarizes the generate turns of one day.
type DailyStats struct {
	Date             string         `json:"date"`
	Turns            int            `json:"turns"`
	PromptChars      int            `json:"prompt_chars"`
	CompletionChars  int            `json:"completion_chars"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	TotalTokens      int            `json:"total_tokens"`
	TurnsByModel     map[string]int `json:"turns_by_model"`
}

// AnalyzeDailyLogs aggregates the events that fall on targetDate's calendar
// day in targetDate's location.
func AnalyzeDailyLogs(events []storage.Event, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.AddDate(0, 0, 1)

	stats := &DailyStats{
		Date:         startOfDay.Format("2006-01-02"),
		TurnsByModel: make(map[string]int),
	}

	for _, event := range events {
		if event.Timestamp.Before(startOfDay) || !event.Timestamp.Before(endOfDay) {
			continue
		}
		stats.Turns++
		stats.PromptChars += len([]rune(event.Prompt))
		stats.CompletionChars += len([]rune(event.Completion))
		stats.PromptTokens += event.PromptTokens
		stats.CompletionTokens += event.CompletionTokens
		stats.TotalTokens += event.TotalTokens
		model := event.Model
		if model == "" {
			model = "unknown"
		}
		stats.TurnsByModel[model]++
	}

	return stats
}

// Summary renders the stats as a short human-readable report.
func (ds *DailyStats) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Usage for %s: %d turns, %d prompt chars, %d completion chars, %d tokens",
		ds.Date, ds.Turns, ds.PromptChars, ds.CompletionChars, ds.TotalTokens)

	models := make([]string, 0, len(ds.TurnsByModel))
	for m := range ds.TurnsByModel {
		models = append(models, m)
	}
	sort.Strings(models)
	for _, m := range models {
		fmt.Fprintf(&b, "\n- %s: %d turns", m, ds.TurnsByModel[m])
	}
	return b.String()
}

func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
