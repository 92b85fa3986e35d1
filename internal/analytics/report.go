package analytics

import (
	"context"
	"fmt"
	"log"
	"time"

	"chat-gateway/internal/storage"
)

// DailyReport returns a job that summarizes the current day's interactions
// from rec and writes the summary to the log.
func DailyReport(rec storage.Recorder, now func() time.Time) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		events, err := rec.LoadInteractions()
		if err != nil {
			return fmt.Errorf("load interactions: %w", err)
		}
		stats := AnalyzeDailyLogs(events, now().UTC())
		log.Printf("📊 %s", stats.Summary())
		return nil
	}
}
