package app

import (
	"context"
	"fmt"
	"time"

	"chronoloom/internal/models"
	"chronoloom/internal/reconciler"
)

var sampleDescriptions = []string{
	"Team standup notes",
	"Call the pharmacy",
	"Take vitamin D",
	"Renew streaming subscription",
	"Water the plants",
	"Submit expense report",
	"Book dentist appointment",
	"Cancel gym trial",
}

// SampleReminders returns n reminders cycling through every category and
// frequency, due one hour apart starting an hour after now.
func SampleReminders(now time.Time, n int) []models.ReminderInput {
	out := make([]models.ReminderInput, 0, n)
	for i := 0; i < n; i++ {
		desc := sampleDescriptions[i%len(sampleDescriptions)]
		if i >= len(sampleDescriptions) {
			desc = fmt.Sprintf("%s #%d", desc, i/len(sampleDescriptions)+1)
		}
		out = append(out, models.ReminderInput{
			Description: desc,
			Category:    models.Categories[i%len(models.Categories)],
			Frequency:   models.Frequencies[i%len(models.Frequencies)],
			Date:        now.Add(time.Duration(i+1) * time.Hour).Truncate(time.Minute),
		})
	}
	return out
}

// Seed creates every input through the service so each one is scheduled.
// It stops at the first failure and returns how many were created.
func (a *App) Seed(ctx context.Context, inputs []models.ReminderInput) (int, reconciler.Result, error) {
	var total reconciler.Result
	for i, in := range inputs {
		_, res, err := a.Service.Create(ctx, in)
		if err != nil {
			return i, total, fmt.Errorf("seed reminder %d: %w", i+1, err)
		}
		total.Created = append(total.Created, res.Created...)
		total.Skipped = append(total.Skipped, res.Skipped...)
		total.Failures = append(total.Failures, res.Failures...)
	}
	return len(inputs), total, nil
}
