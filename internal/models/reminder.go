package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrValidation is returned when a reminder is missing a required field.
var ErrValidation = errors.New("invalid reminder")

// Category groups reminders in the UI.
type Category string

const (
	CategoryWork          Category = "Work"
	CategoryPersonal      Category = "Personal"
	CategoryMedicine      Category = "Medicine"
	CategorySubscriptions Category = "Subscriptions"
	CategoryOther         Category = "Other"
)

// Categories lists every known category in display order.
var Categories = []Category{CategoryWork, CategoryPersonal, CategoryMedicine, CategorySubscriptions, CategoryOther}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Frequency is an informational recurrence label. It does not spawn new reminders.
type Frequency string

const (
	FrequencyDaily     Frequency = "Daily"
	FrequencyMonthly   Frequency = "Monthly"
	FrequencyQuarterly Frequency = "Quarterly"
	FrequencyYearly    Frequency = "Yearly"
)

var Frequencies = []Frequency{FrequencyDaily, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly}

func (f Frequency) Valid() bool {
	for _, known := range Frequencies {
		if f == known {
			return true
		}
	}
	return false
}

// Reminder represents a user reminder as persisted in the key-value store.
type Reminder struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Category    Category   `json:"category"`
	Frequency   Frequency  `json:"frequency"`
	Date        time.Time  `json:"date"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// ReminderInput carries the user-editable fields of a reminder.
type ReminderInput struct {
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	Frequency   Frequency `json:"frequency"`
	Date        time.Time `json:"date"`
}

// Validate rejects input with an empty description, category or frequency,
// unknown enum values, or a zero date.
func (in ReminderInput) Validate() error {
	var problems []string
	if strings.TrimSpace(in.Description) == "" {
		problems = append(problems, "description is required")
	}
	switch {
	case in.Category == "":
		problems = append(problems, "category is required")
	case !in.Category.Valid():
		problems = append(problems, fmt.Sprintf("unknown category %q", in.Category))
	}
	switch {
	case in.Frequency == "":
		problems = append(problems, "frequency is required")
	case !in.Frequency.Valid():
		problems = append(problems, fmt.Sprintf("unknown frequency %q", in.Frequency))
	}
	if in.Date.IsZero() {
		problems = append(problems, "date is required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// Apply copies the editable fields onto r. ID and CreatedAt are left untouched.
func (in ReminderInput) Apply(r *Reminder) {
	r.Description = in.Description
	r.Category = in.Category
	r.Frequency = in.Frequency
	r.Date = in.Date
}
