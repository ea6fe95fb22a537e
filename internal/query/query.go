// Package query implements the list view transforms: search, sort and
// frequency filter. All functions return new slices and never reorder or
// modify their input.
package query

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/nleeper/goment"

	"chronoloom/internal/models"
)

// LongDateLayout is the moment-style layout searched against, e.g. "March 5th 2025".
const LongDateLayout = "MMMM Do YYYY"

// AllFrequencies disables the frequency filter.
const AllFrequencies = "all"

type SortField string

const (
	SortCreatedAt   SortField = "createdAt"
	SortCompletedAt SortField = "completedAt"
)

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// ParseSort validates a sort field and order. Empty values default to createdAt / asc.
func ParseSort(field, order string) (SortField, SortOrder, error) {
	f := SortField(field)
	if f == "" {
		f = SortCreatedAt
	}
	if f != SortCreatedAt && f != SortCompletedAt {
		return "", "", fmt.Errorf("unknown sort field %q", field)
	}
	o := SortOrder(strings.ToLower(order))
	if o == "" {
		o = Asc
	}
	if o != Asc && o != Desc {
		return "", "", fmt.Errorf("unknown sort order %q", order)
	}
	return f, o, nil
}

// FormatLongDate renders t in loc using LongDateLayout.
func FormatLongDate(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	g, err := goment.New(t)
	if err != nil {
		return t.Format("January 2 2006")
	}
	return g.Format(LongDateLayout)
}

// Search keeps reminders whose description, long-form date (in loc) or
// category contains text, ignoring case. Empty text keeps everything.
func Search(reminders []models.Reminder, text string, loc *time.Location) []models.Reminder {
	needle := strings.ToLower(text)
	out := make([]models.Reminder, 0, len(reminders))
	for _, r := range reminders {
		if needle == "" ||
			strings.Contains(strings.ToLower(r.Description), needle) ||
			strings.Contains(strings.ToLower(FormatLongDate(r.Date, loc)), needle) ||
			strings.Contains(strings.ToLower(string(r.Category)), needle) {
			out = append(out, r)
		}
	}
	return out
}

// Sort orders reminders by field. The sort is stable, and reminders that
// lack the field (an incomplete reminder sorted by completedAt) come after
// all others in both directions.
func Sort(reminders []models.Reminder, field SortField, order SortOrder) []models.Reminder {
	out := slices.Clone(reminders)
	if out == nil {
		out = []models.Reminder{}
	}
	slices.SortStableFunc(out, func(a, b models.Reminder) int {
		ta, tb := sortKey(a, field), sortKey(b, field)
		switch {
		case ta == nil && tb == nil:
			return 0
		case ta == nil:
			return 1
		case tb == nil:
			return -1
		}
		c := ta.Compare(*tb)
		if order == Desc {
			c = -c
		}
		return c
	})
	return out
}

func sortKey(r models.Reminder, field SortField) *time.Time {
	if field == SortCompletedAt {
		return r.CompletedAt
	}
	return &r.CreatedAt
}

// FilterFrequency keeps reminders with exactly frequency. "" and "all" keep everything.
func FilterFrequency(reminders []models.Reminder, frequency string) []models.Reminder {
	if frequency == "" || frequency == AllFrequencies {
		return slices.Clone(reminders)
	}
	out := make([]models.Reminder, 0, len(reminders))
	for _, r := range reminders {
		if string(r.Frequency) == frequency {
			out = append(out, r)
		}
	}
	return out
}

// Query is the full list view request.
type Query struct {
	Text      string
	Frequency string
	SortBy    SortField
	Order     SortOrder
	Location  *time.Location
}

// Apply filters by frequency, then searches, then sorts. An empty SortBy
// keeps insertion order.
func (q Query) Apply(reminders []models.Reminder) []models.Reminder {
	out := FilterFrequency(reminders, q.Frequency)
	out = Search(out, q.Text, q.Location)
	if q.SortBy != "" {
		out = Sort(out, q.SortBy, q.Order)
	}
	if out == nil {
		out = []models.Reminder{}
	}
	return out
}
