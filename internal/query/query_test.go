package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronoloom/internal/models"
)

var base = time.Date(2025, 3, 5, 9, 30, 0, 0, time.UTC)

func ids(rs []models.Reminder) []string {
	out := []string{}
	for _, r := range rs {
		out = append(out, r.ID)
	}
	return out
}

func sample() []models.Reminder {
	done := base.Add(2 * time.Hour)
	doneEarlier := base.Add(time.Hour)
	return []models.Reminder{
		{ID: "1", Description: "Pay rent", Category: models.CategoryWork, Frequency: models.FrequencyMonthly, Date: base, CreatedAt: base.Add(-3 * time.Hour)},
		{ID: "2", Description: "Buy milk", Category: models.CategoryPersonal, Frequency: models.FrequencyDaily, Date: base.AddDate(0, 1, 0), CreatedAt: base.Add(-1 * time.Hour), CompletedAt: &done},
		{ID: "3", Description: "Netflix", Category: models.CategorySubscriptions, Frequency: models.FrequencyMonthly, Date: base.AddDate(0, 0, 16), CreatedAt: base.Add(-2 * time.Hour), CompletedAt: &doneEarlier},
		{ID: "4", Description: "Vitamins", Category: models.CategoryMedicine, Frequency: models.FrequencyDaily, Date: base.AddDate(0, 0, 1), CreatedAt: base.Add(-4 * time.Hour)},
	}
}

func TestSearch_CategoryCaseInsensitive(t *testing.T) {
	rs := []models.Reminder{
		{ID: "1", Description: "Pay rent", Category: models.CategoryWork, Date: base},
		{ID: "2", Description: "Buy milk", Category: models.CategoryPersonal, Date: base},
	}
	assert.Equal(t, []string{"1"}, ids(Search(rs, "work", time.UTC)))
}

func TestSearch_DescriptionAndDate(t *testing.T) {
	rs := sample()
	assert.Equal(t, []string{"2"}, ids(Search(rs, "MILK", time.UTC)))
	assert.Equal(t, []string{"1"}, ids(Search(rs, "march 5th", time.UTC)))
	assert.Equal(t, []string{"3"}, ids(Search(rs, "21st", time.UTC)))
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(Search(rs, "2025", time.UTC)))
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(Search(rs, "", time.UTC)))
	assert.Empty(t, Search(rs, "dentist", time.UTC))
}

func TestFormatLongDate(t *testing.T) {
	assert.Equal(t, "March 5th 2025", FormatLongDate(base, time.UTC))
	assert.Equal(t, "April 22nd 2025", FormatLongDate(time.Date(2025, 4, 22, 0, 0, 0, 0, time.UTC), time.UTC))

	tokyo := time.FixedZone("JST", 9*60*60)
	late := time.Date(2025, 3, 5, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "March 6th 2025", FormatLongDate(late, tokyo))
}

func TestSort_CreatedAt(t *testing.T) {
	rs := sample()
	assert.Equal(t, []string{"4", "1", "3", "2"}, ids(Sort(rs, SortCreatedAt, Asc)))
	assert.Equal(t, []string{"2", "3", "1", "4"}, ids(Sort(rs, SortCreatedAt, Desc)))
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(rs), "input must not be reordered")
}

func TestSort_CompletedAtMissingLast(t *testing.T) {
	rs := sample()
	assert.Equal(t, []string{"3", "2", "1", "4"}, ids(Sort(rs, SortCompletedAt, Asc)))
	assert.Equal(t, []string{"2", "3", "1", "4"}, ids(Sort(rs, SortCompletedAt, Desc)))
}

func TestFilterFrequency(t *testing.T) {
	rs := sample()
	assert.Equal(t, []string{"1", "3"}, ids(FilterFrequency(rs, "Monthly")))
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(FilterFrequency(rs, "all")))
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(FilterFrequency(rs, "")))
	assert.Empty(t, FilterFrequency(rs, "Yearly"))
	assert.Empty(t, FilterFrequency(rs, "monthly"), "match is exact")
}

func TestParseSort(t *testing.T) {
	f, o, err := ParseSort("", "")
	require.NoError(t, err)
	assert.Equal(t, SortCreatedAt, f)
	assert.Equal(t, Asc, o)

	f, o, err = ParseSort("completedAt", "DESC")
	require.NoError(t, err)
	assert.Equal(t, SortCompletedAt, f)
	assert.Equal(t, Desc, o)

	_, _, err = ParseSort("date", "asc")
	assert.Error(t, err)
	_, _, err = ParseSort("createdAt", "up")
	assert.Error(t, err)
}

func TestQuery_Apply(t *testing.T) {
	q := Query{Text: "e", Frequency: "Daily", SortBy: SortCreatedAt, Order: Desc, Location: time.UTC}
	// Daily: 2 (Buy milk / Personal) and 4 (Vitamins / Medicine); both match "e"
	assert.Equal(t, []string{"2", "4"}, ids(q.Apply(sample())))

	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(Query{}.Apply(sample())))
	assert.NotNil(t, Query{}.Apply(nil))
}
