package auditstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rlegorreta/audit-service/auditstore"
)

//nolint:funlen
func Test_CriteriaBuilder_ValidCombinations(t *testing.T) {
	tests := []struct {
		name     string
		build    func() auditstore.Criteria
		validate func(t *testing.T, filter auditstore.Filter)
	}{
		{
			name: "empty_criteria_builds_empty_filter",
			build: func() auditstore.Criteria {
				return auditstore.NewCriteria()
			},
			validate: func(t *testing.T, f auditstore.Filter) {
				assert.True(t, f.IsEmpty())
				assert.Empty(t, f.Predicates())
			},
		},
		{
			name: "bare_text_value_becomes_exact_match",
			build: func() auditstore.Criteria {
				return auditstore.NewCriteria().
					With("username", auditstore.MatchOperation, "alice")
			},
			validate: func(t *testing.T, f auditstore.Filter) {
				require.Len(t, f.Predicates(), 1)
				p := f.Predicates()[0]
				assert.Equal(t, auditstore.FieldUsername, p.Field())
				assert.Equal(t, auditstore.MatchTextEquals, p.Kind())
				assert.Equal(t, "alice", p.Text())
			},
		},
		{
			name: "percent_wrapped_value_becomes_substring_match",
			build: func() auditstore.Criteria {
				return auditstore.NewCriteria().
					With("eventName", auditstore.MatchOperation, "%login%")
			},
			validate: func(t *testing.T, f auditstore.Filter) {
				require.Len(t, f.Predicates(), 1)
				p := f.Predicates()[0]
				assert.Equal(t, auditstore.FieldEventName, p.Field())
				assert.Equal(t, auditstore.MatchTextContainsFold, p.Kind())
				assert.Equal(t, "login", p.Text())
			},
		},
		{
			name: "percent_signs_inside_value_do_not_trigger_substring_match",
			build: func() auditstore.Criteria {
				return auditstore.NewCriteria().
					With("eventName", auditstore.MatchOperation, "50%off")
			},
			validate: func(t *testing.T, f auditstore.Filter) {
				require.Len(t, f.Predicates(), 1)
				p := f.Predicates()[0]
				assert.Equal(t, auditstore.MatchTextEquals, p.Kind())
				assert.Equal(t, "50%off", p.Text())
			},
		},
		{
			name: "empty_substring_value_filters_nothing",
			build: func() auditstore.Criteria {
				return auditstore.NewCriteria().
					With("eventName", auditstore.MatchOperation, "%%")
			},
			validate: func(t *testing.T, f auditstore.Filter) {
				assert.True(t, f.IsEmpty())
			},
		},
		{
			name: "empty_value_is_dropped",
			build: func() auditstore.Criteria {
				return auditstore.NewCriteria().
					With("username", auditstore.MatchOperation, "").
					With("eventName", auditstore.MatchOperation, nil)
			},
			validate: func(t *testing.T, f auditstore.Filter) {
				assert.True(t, f.IsEmpty())
			},
		},
		{
			name: "unknown_field_is_ignored",
			build: func() auditstore.Criteria {
				return auditstore.NewCriteria().
					With("noSuchField", auditstore.MatchOperation, "whatever").
					With("username", auditstore.MatchOperation, "bob")
			},
			validate: func(t *testing.T, f auditstore.Filter) {
				require.Len(t, f.Predicates(), 1)
				assert.Equal(t, auditstore.FieldUsername, f.Predicates()[0].Field())
			},
		},
		{
			name: "single_date_becomes_calendar_day_window",
			build: func() auditstore.Criteria {
				return auditstore.NewCriteria().
					WithDate(time.Date(2025, 3, 15, 14, 30, 45, 0, time.UTC))
			},
			validate: func(t *testing.T, f auditstore.Filter) {
				require.Len(t, f.Predicates(), 1)
				p := f.Predicates()[0]
				assert.Equal(t, auditstore.FieldEventDate, p.Field())
				assert.Equal(t, auditstore.MatchDay, p.Kind())
				assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), p.From())
				assert.Equal(t, time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC), p.Until())
			},
		},
		{
			name: "two_dates_become_inclusive_range",
			build: func() auditstore.Criteria {
				from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
				until := time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC)
				return auditstore.NewCriteria().WithDateRange(from, until)
			},
			validate: func(t *testing.T, f auditstore.Filter) {
				require.Len(t, f.Predicates(), 1)
				p := f.Predicates()[0]
				assert.Equal(t, auditstore.MatchDateRange, p.Kind())
				assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), p.From())
				assert.Equal(t, time.Date(2025, 1, 31, 23, 59, 59, 0, time.UTC), p.Until())
			},
		},
		{
			name: "equal_range_bounds_are_valid",
			build: func() auditstore.Criteria {
				moment := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
				return auditstore.NewCriteria().WithDateRange(moment, moment)
			},
			validate: func(t *testing.T, f auditstore.Filter) {
				require.Len(t, f.Predicates(), 1)
				assert.Equal(t, auditstore.MatchDateRange, f.Predicates()[0].Kind())
			},
		},
		{
			name: "single_date_as_one_element_slice",
			build: func() auditstore.Criteria {
				return auditstore.NewCriteria().With(
					"eventDate",
					auditstore.MatchOperation,
					[]time.Time{time.Date(2025, 7, 4, 9, 0, 0, 0, time.UTC)},
				)
			},
			validate: func(t *testing.T, f auditstore.Filter) {
				require.Len(t, f.Predicates(), 1)
				assert.Equal(t, auditstore.MatchDay, f.Predicates()[0].Kind())
			},
		},
		{
			name: "criteria_combine_in_order",
			build: func() auditstore.Criteria {
				return auditstore.NewCriteria().
					With("username", auditstore.MatchOperation, "alice").
					With("applicationName", auditstore.MatchOperation, "%bank%").
					WithDate(time.Date(2025, 2, 2, 8, 0, 0, 0, time.UTC))
			},
			validate: func(t *testing.T, f auditstore.Filter) {
				require.Len(t, f.Predicates(), 3)
				assert.Equal(t, auditstore.FieldUsername, f.Predicates()[0].Field())
				assert.Equal(t, auditstore.FieldApplicationName, f.Predicates()[1].Field())
				assert.Equal(t, auditstore.FieldEventDate, f.Predicates()[2].Field())
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			filter, err := tc.build().Build()
			require.NoError(t, err)
			tc.validate(t, filter)
		})
	}
}

func Test_CriteriaBuilder_InvalidInputs(t *testing.T) {
	tests := []struct {
		name  string
		build func() auditstore.Criteria
	}{
		{
			name: "unsupported_operation",
			build: func() auditstore.Criteria {
				return auditstore.NewCriteria().With("username", ">", "alice")
			},
		},
		{
			name: "inverted_date_range",
			build: func() auditstore.Criteria {
				return auditstore.NewCriteria().WithDateRange(
					time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
					time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
				)
			},
		},
		{
			name: "too_many_dates",
			build: func() auditstore.Criteria {
				now := time.Now()
				return auditstore.NewCriteria().With(
					"eventDate", auditstore.MatchOperation, []time.Time{now, now, now})
			},
		},
		{
			name: "non_string_value_for_text_field",
			build: func() auditstore.Criteria {
				return auditstore.NewCriteria().With("username", auditstore.MatchOperation, 42)
			},
		},
		{
			name: "non_time_value_for_date_field",
			build: func() auditstore.Criteria {
				return auditstore.NewCriteria().With("eventDate", auditstore.MatchOperation, "2025-01-01")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.build().Build()
			require.Error(t, err)
			assert.ErrorIs(t, err, auditstore.ErrInvalidQuery)
		})
	}
}

func Test_NotificationsFilter_ShapesThePredicates(t *testing.T) {
	from := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, 5, 8, 0, 0, 0, 0, time.UTC)

	filter := auditstore.NotificationsFilter("carol", from, until)

	require.Len(t, filter.Predicates(), 3)

	nameP := filter.Predicates()[0]
	assert.Equal(t, auditstore.FieldEventName, nameP.Field())
	assert.Equal(t, auditstore.MatchTextEquals, nameP.Kind())
	assert.Equal(t, auditstore.NotificationEventName, nameP.Text())

	userP := filter.Predicates()[1]
	assert.Equal(t, auditstore.FieldUsername, userP.Field())
	assert.Equal(t, auditstore.MatchTextIn, userP.Kind())
	assert.Equal(t, []string{"carol", auditstore.WildcardUsername}, userP.Texts())

	dateP := filter.Predicates()[2]
	assert.Equal(t, auditstore.MatchDateRange, dateP.Kind())
	assert.Equal(t, from, dateP.From())
	assert.Equal(t, until, dateP.Until())
}
