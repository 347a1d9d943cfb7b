package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCronExpressionWildcardDays(t *testing.T) {
	spec, err := BuildCronExpression(Trigger{Time: "06:00", Days: []string{"*"}}, "UTC")
	require.NoError(t, err)
	assert.Equal(t, "0 0 6 * * *", spec.Expression)
	assert.Equal(t, "UTC", spec.Timezone)
}

func TestBuildCronExpressionWeekdayList(t *testing.T) {
	trigger := Trigger{Time: "08:00", Days: []string{"mon", "tue", "wed", "thu", "fri"}}
	spec, err := BuildCronExpression(trigger, "UTC")
	require.NoError(t, err)
	assert.Equal(t, "0 0 8 * * mon,tue,wed,thu,fri", spec.Expression)
}

func TestBuildCronExpressionPreservesDayOrder(t *testing.T) {
	// Caller order is kept verbatim, including duplicates. No sorting.
	trigger := Trigger{Time: "23:45", Days: []string{"fri", "mon", "fri"}}
	spec, err := BuildCronExpression(trigger, "UTC")
	require.NoError(t, err)
	assert.Equal(t, "0 45 23 * * fri,mon,fri", spec.Expression)
}

func TestBuildCronExpressionTimezoneOverride(t *testing.T) {
	trigger := Trigger{Time: "09:00", Days: []string{"mon"}, Timezone: "America/Toronto"}
	spec, err := BuildCronExpression(trigger, "UTC")
	require.NoError(t, err)
	assert.Equal(t, "America/Toronto", spec.Timezone)
	assert.Equal(t, "0 0 9 * * mon", spec.Expression)
}

func TestBuildCronExpressionDefaultTimezone(t *testing.T) {
	spec, err := BuildCronExpression(Trigger{Time: "09:00", Days: []string{"mon"}}, "Europe/Berlin")
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", spec.Timezone)
}

func TestBuildCronExpressionRejectsBadTime(t *testing.T) {
	for _, badTime := range []string{"", "9:00", "24:00", "12:60", "noon", "12:5", "12:00:00"} {
		_, err := BuildCronExpression(Trigger{Time: badTime, Days: []string{"*"}}, "UTC")
		require.Error(t, err, "time %q should be rejected", badTime)

		var invalid *InvalidTriggerError
		assert.ErrorAs(t, err, &invalid)
	}
}

func TestBuildCronExpressionRejectsEmptyDays(t *testing.T) {
	_, err := BuildCronExpression(Trigger{Time: "06:00"}, "UTC")
	require.Error(t, err)

	var invalid *InvalidTriggerError
	require.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Error(), "days")
}

func TestBuildCronExpressionWildcardOnlyWhenAlone(t *testing.T) {
	// A wildcard mixed into a day list is passed through verbatim, not
	// collapsed; only exactly ["*"] produces the bare wildcard field.
	spec, err := BuildCronExpression(Trigger{Time: "06:00", Days: []string{"mon", "*"}}, "UTC")
	require.NoError(t, err)
	assert.Equal(t, "0 0 6 * * mon,*", spec.Expression)
}
