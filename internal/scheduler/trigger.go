package scheduler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wasilibs/go-re2"
)

// Trigger is a user-declared schedule: a time of day, a set of weekdays, and
// an optional IANA timezone. Triggers are immutable; rescheduling replaces
// the whole value.
type Trigger struct {
	Time     string   `json:"time"`
	Days     []string `json:"days"`
	Timezone string   `json:"timezone,omitempty"`
}

// CompiledCronSpec is a trigger compiled to a six-field cron expression
// (sec min hour dom month dow) plus the timezone it runs in.
type CompiledCronSpec struct {
	Expression string
	Timezone   string
}

// InvalidTriggerError reports a trigger that cannot be compiled. It is a user
// input error; the API layer surfaces it as a 400.
type InvalidTriggerError struct {
	Detail string
}

func (e *InvalidTriggerError) Error() string {
	return fmt.Sprintf("invalid trigger: %s", e.Detail)
}

var timePattern = re2.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// BuildCronExpression compiles a trigger. Seconds and minutes are always
// literal, day-of-month and month always wildcards. The day-of-week field is
// `*` only when days is exactly ["*"]; otherwise the caller's tokens are
// comma-joined in the order given, with no sorting or de-duplication.
func BuildCronExpression(trigger Trigger, defaultTimezone string) (CompiledCronSpec, error) {
	m := timePattern.FindStringSubmatch(trigger.Time)
	if m == nil {
		return CompiledCronSpec{}, &InvalidTriggerError{
			Detail: fmt.Sprintf("time %q does not match HH:MM", trigger.Time),
		}
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])

	if len(trigger.Days) == 0 {
		return CompiledCronSpec{}, &InvalidTriggerError{Detail: "days is empty"}
	}

	dayOfWeek := "*"
	if len(trigger.Days) != 1 || trigger.Days[0] != "*" {
		dayOfWeek = strings.Join(trigger.Days, ",")
	}

	timezone := trigger.Timezone
	if timezone == "" {
		timezone = defaultTimezone
	}

	return CompiledCronSpec{
		Expression: fmt.Sprintf("0 %d %d * * %s", minute, hour, dayOfWeek),
		Timezone:   timezone,
	}, nil
}
