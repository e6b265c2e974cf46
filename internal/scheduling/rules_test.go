package scheduling

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codeOf(t *testing.T, err error) Code {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	return verr.Code
}

func TestValidatePastDates(t *testing.T) {
	now := time.Date(2024, 6, 10, 0, 0, 1, 0, time.UTC)
	for _, date := range []string{"2024-06-09", "2024-01-01", "1999-12-31"} {
		t.Run(date, func(t *testing.T) {
			assert.Equal(t, CodePastDate, codeOf(t, Validate(date, "checkup", now)))
		})
	}
}

func TestValidateTodayAndFutureAllowed(t *testing.T) {
	lateEvening := time.Date(2024, 6, 10, 23, 59, 0, 0, time.UTC)
	assert.NoError(t, Validate("2024-06-10", "checkup", lateEvening))
	assert.NoError(t, Validate("2024-06-11", "checkup", lateEvening))
}

func TestValidateUsesNowLocation(t *testing.T) {
	// 01:00 on the 11th in UTC+5:30 is still the 10th in UTC.
	loc := time.FixedZone("IST", 5*3600+1800)
	now := time.Date(2024, 6, 11, 1, 0, 0, 0, loc)
	assert.Equal(t, CodePastDate, codeOf(t, Validate("2024-06-10", "", now)))
}

func TestValidateEmptyOrMalformedDateSkipsPastRule(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	assert.NoError(t, Validate("", "checkup", now))
	assert.NoError(t, Validate("10/06/2020", "checkup", now))
}

func TestValidateReasonLength(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	assert.NoError(t, Validate("2024-06-11", strings.Repeat("a", 50), now))
	assert.Equal(t, CodeReasonTooLong, codeOf(t, Validate("2024-06-11", strings.Repeat("a", 51), now)))
	// characters, not bytes
	assert.NoError(t, Validate("2024-06-11", strings.Repeat("é", 50), now))
	assert.NoError(t, Validate("", "", now))
}

func TestValidatePastDateReportedBeforeReason(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	err := Validate("2024-06-01", strings.Repeat("x", 80), now)
	assert.Equal(t, CodePastDate, codeOf(t, err))
}
