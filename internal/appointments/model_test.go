package appointments

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-09")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09", d.String())

	empty, err := ParseDate("  ")
	require.NoError(t, err)
	assert.True(t, empty.IsZero())

	_, err = ParseDate("09/03/2024")
	assert.Error(t, err)
}

func TestDateOfIgnoresTimeOfDay(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	late := time.Date(2024, 3, 9, 23, 59, 0, 0, loc)
	early := time.Date(2024, 3, 9, 0, 1, 0, 0, loc)
	assert.True(t, DateOf(late).Equal(DateOf(early)))
	assert.Equal(t, "2024-03-09", DateOf(late).String())
}

func TestDateComparisons(t *testing.T) {
	d := NewDate(2024, time.March, 9)
	assert.True(t, d.AddDays(-1).Before(d))
	assert.True(t, d.AddDays(1).After(d))
	assert.False(t, d.Before(d))
}

func TestAppointmentJSON(t *testing.T) {
	a := Appointment{ID: "7", Date: MustParseDate("2024-05-01"), Reason: "checkup"}
	raw, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"7","date":"2024-05-01","reason":"checkup"}`, string(raw))

	var zero Appointment
	require.NoError(t, json.Unmarshal([]byte(`{"id":"8","date":null}`), &zero))
	assert.True(t, zero.Date.IsZero())

	assert.Error(t, json.Unmarshal([]byte(`{"date":"tomorrow"}`), &zero))
}

func TestEditable(t *testing.T) {
	today := NewDate(2024, time.March, 9)
	assert.True(t, Appointment{Date: today}.Editable(today))
	assert.True(t, Appointment{Date: today.AddDays(3)}.Editable(today))
	assert.False(t, Appointment{Date: today.AddDays(-1)}.Editable(today))
}
