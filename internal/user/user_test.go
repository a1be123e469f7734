package user

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	testCases := []struct {
		input   string
		want    Clock
		wantErr bool
	}{
		{input: "00:00", want: Clock{0, 0}},
		{input: "08:00", want: Clock{8, 0}},
		{input: " 23:59 ", want: Clock{23, 59}},
		{input: "24:00", wantErr: true},
		{input: "12:60", wantErr: true},
		{input: "8:00", wantErr: true},
		{input: "08:0", wantErr: true},
		{input: "0800", wantErr: true},
		{input: "ab:cd", wantErr: true},
		{input: "", wantErr: true},
		{input: "-1:30", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ParseClock(tc.input)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidClock)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestClockJSON(t *testing.T) {
	data, err := json.Marshal(Clock{Hour: 7, Minute: 5})
	require.NoError(t, err)
	assert.Equal(t, `"07:05"`, string(data))

	var c Clock
	require.NoError(t, json.Unmarshal([]byte(`"21:30"`), &c))
	assert.Equal(t, Clock{Hour: 21, Minute: 30}, c)

	assert.Error(t, json.Unmarshal([]byte(`"9pm"`), &c))
}

func TestClockMatches(t *testing.T) {
	c := MustParseClock("08:00")
	assert.True(t, c.Matches(time.Date(2025, 1, 1, 8, 0, 59, 0, time.UTC)))
	assert.False(t, c.Matches(time.Date(2025, 1, 1, 8, 1, 0, 0, time.UTC)))
	assert.False(t, c.Matches(time.Date(2025, 1, 1, 20, 0, 0, 0, time.UTC)))
}

func TestValidateTimezone(t *testing.T) {
	tz, err := ValidateTimezone("Europe/London")
	require.NoError(t, err)
	assert.Equal(t, "Europe/London", tz)

	for _, bad := range []string{"", "   ", "Mars/Olympus", "PST8PDT/Nope"} {
		_, err := ValidateTimezone(bad)
		assert.ErrorIs(t, err, ErrInvalidTimezone, bad)
	}
}

func TestNewAndClone(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.FixedZone("X", 3600))
	u := New("reader@example.com", now)

	assert.Equal(t, DefaultTimezone, u.Timezone)
	assert.Equal(t, "08:00", u.SendTime.String())
	assert.Empty(t, u.Sources)
	assert.Equal(t, time.UTC, u.CreatedAt.Location())

	u.Sources = append(u.Sources, SourceRef{Name: "A", URL: "https://a.example"})
	c := u.Clone()
	c.Sources[0].Name = "changed"
	c.Sources = append(c.Sources, SourceRef{Name: "B", URL: "https://b.example"})

	assert.Equal(t, "A", u.Sources[0].Name)
	assert.Len(t, u.Sources, 1)
	assert.True(t, u.HasSourceURL("https://a.example"))
	assert.False(t, u.HasSourceURL("https://A.example"))

	var nilUser *User
	assert.Nil(t, nilUser.Clone())
}

func TestUserJSONShape(t *testing.T) {
	u := New("reader@example.com", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))
	data, err := json.Marshal(u)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"email": "reader@example.com",
		"sources": [],
		"timezone": "America/Los_Angeles",
		"send_time": "08:00",
		"created_at": "2025-01-02T03:04:05Z"
	}`, string(data))
}
