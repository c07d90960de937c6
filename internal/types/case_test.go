//nolint:revive // types is a standard Go package name pattern
package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *Date
	}{
		{"portal format", "15/01/2023", NewDate(2023, time.January, 15)},
		{"surrounding whitespace", " 20/02/2024 ", NewDate(2024, time.February, 20)},
		{"empty", "", nil},
		{"iso format", "2023-01-15", nil},
		{"invalid day", "32/01/2023", nil},
		{"garbage", "next week", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseDate(tt.input))
		})
	}
}

func TestDate_JSON(t *testing.T) {
	rec := CaseRecord{Title: "x", FilingDate: NewDate(2023, time.January, 15)}
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"filing_date":"2023-01-15"`)
	assert.NotContains(t, string(data), "next_hearing_date")

	var back CaseRecord
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec.FilingDate, back.FilingDate)
}

func TestAdvisory_Message(t *testing.T) {
	assert.Contains(t, AdvisoryCaptcha.Message(), "CAPTCHA")
	assert.Empty(t, AdvisoryNone.Message())
}
