package libraryapi

import (
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ParseDate_Success(t *testing.T) {
	d, err := ParseDate("2024-02-29")

	require.NoError(t, err)
	assert.Equal(t, NewDate(2024, time.February, 29), d)
	assert.Equal(t, "2024-02-29", d.String())
}

func Test_ParseDate_ErrorCases(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "with time of day", input: "2024-02-01T10:00:00Z"},
		{name: "day out of range", input: "2023-02-29"},
		{name: "european order", input: "01.02.2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDate(tt.input)
			assert.ErrorIs(t, err, ErrInvalidDate)
		})
	}
}

func Test_DateOf_TruncatesTimeOfDay(t *testing.T) {
	ts := time.Date(2024, time.March, 3, 23, 59, 59, 0, time.UTC)

	assert.Equal(t, "2024-03-03", DateOf(ts).String())
	assert.Equal(t, 0, DateOf(ts).Time().Hour())
}

func Test_Date_JSON(t *testing.T) {
	tx := BorrowTransaction{
		ID:         7,
		User:       1,
		BorrowDate: NewDate(2024, time.May, 1),
		Status:     StatusBorrowed,
	}

	data, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(tx)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"id":7,"user":1,"book":null,"borrow_date":"2024-05-01","return_date":null,"status":"borrowed"}`,
		string(data),
	)

	var decoded BorrowTransaction
	require.NoError(t, jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &decoded))
	assert.Equal(t, tx, decoded)
}

func Test_Date_UnmarshalJSON_RejectsNonString(t *testing.T) {
	var d Date

	err := d.UnmarshalJSON([]byte(`20240501`))

	assert.ErrorIs(t, err, ErrInvalidDate)
}
