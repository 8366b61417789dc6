package record

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_KeepsNumbersAsJSONNumber(t *testing.T) {
	recs, err := Decode(strings.NewReader(`[{"_id":"a1","amount":100.50,"user":{"email":"x@y.z"}}]`))
	require.NoError(t, err)
	require.Len(t, recs, 1)

	amount, ok := recs[0].Lookup("amount")
	require.True(t, ok)
	assert.Equal(t, json.Number("100.50"), amount)

	email, ok := recs[0].Text("user.email")
	require.True(t, ok)
	assert.Equal(t, "x@y.z", email)
}

func TestDecode_RejectsNonArray(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"_id":"a1"}`))
	require.Error(t, err)
}

func TestDecodeOne_EmptyBody(t *testing.T) {
	r, err := DecodeOne([]byte("  \n"))
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestLookup_MissingAndNonObject(t *testing.T) {
	r := Record{"name": "bob", "user": map[string]any{"role": "Admin"}}

	_, ok := r.Lookup("missing")
	assert.False(t, ok)

	_, ok = r.Lookup("name.first")
	assert.False(t, ok, "cannot traverse a string")

	role, ok := r.Text("user.role")
	require.True(t, ok)
	assert.Equal(t, "Admin", role)
}

func TestCheckIDs(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		wantErr string
	}{
		{"unique", []Record{{"_id": "1"}, {"_id": "2"}}, ""},
		{"missing", []Record{{"_id": "1"}, {"name": "x"}}, "missing"},
		{"duplicate", []Record{{"_id": "1"}, {"_id": "1"}}, "duplicate"},
		{"numeric ids", []Record{{"_id": json.Number("7")}, {"_id": json.Number("8")}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckIDs(tt.records, DefaultIDField)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMerge_DoesNotMutateReceiver(t *testing.T) {
	orig := Record{"_id": "1", "status": "Pending"}
	merged := orig.Merge(map[string]any{"status": "Success"})

	assert.Equal(t, "Pending", orig["status"])
	assert.Equal(t, "Success", merged["status"])
}

func TestReplace(t *testing.T) {
	recs := []Record{{"_id": "1", "status": "Pending"}, {"_id": "2", "status": "Pending"}}

	out, ok := Replace(recs, DefaultIDField, "2", map[string]any{"status": "Approved", "_id": "hijack"})
	require.True(t, ok)
	assert.Equal(t, "Approved", out[1]["status"])
	assert.Equal(t, "2", out[1]["_id"], "id field is immutable")
	assert.Equal(t, "Pending", recs[1]["status"], "input slice untouched")

	_, ok = Replace(recs, DefaultIDField, "nope", map[string]any{"status": "x"})
	assert.False(t, ok)
}

func TestRemove(t *testing.T) {
	recs := []Record{{"_id": "1"}, {"_id": "2"}, {"_id": "3"}}

	out, ok := Remove(recs, DefaultIDField, "2")
	require.True(t, ok)
	require.Len(t, out, 2)
	assert.Equal(t, "3", out[1].ID(DefaultIDField))
	assert.Len(t, recs, 3)
}

func TestText(t *testing.T) {
	tests := []struct {
		in   any
		want string
		ok   bool
	}{
		{"abc", "abc", true},
		{json.Number("12.5"), "12.5", true},
		{float64(3), "3", true},
		{true, "true", true},
		{nil, "", false},
		{map[string]any{"a": "b"}, `{"a":"b"}`, true},
	}
	for _, tt := range tests {
		got, ok := Text(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestNumber(t *testing.T) {
	d, ok := Number(json.Number("100.25"))
	require.True(t, ok)
	assert.True(t, d.Equal(decimal.RequireFromString("100.25")))

	d, ok = Number(" 42 ")
	require.True(t, ok)
	assert.True(t, d.Equal(decimal.NewFromInt(42)))

	for _, bad := range []any{"", "abc", "NaN", nil, true} {
		_, ok := Number(bad)
		assert.False(t, ok, "%v should not coerce", bad)
	}
}

func TestParseTime(t *testing.T) {
	ts, dateOnly, ok := ParseTime("2024-05-01")
	require.True(t, ok)
	assert.True(t, dateOnly)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), ts)

	ts, dateOnly, ok = ParseTime("2024-05-01T10:11:12.345Z")
	require.True(t, ok)
	assert.False(t, dateOnly)
	assert.Equal(t, 10, ts.Hour())

	_, _, ok = ParseTime("yesterday")
	assert.False(t, ok)
}

func TestTime_EpochMillis(t *testing.T) {
	ts, ok := Time(json.Number("1714521600000"))
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), ts)
}
