// internal/dedup/value_test.go
package dedup

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_String(t *testing.T) {
	assert.Equal(t, "Juan", String("Juan").String())
	assert.Equal(t, "1234", Number(1234).String())
	assert.Equal(t, "12.5", Number(12.5).String())
	assert.Equal(t, "true", Bool(true).String())
	assert.Equal(t, "", Null().String())
	assert.Equal(t, "", Number(math.NaN()).String())
}

func TestRecord_UnmarshalJSON(t *testing.T) {
	var rec Record
	err := json.Unmarshal([]byte(`{"firstName":"Juan","age":42,"head":true,"email":null}`), &rec)
	require.NoError(t, err)

	assert.Equal(t, KindString, rec["firstName"].Kind())
	assert.Equal(t, KindNumber, rec["age"].Kind())
	assert.Equal(t, KindBool, rec["head"].Kind())
	assert.True(t, rec["email"].IsNull())

	assert.True(t, rec.Has("firstName"))
	assert.False(t, rec.Has("email"), "null counts as absent")
	assert.False(t, rec.Has("missing"))
}

func TestRecord_RejectsNestedValues(t *testing.T) {
	var rec Record
	err := json.Unmarshal([]byte(`{"address":{"city":"Manila"}}`), &rec)
	assert.Error(t, err)

	err = json.Unmarshal([]byte(`{"tags":["a","b"]}`), &rec)
	assert.Error(t, err)
}

func TestRecord_MarshalJSON(t *testing.T) {
	rec := Record{
		"firstName": String("Juan"),
		"age":       Number(42),
		"head":      Bool(false),
		"email":     Null(),
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"firstName":"Juan","age":42,"head":false,"email":null}`, string(data))
}

func TestRecordFromMap(t *testing.T) {
	rec, err := RecordFromMap(map[string]interface{}{
		"firstName":  "Juan",
		"age":        float64(42),
		"household":  7,
		"registered": true,
		"email":      nil,
		"psn":        json.Number("1234"),
	})
	require.NoError(t, err)

	assert.Equal(t, "42", rec["age"].String())
	assert.Equal(t, "7", rec["household"].String())
	assert.Equal(t, "1234", rec["psn"].String())
	assert.True(t, rec["email"].IsNull())

	_, err = RecordFromMap(map[string]interface{}{"address": map[string]interface{}{"city": "Cebu"}})
	assert.Error(t, err)
}

func TestRecord_CloneIsIndependent(t *testing.T) {
	rec := Record{"firstName": String("Juan")}
	clone := rec.Clone()
	clone["firstName"] = String("Jon")

	assert.Equal(t, "Juan", rec["firstName"].String())
	assert.Nil(t, Record(nil).Clone())
}

func TestRecord_ToMap(t *testing.T) {
	rec := Record{"firstName": String("Juan"), "age": Number(3), "email": Null()}
	m := rec.ToMap()

	assert.Equal(t, "Juan", m["firstName"])
	assert.Equal(t, float64(3), m["age"])
	assert.Nil(t, m["email"])

	back, err := RecordFromMap(m)
	require.NoError(t, err)
	assert.Equal(t, rec, back)
}
