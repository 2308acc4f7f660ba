package status

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordDecode(t *testing.T) {
	var rep Report
	require.NoError(t, json.Unmarshal([]byte(`{
		"a": {"Alive": true, "Stats": {"TcpBytesRecv": 2048}},
		"b": {"Status": "gone"},
		"c": {"Alive": "yes"}
	}`), &rep))
	require.NoError(t, rep.Validate())

	assert.True(t, rep["a"].Alive)
	assert.False(t, rep["b"].Alive, "missing Alive counts as dead")
	assert.False(t, rep["c"].Alive, "non-bool Alive counts as dead")
	assert.Equal(t, "gone", rep["b"].Fields["Status"])
}

func TestRecordNull(t *testing.T) {
	var rep Report
	require.NoError(t, json.Unmarshal([]byte(`{"a": null}`), &rep))

	assert.Error(t, rep.Validate())
}

func TestRecordEqual(t *testing.T) {
	var a, b, c Record
	require.NoError(t, json.Unmarshal([]byte(`{"Alive":true,"Latency":3}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"Alive":true,"Latency":3}`), &b))
	require.NoError(t, json.Unmarshal([]byte(`{"Alive":true,"Latency":4}`), &c))

	assert.True(t, a.Equal(&b))
	assert.False(t, a.Equal(&c))
	assert.False(t, a.Equal(nil))

	var nilRec *Record
	assert.True(t, nilRec.Equal(nil))
}

func TestRecordMarshalKeepsReportedBytes(t *testing.T) {
	in := []byte(`{"Alive":false,"Zeta":1,"Alpha":2}`)

	var r Record
	require.NoError(t, json.Unmarshal(in, &r))

	out, err := json.Marshal(&r)
	require.NoError(t, err)
	assert.Equal(t, string(in), string(out))
}

func TestNewRecordCopiesFields(t *testing.T) {
	fields := map[string]any{"Status": "up"}

	r := NewRecord(true, fields)
	fields["Status"] = "changed"

	assert.Equal(t, "up", r.Fields["Status"])
	assert.NotContains(t, fields, "Alive")
}
