package crawler

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestRecordSetGetKeys verifies present fields are reported in canonical order.
func TestRecordSetGetKeys(t *testing.T) {
	t.Parallel()

	var rec Record
	require.True(t, rec.IsEmpty())
	require.NoError(t, rec.Set(FieldEmail, "info@example.uz"))
	require.NoError(t, rec.Set(FieldName, "Fermer xo'jaligi"))

	require.Equal(t, []Field{FieldName, FieldEmail}, rec.Keys())
	v, ok := rec.Get(FieldName)
	require.True(t, ok)
	require.Equal(t, "Fermer xo'jaligi", v)
	_, ok = rec.Get(FieldPhone)
	require.False(t, ok)
	require.False(t, rec.IsEmpty())
}

func TestRecordSetRejectsUnknownField(t *testing.T) {
	t.Parallel()

	var rec Record
	require.Error(t, rec.Set(Field("fax"), "123"))
	require.True(t, rec.IsEmpty())
}

// TestRecordEmptyStringIsPresent distinguishes an empty value from an absent key.
func TestRecordEmptyStringIsPresent(t *testing.T) {
	t.Parallel()

	var rec Record
	require.NoError(t, rec.Set(FieldPhone, ""))
	v, ok := rec.Get(FieldPhone)
	require.True(t, ok)
	require.Empty(t, v)
}

// TestRecordJSONOmitsAbsentKeys ensures absent fields never serialize as empty strings.
func TestRecordJSONOmitsAbsentKeys(t *testing.T) {
	t.Parallel()

	var rec Record
	require.NoError(t, rec.Set(FieldName, "Acme"))
	data, err := json.Marshal(rec)
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"Acme"}`, string(data))

	data, err = json.Marshal(Record{})
	require.NoError(t, err)
	require.JSONEq(t, `{}`, string(data))
}

func TestNormalizeSpace(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"  a  b ":            "a b",
		"line\n\t  two\r\n":  "line two",
		"":                   "",
		"\n\n":               "",
		"already normalized": "already normalized",
	}
	for in, want := range cases {
		require.Equal(t, want, NormalizeSpace(in), "input %q", in)
	}
}
