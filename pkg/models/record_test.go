package models

import (
	"testing"

	"github.com/goccy/go-json"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/jvparquet/pkg/errors"
	"github.com/ajitpratap0/jvparquet/pkg/schema"
)

func TestParseInteger(t *testing.T) {
	tests := []struct {
		name        string
		in          string
		want        int64
		wantPresent bool
		wantErr     bool
	}{
		{name: "plain", in: "42", want: 42, wantPresent: true},
		{name: "leading zeros", in: "0007", want: 7, wantPresent: true},
		{name: "all zeros", in: "0000", want: 0, wantPresent: true},
		{name: "negative", in: "-012", want: -12, wantPresent: true},
		{name: "plus sign", in: "+5", want: 5, wantPresent: true},
		{name: "space padded", in: "  13 ", want: 13, wantPresent: true},
		{name: "full-width padded", in: "　　99", want: 99, wantPresent: true},
		{name: "blank", in: "    "},
		{name: "empty", in: ""},
		{name: "full-width blank", in: "　　"},
		{name: "letters", in: "0A", wantErr: true},
		{name: "inner space", in: "1 2", wantErr: true},
		{name: "decimal point", in: "1.5", wantErr: true},
		{name: "full-width digits", in: "１２", wantErr: true},
		{name: "overflow", in: "99999999999999999999", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, present, err := ParseInteger(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConversion))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPresent, present)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestConvert(t *testing.T) {
	v, err := Convert(Raw("０１２　"), schema.Text)
	require.NoError(t, err)
	s, ok := v.Text()
	assert.True(t, ok)
	assert.Equal(t, "０１２　", s)

	v, err = Convert(Raw(" 0120"), schema.Integer)
	require.NoError(t, err)
	n, ok := v.Int()
	assert.True(t, ok)
	assert.Equal(t, int64(120), n)

	v, err = Convert(Raw("   "), schema.Integer)
	require.NoError(t, err)
	assert.True(t, v.IsAbsent())

	v, err = Convert(Missing(), schema.Text)
	require.NoError(t, err)
	assert.True(t, v.IsAbsent())

	_, err = Convert(Raw("x"), schema.Integer)
	assert.Error(t, err)

	_, err = Convert(Raw("1"), schema.ColumnType(0))
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))
}

func TestValue(t *testing.T) {
	var zero Value
	assert.True(t, zero.IsAbsent())
	assert.Equal(t, KindAbsent, zero.Kind())
	assert.Equal(t, "NULL", zero.String())

	i := IntegerValue(-3)
	assert.Equal(t, KindInteger, i.Kind())
	assert.Equal(t, "-3", i.String())
	_, ok := i.Text()
	assert.False(t, ok)

	s := TextValue("ＡＢ")
	assert.Equal(t, KindText, s.Kind())
	assert.Equal(t, "ＡＢ", s.String())
	_, ok = s.Int()
	assert.False(t, ok)
}

func TestFieldMap(t *testing.T) {
	fields := FieldsFromStrings(map[string]string{"Bamei": "ディープ"})

	text, ok := fields.Get("Bamei").Text()
	assert.True(t, ok)
	assert.Equal(t, "ディープ", text)
	assert.True(t, fields.Get("Umaban").IsAbsent())

	rec := NewParsedRecord("HN", nil)
	assert.NotNil(t, rec.Fields)
	assert.Equal(t, schema.RecordSpec("HN"), rec.Spec)
}

func TestValue_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Value{
		"Umaban": IntegerValue(7),
		"Bamei":  TextValue("ＡＢ　"),
		"Odds":   Absent(),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Umaban":7,"Bamei":"ＡＢ　","Odds":null}`, string(data))
}
