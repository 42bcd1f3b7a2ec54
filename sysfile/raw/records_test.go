package raw

import (
	"bytes"
	"math"
	"testing"

	"github.com/lemenkov/pspp-go/endian"
	"github.com/lemenkov/pspp-go/errs"
	"github.com/lemenkov/pspp-go/section"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type builder struct {
	e endian.EndianEngine
	b bytes.Buffer
}

func newBuilder(e endian.EndianEngine) *builder { return &builder{e: e} }

func (bd *builder) i32(v int32) *builder {
	tmp := make([]byte, 4)
	bd.e.PutUint32(tmp, uint32(v))
	bd.b.Write(tmp)
	return bd
}

func (bd *builder) f64(v float64) *builder {
	tmp := make([]byte, 8)
	bd.e.PutUint64(tmp, math.Float64bits(v))
	bd.b.Write(tmp)
	return bd
}

func (bd *builder) raw(s string) *builder {
	bd.b.WriteString(s)
	return bd
}

func (bd *builder) pad(n int) *builder {
	bd.b.Write(make([]byte, n))
	return bd
}

func (bd *builder) bytes() []byte { return bd.b.Bytes() }

func TestReader_ReadAll_VariableThenEnd(t *testing.T) {
	e := endian.GetLittleEndianEngine()
	bd := newBuilder(e)

	bd.i32(int32(section.RecVariable))
	bd.i32(0)       // width: numeric
	bd.i32(0)       // has_label: false
	bd.i32(0)       // missing_code: none
	bd.i32(5)       // print
	bd.i32(5)       // write
	bd.raw("AGE     ") // 8-byte short name

	bd.i32(int32(section.RecEndHeaders))
	bd.i32(0)

	r := NewReader(bytes.NewReader(bd.bytes()), e, nil, 176)
	recs, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 2)

	v, ok := recs[0].(VariableRecord)
	require.True(t, ok)
	assert.Equal(t, int32(0), v.Width)
	assert.False(t, v.HasLabel)
	assert.Equal(t, "AGE", v.ShortName)

	_, ok = recs[1].(EndRecord)
	assert.True(t, ok)
}

func TestReader_ReadVariable_WithLabelAndDiscreteMissing(t *testing.T) {
	e := endian.GetBigEndianEngine()
	bd := newBuilder(e)

	bd.i32(int32(section.RecVariable))
	bd.i32(0)
	bd.i32(1) // has_label
	bd.i32(2) // two discrete missing values
	bd.i32(5)
	bd.i32(5)
	bd.raw("INCOME  ")
	bd.i32(6)
	bd.raw("Income").pad(2) // 6 bytes rounded up to 8
	bd.f64(-1)
	bd.f64(-2)

	bd.i32(int32(section.RecEndHeaders))
	bd.i32(0)

	r := NewReader(bytes.NewReader(bd.bytes()), e, nil, 176)
	recs, err := r.ReadAll()
	require.NoError(t, err)

	v := recs[0].(VariableRecord)
	assert.Equal(t, "Income", v.Label)
	assert.Equal(t, []float64{-1, -2}, v.Discrete)
}

func TestReader_ReadVariable_ContinuationDropsMissing(t *testing.T) {
	e := endian.GetLittleEndianEngine()
	bd := newBuilder(e)

	bd.i32(int32(section.RecVariable))
	bd.i32(-1) // continuation
	bd.i32(0)
	bd.i32(1) // bogus missing code on a continuation record
	bd.i32(0)
	bd.i32(0)
	bd.raw("        ")

	bd.i32(int32(section.RecEndHeaders))
	bd.i32(0)

	var warnings []errs.Warning
	r := NewReader(bytes.NewReader(bd.bytes()), e, func(w errs.Warning) { warnings = append(warnings, w) }, 176)
	recs, err := r.ReadAll()
	require.NoError(t, err)

	v := recs[0].(VariableRecord)
	assert.Nil(t, v.Discrete)
	require.Len(t, warnings, 1)
	assert.Equal(t, errs.WarnDroppedMissingOnContinuation, warnings[0].Code)
}

func TestReader_ReadValueLabelPair(t *testing.T) {
	e := endian.GetLittleEndianEngine()
	bd := newBuilder(e)

	bd.i32(int32(section.RecValueLabel))
	bd.i32(1) // one label
	bd.f64(1) // raw value as numeric
	bd.b.WriteByte(3)
	bd.raw("Yes")
	bd.pad(4) // length byte + "Yes" = 4 bytes, rounded up to 8 leaves 4 pad bytes
	bd.i32(int32(section.RecVarIndexList))
	bd.i32(1)
	bd.i32(1)

	bd.i32(int32(section.RecEndHeaders))
	bd.i32(0)

	r := NewReader(bytes.NewReader(bd.bytes()), e, nil, 176)
	recs, err := r.ReadAll()
	require.NoError(t, err)

	vl := recs[0].(ValueLabelRecord)
	require.Len(t, vl.Values, 1)
	assert.Equal(t, "Yes", vl.Values[0].Label)
	assert.Equal(t, []int32{1}, vl.VarIndices)
}

func TestReader_ReadDocument(t *testing.T) {
	e := endian.GetLittleEndianEngine()
	bd := newBuilder(e)

	bd.i32(int32(section.RecDocument))
	bd.i32(1)
	line := "hello" + string(bytes.Repeat([]byte(" "), 75))
	bd.raw(line)

	bd.i32(int32(section.RecEndHeaders))
	bd.i32(0)

	r := NewReader(bytes.NewReader(bd.bytes()), e, nil, 176)
	recs, err := r.ReadAll()
	require.NoError(t, err)

	doc := recs[0].(DocumentRecord)
	require.Len(t, doc.Lines, 1)
	assert.Len(t, doc.Lines[0], 80)
}

func TestReader_ReadExtension_UnknownSubtypePreserved(t *testing.T) {
	e := endian.GetLittleEndianEngine()
	bd := newBuilder(e)

	bd.i32(int32(section.RecExtension))
	bd.i32(999) // unrecognized subtype
	bd.i32(1)
	bd.i32(4)
	bd.raw("abcd")

	bd.i32(int32(section.RecEndHeaders))
	bd.i32(0)

	r := NewReader(bytes.NewReader(bd.bytes()), e, nil, 176)
	recs, err := r.ReadAll()
	require.NoError(t, err)

	ext := recs[0].(ExtensionRecord)
	assert.Equal(t, section.ExtensionSubtype(999), ext.Subtype)
	assert.Equal(t, []byte("abcd"), ext.Payload)
}

func TestReader_ReadAll_TruncatedFileIsFatal(t *testing.T) {
	e := endian.GetLittleEndianEngine()
	bd := newBuilder(e)
	bd.i32(int32(section.RecVariable))
	bd.i32(0) // truncated mid-record

	r := NewReader(bytes.NewReader(bd.bytes()), e, nil, 176)
	_, err := r.ReadAll()
	assert.Error(t, err)
}
