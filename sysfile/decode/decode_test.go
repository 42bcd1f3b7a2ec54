package decode

import (
	"bytes"
	"math"
	"testing"

	"github.com/lemenkov/pspp-go/endian"
	"github.com/lemenkov/pspp-go/errs"
	"github.com/lemenkov/pspp-go/section"
	"github.com/lemenkov/pspp-go/sysfile/raw"
	"github.com/lemenkov/pspp-go/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putU32(e endian.EndianEngine, v uint32) []byte {
	b := make([]byte, 4)
	e.PutUint32(b, v)
	return b
}

func numVar(shortName string) raw.VariableRecord {
	return raw.VariableRecord{Width: 0, ShortName: shortName}
}

func strVar(shortName string, width int32) raw.VariableRecord {
	return raw.VariableRecord{Width: width, ShortName: shortName}
}

func contVar() raw.VariableRecord {
	return raw.VariableRecord{Width: -1, ShortName: ""}
}

func TestDecode_BasicVariables(t *testing.T) {
	e := endian.GetLittleEndianEngine()
	records := []raw.Record{
		numVar("AGE"),
		strVar("NAME", 8),
	}

	d, err := Decode(records, e, nil)
	require.NoError(t, err)
	require.Equal(t, 2, d.Count())

	assert.Equal(t, "AGE", d.VariableAt(0).Name.String())
	assert.True(t, d.VariableAt(0).Width.IsNumeric())
	assert.Equal(t, "NAME", d.VariableAt(1).Name.String())
	assert.Equal(t, 8, d.VariableAt(1).Width.N)
}

func TestDecode_DiscreteMissingValues(t *testing.T) {
	e := endian.GetLittleEndianEngine()
	vr := numVar("SEX")
	vr.MissingCode = 2
	vr.Discrete = []float64{8, 9}

	d, err := Decode([]raw.Record{vr}, e, nil)
	require.NoError(t, err)

	v := d.VariableAt(0)
	assert.True(t, v.Missing.Contains(value.Num(8)))
	assert.True(t, v.Missing.Contains(value.Num(9)))
	assert.False(t, v.Missing.Contains(value.Num(1)))
}

func TestDecode_ValueLabels(t *testing.T) {
	e := endian.GetLittleEndianEngine()
	records := []raw.Record{
		numVar("SEX"),
	}

	var raw1 [8]byte
	e.PutUint64(raw1[:], math.Float64bits(1))
	vl := raw.ValueLabelRecord{
		Values:     []raw.LabelEntry{{Raw: raw1, Label: "Male"}},
		VarIndices: []int32{1},
	}
	records = append(records, vl)

	d, err := Decode(records, e, nil)
	require.NoError(t, err)

	label, ok := d.VariableAt(0).Labels.Get(value.Num(1))
	require.True(t, ok)
	assert.Equal(t, "Male", label)
}

func TestDecode_Documents(t *testing.T) {
	e := endian.GetLittleEndianEngine()
	records := []raw.Record{
		numVar("X"),
		raw.DocumentRecord{Lines: []string{"a line of commentary" + string(bytes.Repeat([]byte(" "), 59))}},
	}

	d, err := Decode(records, e, nil)
	require.NoError(t, err)
	require.Len(t, d.Documents(), 1)
	assert.Contains(t, d.Documents()[0], "a line of commentary")
}

func TestDecode_VarDisplay(t *testing.T) {
	e := endian.GetLittleEndianEngine()
	records := []raw.Record{
		numVar("AGE"),
		strVar("NAME", 8),
	}

	var buf bytes.Buffer
	buf.Write(putU32(e, 3)) // measure=scale
	buf.Write(putU32(e, 1)) // alignment=right
	buf.Write(putU32(e, 1)) // measure=nominal
	buf.Write(putU32(e, 0)) // alignment=left

	records = append(records, raw.ExtensionRecord{
		Subtype: section.ExtVarDisplay, ElementSize: 4, ElementCount: 4, Payload: buf.Bytes(),
	})

	d, err := Decode(records, e, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, int(d.VariableAt(0).Measure))
	assert.Equal(t, 2, int(d.VariableAt(0).Alignment))
	assert.Equal(t, 1, int(d.VariableAt(1).Measure))
	assert.Equal(t, 1, int(d.VariableAt(1).Alignment))
}

func TestDecode_LongVarNames(t *testing.T) {
	e := endian.GetLittleEndianEngine()
	records := []raw.Record{
		numVar("V00001"),
		numVar("V00002"),
		raw.ExtensionRecord{
			Subtype: section.ExtLongVarNames, ElementSize: 1,
			Payload: []byte("V00001=IncomeLastYear\tV00002=NumberOfChildren"),
		},
	}

	d, err := Decode(records, e, nil)
	require.NoError(t, err)
	assert.Equal(t, "IncomeLastYear", d.VariableAt(0).Name.String())
	assert.Equal(t, "NumberOfChildren", d.VariableAt(1).Name.String())
}

func TestDecode_VeryLongStrings(t *testing.T) {
	e := endian.GetLittleEndianEngine()
	records := []raw.Record{
		strVar("LONGVAR", 255),
		contVar(),
		contVar(),
		raw.ExtensionRecord{
			Subtype: section.ExtVeryLongStrings, ElementSize: 1,
			Payload: []byte("LONGVAR=00500\x00"),
		},
	}

	d, err := Decode(records, e, nil)
	require.NoError(t, err)
	v := d.VariableAt(0)
	assert.Equal(t, 500, v.Width.N)
	assert.True(t, v.Width.IsVeryLongString())
	assert.Len(t, v.ShortNames(), 0) // not yet assigned; rememberedShortNames is private
}

func TestDecode_LongStringValueLabels(t *testing.T) {
	e := endian.GetLittleEndianEngine()
	records := []raw.Record{
		strVar("BIGSTR", 20),
	}

	var buf bytes.Buffer
	buf.Write(putU32(e, 6))
	buf.WriteString("BIGSTR")
	buf.Write(putU32(e, 20)) // width
	buf.Write(putU32(e, 1))  // n labels
	buf.Write(putU32(e, 3))
	buf.WriteString("abc")
	buf.Write(putU32(e, 5))
	buf.WriteString("Label")

	records = append(records, raw.ExtensionRecord{
		Subtype: section.ExtLongStringLabels, ElementSize: 1, Payload: buf.Bytes(),
	})

	d, err := Decode(records, e, nil)
	require.NoError(t, err)
	v := d.VariableAt(0)
	label, ok := v.Labels.Get(value.Str([]byte("abc")))
	require.True(t, ok)
	assert.Equal(t, "Label", label)
}

func TestDecode_MRSets(t *testing.T) {
	e := endian.GetLittleEndianEngine()
	records := []raw.Record{
		numVar("Q1A"),
		numVar("Q1B"),
		numVar("Q1C"),
		raw.ExtensionRecord{
			Subtype: section.ExtMRSets, ElementSize: 1,
			Payload: []byte("$Q1=C 10 Question 1 Q1A Q1B Q1C\n"),
		},
	}

	d, err := Decode(records, e, nil)
	require.NoError(t, err)
	require.Len(t, d.MRSets(), 1)
	s := d.MRSets()[0]
	assert.Equal(t, "$Q1", s.Name)
	assert.Equal(t, "Question 1", s.Label)
	assert.Len(t, s.Members, 3)
}

func TestDecode_VarSets(t *testing.T) {
	e := endian.GetLittleEndianEngine()
	records := []raw.Record{
		numVar("A"),
		numVar("B"),
		raw.ExtensionRecord{
			Subtype: section.ExtVarSets, ElementSize: 1,
			Payload: []byte("MySet=A B\n"),
		},
	}

	d, err := Decode(records, e, nil)
	require.NoError(t, err)
	require.Len(t, d.VarSets(), 1)
	assert.Equal(t, "MySet", d.VarSets()[0].Name)
	assert.Len(t, d.VarSets()[0].Members, 2)
}

func TestDecode_FileAttributes(t *testing.T) {
	e := endian.GetLittleEndianEngine()
	records := []raw.Record{
		numVar("X"),
		raw.ExtensionRecord{
			Subtype: section.ExtFileAttributes, ElementSize: 1,
			Payload: []byte("Version('1'\n)DataSource('survey'\n)"),
		},
	}

	d, err := Decode(records, e, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, d.Attributes()["Version"])
	assert.Equal(t, []string{"survey"}, d.Attributes()["DataSource"])
}

func TestDecode_VarAttributes(t *testing.T) {
	e := endian.GetLittleEndianEngine()
	records := []raw.Record{
		numVar("AGE"),
		raw.ExtensionRecord{
			Subtype: section.ExtVarAttributes, ElementSize: 1,
			Payload: []byte("AGE:Origin('imputed'\n)/"),
		},
	}

	d, err := Decode(records, e, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"imputed"}, d.VariableAt(0).Attributes["Origin"])
}

func TestDecode_EncodingFromExtensionRecord(t *testing.T) {
	e := endian.GetLittleEndianEngine()
	records := []raw.Record{
		raw.ExtensionRecord{
			Subtype: section.ExtEncoding, ElementSize: 1,
			Payload: []byte("windows-1252"),
		},
		numVar("X"),
	}

	d, err := Decode(records, e, nil)
	require.NoError(t, err)
	assert.Equal(t, "windows-1252", d.Encoding().Name())
}

func TestDecode_UnknownExtensionWarns(t *testing.T) {
	e := endian.GetLittleEndianEngine()
	var warnings []errs.Warning
	sink := func(w errs.Warning) { warnings = append(warnings, w) }

	records := []raw.Record{
		numVar("X"),
		raw.ExtensionRecord{Subtype: 999, ElementSize: 1, ElementCount: 3, Payload: []byte("abc")},
	}

	_, err := Decode(records, e, sink)
	require.NoError(t, err)

	found := false
	for _, w := range warnings {
		if w.Code == errs.WarnUnknownExtension {
			found = true
		}
	}
	assert.True(t, found)
}
