package write

import (
	"io"
	"testing"

	"github.com/lemenkov/pspp-go/dict"
	"github.com/lemenkov/pspp-go/endian"
	"github.com/lemenkov/pspp-go/ident"
	"github.com/lemenkov/pspp-go/section"
	"github.com/lemenkov/pspp-go/sysfile/cases"
	"github.com/lemenkov/pspp-go/sysfile/decode"
	"github.com/lemenkov/pspp-go/sysfile/raw"
	"github.com/lemenkov/pspp-go/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seekBuffer is a minimal in-memory io.WriteSeeker for exercising Writer
// without touching the filesystem.
type seekBuffer struct {
	buf []byte
	pos int64
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	end := s.pos + int64(len(p))
	if end > int64(len(s.buf)) {
		grown := make([]byte, end)
		copy(grown, s.buf)
		s.buf = grown
	}
	copy(s.buf[s.pos:end], p)
	s.pos = end
	return len(p), nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = s.pos + offset
	case io.SeekEnd:
		newPos = int64(len(s.buf)) + offset
	}
	s.pos = newPos
	return newPos, nil
}

func mustVar(t *testing.T, d *dict.Dictionary, name string, w value.Width) *dict.Variable {
	t.Helper()
	id, err := ident.New(name, d.Encoding())
	require.NoError(t, err)
	v := dict.NewVariable(id, w)
	_, err = d.AddVariable(v)
	require.NoError(t, err)
	return v
}

func mustStringWidth(t *testing.T, n int) value.Width {
	t.Helper()
	w, err := value.NewStringWidth(n)
	require.NoError(t, err)
	return w
}

func buildTestDictionary(t *testing.T) *dict.Dictionary {
	t.Helper()
	d := dict.New(ident.UTF8())

	age := mustVar(t, d, "AGE", value.NumericWidth)
	age.Label = "Age in years"
	mv, err := value.NewMissingValues([]value.Datum{value.Num(99)}, nil)
	require.NoError(t, err)
	age.Missing = mv
	age.Labels.Set(value.Num(0), "newborn")

	name := mustVar(t, d, "NAME", mustStringWidth(t, 8))
	name.Labels.Set(value.Str([]byte("X       ")), "unknown")

	notes := mustVar(t, d, "NOTES", mustStringWidth(t, 20))
	notes.Label = "Free-text notes"

	long := mustVar(t, d, "COMMENTS", mustStringWidth(t, 500))
	long.Label = "Free-form comments"
	lmv, err := value.NewMissingValues([]value.Datum{value.Str([]byte("skip"))}, nil)
	require.NoError(t, err)
	long.Missing = lmv
	long.Labels.Set(value.Str([]byte("skip")), "skipped")

	weight := mustVar(t, d, "WEIGHT", value.NumericWidth)
	require.NoError(t, d.SetWeight(4))

	d.SetFileLabel("test file")
	d.SetDocuments([]string{"line one", "line two"})
	d.AddVarSet(&dict.VarSet{Name: "DEMO", Members: []*dict.Variable{age, name}})
	require.NoError(t, d.AddMRSet(&dict.MRSet{
		Name:    "$group",
		Label:   "group label",
		Type:    dict.MRCategory,
		Members: []*dict.Variable{age, weight},
	}))
	d.Attributes()["FileAttr"] = []string{"1"}
	age.Attributes["VarAttr"] = []string{"yes"}

	return d
}

func writeAndReload(t *testing.T, d *dict.Dictionary, opts Options) (*dict.Dictionary, *seekBuffer) {
	t.Helper()
	buf := &seekBuffer{}
	wr, err := New(buf, d, opts)
	require.NoError(t, err)
	require.NoError(t, wr.Finish())

	e := endian.GetLittleEndianEngine()
	rd := raw.NewReader(bytesReaderAt(buf.buf), e, nil, int64(section.HeaderSize))
	records, err := rd.ReadAll()
	require.NoError(t, err)

	got, err := decode.Decode(records, e, nil)
	require.NoError(t, err)
	return got, buf
}

type byteReaderAt struct {
	b   []byte
	pos int
}

func bytesReaderAt(b []byte) io.Reader {
	return &byteReaderAt{b: b[section.HeaderSize:]}
}

func (r *byteReaderAt) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}

func TestWriter_RoundTripsVariables(t *testing.T) {
	d := buildTestDictionary(t)
	opts := DefaultOptions()
	opts.Compression = section.CompressionNone

	got, _ := writeAndReload(t, d, opts)

	require.Equal(t, d.Count(), got.Count())
	assert.Equal(t, "AGE", got.VariableAt(0).Name.String())
	assert.Equal(t, "Age in years", got.VariableAt(0).Label)
	assert.True(t, got.VariableAt(0).Missing.Contains(value.Num(99)))

	label, ok := got.VariableAt(0).Labels.Get(value.Num(0))
	require.True(t, ok)
	assert.Equal(t, "newborn", label)

	assert.Equal(t, 500, got.VariableAt(3).Width.N)
	assert.Equal(t, "Free-form comments", got.VariableAt(3).Label)

	wv, ok := got.Weight()
	require.True(t, ok)
	assert.Equal(t, "WEIGHT", wv.Name.String())

	assert.Equal(t, []string{"line one", "line two"}, got.Documents())
	require.Len(t, got.VarSets(), 1)
	assert.Equal(t, "DEMO", got.VarSets()[0].Name)

	require.Len(t, got.MRSets(), 1)
	assert.Equal(t, dict.MRCategory, got.MRSets()[0].Type)

	assert.Equal(t, []string{"1"}, got.Attributes()["FileAttr"])
	assert.Equal(t, []string{"yes"}, got.VariableAt(0).Attributes["VarAttr"])
	if roleVals, ok := got.VariableAt(0).Attributes["$@Role"]; ok {
		assert.Equal(t, []string{"0"}, roleVals)
	}
}

func TestWriter_VeryLongStringValueLabel(t *testing.T) {
	d := buildTestDictionary(t)
	opts := DefaultOptions()
	opts.Compression = section.CompressionNone

	got, _ := writeAndReload(t, d, opts)

	long := got.VariableAt(3)
	label, ok := long.Labels.Get(value.Str([]byte("skip")))
	require.True(t, ok)
	assert.Equal(t, "skipped", label)
	assert.True(t, long.Missing.Contains(value.Str([]byte("skip"))))
}

func TestWriter_CaseStreamUncompressed(t *testing.T) {
	d := dict.New(ident.UTF8())
	mustVar(t, d, "A", value.NumericWidth)
	mustVar(t, d, "B", mustStringWidth(t, 3))

	opts := DefaultOptions()
	opts.Compression = section.CompressionNone

	buf := &seekBuffer{}
	wr, err := New(buf, d, opts)
	require.NoError(t, err)
	require.NoError(t, wr.WriteCase([]value.Datum{value.Num(7), value.Str([]byte("abc"))}))
	require.NoError(t, wr.Finish())

	e := endian.GetLittleEndianEngine()
	rd := raw.NewReader(bytesReaderAt(buf.buf), e, nil, int64(section.HeaderSize))
	records, err := rd.ReadAll()
	require.NoError(t, err)
	_, err = decode.Decode(records, e, nil)
	require.NoError(t, err)

	caseOffset := int(rd.Offset())
	layout := cases.BuildLayout([]value.Width{value.NumericWidth, mustStringWidth(t, 3)})
	caseRd := cases.NewUncompressedReader(&byteReaderAt{b: buf.buf[caseOffset:]}, e, layout)
	c, err := caseRd.ReadCase()
	require.NoError(t, err)
	assert.Equal(t, 7.0, c[0].Float())
	assert.Equal(t, []byte("abc"), c[1].Bytes())
}
