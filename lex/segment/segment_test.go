package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collect drives s over input in one shot (eof=true immediately), returning
// every segment it reports.
func collect(t *testing.T, s *Segmenter, input string) []struct {
	Kind Kind
	Text string
} {
	t.Helper()
	var out []struct {
		Kind Kind
		Text string
	}
	buf := []byte(input)
	for len(buf) > 0 {
		n, kind, ok := s.Push(buf, true)
		require.True(t, ok, "no segment recognized for remaining input %q", buf)
		require.Greater(t, n, 0)
		out = append(out, struct {
			Kind Kind
			Text string
		}{kind, string(buf[:n])})
		buf = buf[n:]
	}
	return out
}

func TestSegmenter_Identifier(t *testing.T) {
	s := New(Interactive, false)
	segs := collect(t, s, "abc")
	require.Len(t, segs, 1)
	assert.Equal(t, Identifier, segs[0].Kind)
	assert.Equal(t, "abc", segs[0].Text)
}

func TestSegmenter_IdentifierWithDot(t *testing.T) {
	s := New(Interactive, false)
	segs := collect(t, s, "A.B ")
	require.Len(t, segs, 2)
	assert.Equal(t, Identifier, segs[0].Kind)
	assert.Equal(t, "A.B", segs[0].Text)
	assert.Equal(t, Spaces, segs[1].Kind)
}

func TestSegmenter_Number(t *testing.T) {
	s := New(Interactive, false)
	segs := collect(t, s, "3.14")
	require.Len(t, segs, 1)
	assert.Equal(t, Number, segs[0].Kind)
	assert.Equal(t, "3.14", segs[0].Text)
}

func TestSegmenter_NumberWithExponent(t *testing.T) {
	s := New(Interactive, false)
	segs := collect(t, s, "1.5e-10")
	require.Len(t, segs, 1)
	assert.Equal(t, Number, segs[0].Kind)
	assert.Equal(t, "1.5e-10", segs[0].Text)
}

func TestSegmenter_BadExponent(t *testing.T) {
	s := New(Interactive, false)
	segs := collect(t, s, "1e")
	require.Len(t, segs, 1)
	assert.Equal(t, ExpectedExponent, segs[0].Kind)
}

func TestSegmenter_QuotedStringWithDoubledQuote(t *testing.T) {
	s := New(Interactive, false)
	segs := collect(t, s, `'it''s'`)
	require.Len(t, segs, 1)
	assert.Equal(t, QuotedString, segs[0].Kind)
	assert.Equal(t, `'it''s'`, segs[0].Text)
}

func TestSegmenter_UnterminatedQuotedString(t *testing.T) {
	s := New(Interactive, false)
	segs := collect(t, s, `'unterminated`)
	require.Len(t, segs, 1)
	assert.Equal(t, ExpectedQuote, segs[0].Kind)
}

func TestSegmenter_HexAndUnicodeString(t *testing.T) {
	s := New(Interactive, false)
	segs := collect(t, s, `x'41' u'0041'`)
	require.Len(t, segs, 3)
	assert.Equal(t, HexString, segs[0].Kind)
	assert.Equal(t, Spaces, segs[1].Kind)
	assert.Equal(t, UnicodeString, segs[2].Kind)
}

func TestSegmenter_MultiCharPunct(t *testing.T) {
	s := New(Interactive, false)
	segs := collect(t, s, "<= >= ~= <> ** !* <")
	var kinds []Kind
	var texts []string
	for _, seg := range segs {
		if seg.Kind == Punct {
			kinds = append(kinds, seg.Kind)
			texts = append(texts, seg.Text)
		}
	}
	assert.Equal(t, []string{"<=", ">=", "~=", "<>", "**", "!*", "<"}, texts)
}

func TestSegmenter_EndCommandOnDot(t *testing.T) {
	s := New(Interactive, false)
	segs := collect(t, s, "COMPUTE x = 1.")
	last := segs[len(segs)-1]
	assert.Equal(t, EndCommand, last.Kind)
	assert.Equal(t, ".", last.Text)
}

func TestSegmenter_DotInsideNumberDoesNotEndCommand(t *testing.T) {
	s := New(Interactive, false)
	segs := collect(t, s, "1.5")
	require.Len(t, segs, 1)
	assert.Equal(t, Number, segs[0].Kind)
}

func TestSegmenter_MultiLineCommentCommand(t *testing.T) {
	s := New(Interactive, false)
	segs := collect(t, s, "* line one\nline two.")
	require.Len(t, segs, 2)
	assert.Equal(t, CommentCommand, segs[0].Kind)
	assert.Equal(t, "* line one\n", segs[0].Text)
	assert.Equal(t, CommentCommand, segs[1].Kind)
	assert.Equal(t, "line two.", segs[1].Text)
}

func TestSegmenter_BlockComment(t *testing.T) {
	s := New(Interactive, false)
	segs := collect(t, s, "/* a comment\nspanning lines */")
	require.Len(t, segs, 1)
	assert.Equal(t, Comment, segs[0].Kind)
}

func TestSegmenter_BlankLineIsSeparateCommands(t *testing.T) {
	s := New(Batch, false)
	segs := collect(t, s, "X.\n\nY.")
	var kinds []Kind
	for _, seg := range segs {
		kinds = append(kinds, seg.Kind)
	}
	assert.Contains(t, kinds, SeparateCommands)
}

func TestSegmenter_Shbang(t *testing.T) {
	s := New(Interactive, false)
	segs := collect(t, s, "#!/usr/bin/pspp\nX.")
	require.NotEmpty(t, segs)
	assert.Equal(t, Shbang, segs[0].Kind)
	assert.Equal(t, "#!/usr/bin/pspp\n", segs[0].Text)
}

func TestSegmenter_DoRepeatBody(t *testing.T) {
	s := New(Interactive, false)
	collect(t, s, "DO REPEAT")
	s.EnterDoRepeat()
	segs := collect(t, s, "  PRINT #v.\nEND REPEAT.\n")
	require.Len(t, segs, 2)
	assert.Equal(t, Document, segs[0].Kind)
	assert.Equal(t, DoRepeatCommand, segs[1].Kind)
}

func TestSegmenter_DoRepeatNestingOverflow(t *testing.T) {
	s := New(Interactive, false)
	s.EnterDoRepeat()
	var buf []byte
	for i := 0; i < maxDoRepeatNesting; i++ {
		buf = append(buf, []byte("DO REPEAT.\n")...)
	}
	segs := collect(t, s, string(buf))
	require.NotEmpty(t, segs)
	assert.Equal(t, DoRepeatOverflow, segs[len(segs)-1].Kind)
}

func TestSegmenter_InlineData(t *testing.T) {
	s := New(Interactive, false)
	s.EnterInlineData()
	segs := collect(t, s, "1 2 3\n4 5 6\nEND DATA.\n")
	require.Len(t, segs, 3)
	assert.Equal(t, InlineData, segs[0].Kind)
	assert.Equal(t, InlineData, segs[1].Kind)
	assert.Equal(t, EndCommand, segs[2].Kind)
}

func TestSegmenter_DocumentBody(t *testing.T) {
	s := New(Interactive, false)
	s.EnterDocument()
	segs := collect(t, s, "first line\nsecond line\n")
	require.Len(t, segs, 2)
	assert.Equal(t, Document, segs[0].Kind)
	assert.Equal(t, Document, segs[1].Kind)
}

func TestSegmenter_DocumentBodyEndsAtBlankLine(t *testing.T) {
	s := New(Interactive, false)
	s.EnterDocument()
	segs := collect(t, s, "first line\n\nCOMPUTE x = 1.")
	require.GreaterOrEqual(t, len(segs), 3)
	assert.Equal(t, Document, segs[0].Kind)
	assert.Equal(t, SeparateCommands, segs[1].Kind)
	assert.Equal(t, Identifier, segs[2].Kind)
	assert.Equal(t, "COMPUTE", segs[2].Text)
}

func TestSegmenter_MacroBody(t *testing.T) {
	s := New(Interactive, false)
	s.EnterMacroBody()
	segs := collect(t, s, "!LET !x = 1\n!ENDDEFINE.\n")
	require.Len(t, segs, 2)
	assert.Equal(t, MacroBody, segs[0].Kind)
	assert.Equal(t, MacroBody, segs[1].Kind)
}

func TestSegmenter_BatchTrigger(t *testing.T) {
	assert.True(t, BatchTrigger("AGGREGATE"))
	assert.False(t, BatchTrigger("COMPUTE"))
}

func TestSegmenter_PromptAfterNewline(t *testing.T) {
	s := New(Interactive, false)
	segs := collect(t, s, "X.\n")
	for _, seg := range segs {
		if seg.Kind == Newline {
			assert.Equal(t, First, s.Prompt())
		}
	}
}

func TestSegmenter_PromptStaysFirstThroughBlankLines(t *testing.T) {
	s := New(Batch, false)
	collect(t, s, "X.\n\n\n")
	assert.Equal(t, First, s.Prompt())
}

func TestSegmenter_StartDocumentKeyword(t *testing.T) {
	s := New(Interactive, false)
	segs := collect(t, s, "DOCUMENT")
	require.Len(t, segs, 1)
	assert.Equal(t, StartDocument, segs[0].Kind)
	assert.Equal(t, "DOCUMENT", segs[0].Text)
}

func TestSegmenter_DocumentationIsNotStartDocument(t *testing.T) {
	s := New(Interactive, false)
	segs := collect(t, s, "DOCUMENTATION")
	require.Len(t, segs, 1)
	assert.Equal(t, Identifier, segs[0].Kind)
}

func TestSegmenter_MacroName(t *testing.T) {
	s := New(Interactive, false)
	s.ExpectMacroName()
	segs := collect(t, s, "!mymacro (")
	require.GreaterOrEqual(t, len(segs), 1)
	assert.Equal(t, MacroName, segs[0].Kind)
	assert.Equal(t, "!mymacro", segs[0].Text)
}

func TestSegmenter_FileLabelBody(t *testing.T) {
	s := New(Interactive, false)
	s.EnterFileLabel()
	segs := collect(t, s, "some unquoted text.\n")
	require.Len(t, segs, 2)
	assert.Equal(t, UnquotedString, segs[0].Kind)
	assert.Equal(t, "some unquoted text.", segs[0].Text)
	assert.Equal(t, Newline, segs[1].Kind)
}
