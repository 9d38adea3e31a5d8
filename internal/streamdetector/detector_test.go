package streamdetector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const signal = "<Function_Ab1c_Start/>"

func feedAll(d *Detector, chunks []string) (string, bool) {
	var out strings.Builder
	for _, c := range chunks {
		yielded, detected := d.ProcessChunk(c)
		out.WriteString(yielded)
		if detected {
			return out.String(), true
		}
	}
	return out.String(), false
}

func TestPlainTextPassesThrough(t *testing.T) {
	d := New(signal)
	out, detected := feedAll(d, []string{"hello ", "world, no tools here."})
	// the lookahead tail is only released at end of stream
	out += d.FlushTail()
	assert.False(t, detected)
	assert.Equal(t, "hello world, no tools here.", out)
}

func TestDetectsSignalSplitAcrossChunks(t *testing.T) {
	d := New(signal)
	half := len(signal) / 2
	chunks := []string{"intro text " + signal[:half], signal[half:] + "<function_calls></function_calls>"}
	out, detected := feedAll(d, chunks)
	assert.True(t, detected)
	assert.Equal(t, "intro text ", out)
}

func TestSignalInsideThinkBlockIsNotDetected(t *testing.T) {
	d := New(signal)
	text := "<think>maybe I should emit " + signal + " but I won't</think>plain answer"
	// trailing padding forces the lookahead buffer to flush the tail of
	// "plain answer" instead of holding it back for a chunk that never comes
	out, detected := feedAll(d, []string{text, strings.Repeat(".", len(signal))})
	assert.False(t, detected)
	assert.Contains(t, out, "plain answer")
	assert.Contains(t, out, signal, "think content, including the literal signal text, still reaches the client")
}

func TestNestedThinkBlocks(t *testing.T) {
	d := New(signal)
	text := "<think>outer <think>inner</think> still thinking</think>" + signal + "<function_calls></function_calls>"
	out, detected := feedAll(d, []string{text})
	assert.True(t, detected)
	assert.NotContains(t, out, signal)
}

func TestFinalizeParsesBufferedToolCall(t *testing.T) {
	d := New(signal)
	_, detected := feedAll(d, []string{"before " + signal + `
<function_calls>
  <function_call><tool>search</tool><args><q>go</q></args></function_call>
</function_calls>`})
	require.True(t, detected)

	calls := d.Finalize()
	require.Len(t, calls, 1)
	assert.Equal(t, "search", calls[0].Name)
	assert.Equal(t, "go", calls[0].Args["q"])
}

func TestFinalizeWithoutDetectionReturnsNil(t *testing.T) {
	d := New(signal)
	_, _ = feedAll(d, []string{"nothing interesting"})
	assert.Nil(t, d.Finalize())
}

func TestStateTransitionAfterToolParsingIgnoresFurtherChunks(t *testing.T) {
	d := New(signal)
	_, detected := feedAll(d, []string{signal})
	require.True(t, detected)
	out, detected2 := d.ProcessChunk("more raw xml")
	assert.Equal(t, "", out)
	assert.False(t, detected2)
}

func TestFlushTailReturnsBufferedBytesAtEndOfStream(t *testing.T) {
	d := New(signal)
	out, detected := feedAll(d, []string{"short"})
	assert.False(t, detected)
	assert.Equal(t, "", out, "bytes under the lookahead floor stay buffered, not dropped")

	tail := d.FlushTail()
	assert.Equal(t, "short", tail)
	assert.Equal(t, "", d.FlushTail(), "a second flush returns nothing once drained")
}

func TestFlushTailIsNoopAfterToolParsingStarts(t *testing.T) {
	d := New(signal)
	_, detected := feedAll(d, []string{signal + "<function_calls></function_calls>"})
	require.True(t, detected)
	assert.Equal(t, "", d.FlushTail(), "the buffered tail belongs to Finalize once parsing a tool call")
}

func TestEmptyChunkIsNoop(t *testing.T) {
	d := New(signal)
	out, detected := d.ProcessChunk("")
	assert.Equal(t, "", out)
	assert.False(t, detected)
}
