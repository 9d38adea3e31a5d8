// Package streamdetector implements the streaming state machine that
// watches a model's incremental text output for the trigger signal while
// passing ordinary content straight through, without ever splitting the
// signal (or a closing </think> tag) across two emitted chunks.
package streamdetector

import (
	"strings"

	"github.com/funnycups/toolify-go/internal/xmlparse"
)

// State is the detector's current phase.
type State int

const (
	// StateDetecting is watching incoming text for the trigger signal.
	StateDetecting State = iota
	// StateToolParsing has seen the signal; all further content is
	// buffered for XML parsing instead of being yielded to the client.
	StateToolParsing
)

const thinkOpen = "<think>"
const thinkClose = "</think>"

// Detector holds the running state for one streaming response. It is not
// safe for concurrent use; one Detector is created per in-flight request.
type Detector struct {
	signal      string
	buf         strings.Builder
	state       State
	inThink     bool
	thinkDepth  int
}

// New creates a Detector watching for signal.
func New(signal string) *Detector {
	return &Detector{signal: signal, state: StateDetecting}
}

// ProcessChunk feeds the next delta of text from the upstream. It returns
// the substring safe to forward to the client immediately, and whether the
// trigger signal was just detected. Once detected, later calls yield
// nothing and only append their delta to the buffer Finalize parses.
func (d *Detector) ProcessChunk(delta string) (toYield string, detected bool) {
	if delta == "" {
		return "", false
	}
	if d.state == StateToolParsing {
		d.buf.WriteString(delta)
		return "", false
	}

	d.buf.WriteString(delta)
	buffered := d.buf.String()

	var out strings.Builder
	i := 0
	for i < len(buffered) {
		if skip := d.updateThinkState(buffered, i); skip > 0 {
			end := i + skip
			if end > len(buffered) {
				end = len(buffered)
			}
			out.WriteString(buffered[i:end])
			i = end
			continue
		}

		if !d.inThink && d.canDetectSignalAt(buffered, i) {
			if strings.HasPrefix(buffered[i:], d.signal) {
				d.state = StateToolParsing
				d.buf.Reset()
				d.buf.WriteString(buffered[i:])
				return out.String(), true
			}
		}

		// Keep at least max(len(signal), 8) trailing bytes buffered so a
		// signal or </think> tag split across chunk boundaries is never
		// missed or partially emitted.
		remaining := len(buffered) - i
		minLookahead := len(d.signal)
		if minLookahead < 8 {
			minLookahead = 8
		}
		if remaining < minLookahead {
			break
		}

		out.WriteByte(buffered[i])
		i++
	}

	d.buf.Reset()
	d.buf.WriteString(buffered[i:])
	return out.String(), false
}

// updateThinkState advances nesting depth when buffered[pos:] starts with
// an opening or closing think tag, and returns how many bytes to skip
// (and emit verbatim) for that tag. Returns 0 if pos is not at a think
// boundary.
func (d *Detector) updateThinkState(buffered string, pos int) int {
	rest := buffered[pos:]
	switch {
	case strings.HasPrefix(rest, thinkOpen):
		d.thinkDepth++
		d.inThink = true
		return len(thinkOpen)
	case strings.HasPrefix(rest, thinkClose):
		if d.thinkDepth > 0 {
			d.thinkDepth--
		}
		d.inThink = d.thinkDepth > 0
		return len(thinkClose)
	}
	return 0
}

func (d *Detector) canDetectSignalAt(buffered string, pos int) bool {
	return pos+len(d.signal) <= len(buffered) && !d.inThink
}

// Finalize is called once the upstream stream has ended. If the detector
// is in StateToolParsing, it parses the buffered content as the
// <function_calls> block; otherwise there is nothing to parse.
func (d *Detector) Finalize() []xmlparse.Call {
	if d.state != StateToolParsing {
		return nil
	}
	return xmlparse.Parse(d.buf.String(), d.signal)
}

// State reports the detector's current phase, mainly for tests/logging.
func (d *Detector) State() State { return d.state }

// FlushTail returns and clears whatever trailing bytes ProcessChunk has
// held back waiting for a possible signal or </think> split, for when the
// upstream stream ends while still StateDetecting. Callers must forward
// the result to the client to avoid silently dropping the response's tail.
// It is a no-op once StateToolParsing (that buffer belongs to Finalize).
func (d *Detector) FlushTail() string {
	if d.state != StateDetecting {
		return ""
	}
	tail := d.buf.String()
	d.buf.Reset()
	return tail
}

// Reset restores the detector to its initial state, reusable across a new
// request on a pooled Detector (not currently pooled, but kept symmetric
// with the Python source's reset()).
func (d *Detector) Reset() {
	d.buf.Reset()
	d.state = StateDetecting
	d.inThink = false
	d.thinkDepth = 0
}
