package wire

import (
	"bytes"
	"fmt"
)

// arraySplitter extracts top-level elements from a JSON array delivered as
// arbitrarily split byte chunks. It scans with a bracket-depth counter and
// an escape-aware in-string flag, so a chunk boundary may fall anywhere:
// inside a quoted string, inside nested braces, or exactly on a delimiter.
//
// Elements are emitted as soon as their closing delimiter (a comma or the
// final ']' at depth 1) has been seen; the splitter never waits for the
// array to close. The opening '[' and the top-level ']' are structural and
// are never part of an emitted element.
type arraySplitter struct {
	buf      []byte
	pos      int // next unscanned byte in buf
	elem     int // start of the in-flight element in buf, -1 between elements
	depth    int
	inString bool
	escaped  bool
	started  bool // saw the opening '['
	done     bool // saw the top-level ']'
}

func newArraySplitter() *arraySplitter {
	return &arraySplitter{elem: -1}
}

// feed consumes one chunk and returns every element completed by it.
// Returned slices are copies; they stay valid across further feeds.
func (s *arraySplitter) feed(chunk []byte) ([][]byte, error) {
	if s.done {
		if len(bytes.TrimSpace(chunk)) > 0 {
			return nil, fmt.Errorf("unexpected data after top-level ']'")
		}
		return nil, nil
	}
	s.buf = append(s.buf, chunk...)

	var out [][]byte
	for s.pos < len(s.buf) {
		c := s.buf[s.pos]

		if s.inString {
			switch {
			case s.escaped:
				s.escaped = false
			case c == '\\':
				s.escaped = true
			case c == '"':
				s.inString = false
			}
			s.pos++
			continue
		}

		if !s.started {
			if isJSONSpace(c) {
				s.pos++
				continue
			}
			if c != '[' {
				return out, fmt.Errorf("expected '[' at start of streamed array, got %q", c)
			}
			s.started = true
			s.depth = 1
			s.pos++
			continue
		}

		switch c {
		case '"':
			s.inString = true
			s.escaped = false
			if s.elem < 0 {
				s.elem = s.pos
			}
		case '{', '[':
			s.depth++
			if s.elem < 0 {
				s.elem = s.pos
			}
		case '}':
			s.depth--
			if s.depth < 1 {
				return out, fmt.Errorf("unbalanced '}' in streamed array")
			}
		case ']':
			if s.depth == 1 {
				if s.elem >= 0 {
					if el := bytes.TrimSpace(s.buf[s.elem:s.pos]); len(el) > 0 {
						out = append(out, bytes.Clone(el))
					}
					s.elem = -1
				}
				s.done = true
				s.depth = 0
				if len(bytes.TrimSpace(s.buf[s.pos+1:])) > 0 {
					return out, fmt.Errorf("unexpected data after top-level ']'")
				}
				s.buf = nil
				s.pos = 0
				return out, nil
			}
			s.depth--
		case ',':
			if s.depth == 1 {
				if s.elem < 0 {
					return out, fmt.Errorf("unexpected ',' in streamed array")
				}
				el := bytes.TrimSpace(s.buf[s.elem:s.pos])
				if len(el) == 0 {
					return out, fmt.Errorf("empty element in streamed array")
				}
				out = append(out, bytes.Clone(el))
				s.elem = -1
			}
		default:
			if !isJSONSpace(c) && s.elem < 0 {
				s.elem = s.pos
			}
		}
		s.pos++
	}

	// Drop consumed bytes; keep only the in-flight element prefix.
	keepFrom := s.pos
	if s.elem >= 0 {
		keepFrom = s.elem
	}
	if keepFrom > 0 {
		s.buf = append(s.buf[:0], s.buf[keepFrom:]...)
		s.pos -= keepFrom
		if s.elem >= 0 {
			s.elem = 0
		}
	}
	return out, nil
}

// finish validates state at end of input. An array whose top-level ']' was
// never seen means the transport cut the stream mid-array.
func (s *arraySplitter) finish() error {
	if s.done {
		return nil
	}
	if !s.started && len(bytes.TrimSpace(s.buf)) == 0 {
		return fmt.Errorf("stream ended before array started")
	}
	return fmt.Errorf("stream ended before top-level ']'")
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
