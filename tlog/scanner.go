package tlog

import (
	"bufio"
	"errors"
	"io"
	"time"

	"utm-converter/mavlink"
)

// Scanner yields the frames of a telemetry log together with the timestamp
// that follows each of them. Bytes that do not form a valid frame are
// skipped; the scanner never reports them.
type Scanner struct {
	r       io.ByteReader
	parser  *mavlink.Parser
	pending []byte

	// Now is the clock used to resolve timestamp byte order.
	Now func() time.Time
}

// NewScanner reads from r using parser as decoding state. The parser must not
// be shared with another scanner while this one is in use.
func NewScanner(r io.Reader, parser *mavlink.Parser) *Scanner {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}

	return &Scanner{
		r:      br,
		parser: parser,
		Now:    time.Now,
	}
}

func (s *Scanner) readByte() (byte, error) {
	if len(s.pending) > 0 {
		b := s.pending[0]
		s.pending = s.pending[1:]
		return b, nil
	}
	return s.r.ReadByte()
}

// ReadTimestamp reads one timestamp token. A log that ends inside the token
// gives io.EOF.
func (s *Scanner) ReadTimestamp() (uint64, error) {
	var raw [TimestampSize]byte
	for i := range raw {
		b, err := s.readByte()
		if err != nil {
			return 0, err
		}
		raw[i] = b
	}
	return DecodeTimestamp(raw, s.Now()), nil
}

// Next returns the next complete frame and the timestamp that follows it.
// It returns io.EOF when the log ends before either is complete.
func (s *Scanner) Next() (mavlink.Frame, uint64, error) {
	for {
		b, err := s.readByte()
		if err != nil {
			return mavlink.Frame{}, 0, err
		}

		frame, status := s.parser.Feed(b)
		switch status {
		case mavlink.Rejected:
			// The rejected candidate may contain the start of a real frame.
			s.pending = append(append([]byte(nil), s.parser.Rejected()...), s.pending...)
			continue
		case mavlink.NeedMore:
			continue
		}

		ts, err := s.ReadTimestamp()
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = io.EOF
		}
		if err != nil {
			return mavlink.Frame{}, 0, err
		}
		return frame, ts, nil
	}
}
