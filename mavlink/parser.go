package mavlink

import (
	"encoding/binary"
)

// Status is the outcome of feeding one byte to a Parser.
type Status int

const (
	// NeedMore means no frame is complete yet.
	NeedMore Status = iota
	// Decoded means the byte completed a valid frame.
	Decoded
	// Rejected means the byte invalidated the current candidate frame.
	// The candidate's bytes after its start marker are available from
	// Rejected and may hold the start of a real frame.
	Rejected
)

// Stats counts what a Parser has seen since it was last reset.
type Stats struct {
	Frames      int
	BadChecksum int
	BadHeader   int
	Skipped     int // bytes seen while searching for a start marker
}

// Parser is the per-channel decoding state: start marker search, header and
// payload accumulation and checksum verification. It is not safe for
// concurrent use and must only be used by the run that acquired it.
type Parser struct {
	channel  int
	buff     []byte
	want     int
	rejected []byte
	stats    Stats
}

// NewParser returns a parser outside of any pool.
func NewParser() *Parser {
	return &Parser{buff: make([]byte, 0, headerLenV2+maxPayloadLen+checksumLen+signatureLen)}
}

// Channel is the pool channel the parser was acquired on, or 0.
func (p *Parser) Channel() int {
	return p.channel
}

func (p *Parser) Stats() Stats {
	return p.stats
}

// Reset drops any partial frame and clears the counters.
func (p *Parser) Reset() {
	p.buff = p.buff[:0]
	p.want = 0
	p.rejected = nil
	p.stats = Stats{}
}

// Rejected returns the bytes following the start marker of the candidate
// that was most recently rejected. The slice is only valid until the next
// call to Feed.
func (p *Parser) Rejected() []byte {
	return p.rejected
}

// Feed advances the parser by one byte.
func (p *Parser) Feed(c byte) (Frame, Status) {
	p.rejected = nil

	if len(p.buff) == 0 {
		if c != magicV1 && c != magicV2 {
			p.stats.Skipped++
			return Frame{}, NeedMore
		}
		p.buff = append(p.buff, c)
		return Frame{}, NeedMore
	}

	p.buff = append(p.buff, c)
	v2 := p.buff[0] == magicV2
	n := len(p.buff)

	switch {
	case n == 2:
		// Length byte; total is refined once the v2 flags are known.
		p.want = headerLen(v2) + int(c) + checksumLen
		return Frame{}, NeedMore

	case v2 && n == 3:
		if c&^incompatSigned != 0 {
			p.stats.BadHeader++
			return p.reject()
		}
		if c&incompatSigned != 0 {
			p.want += signatureLen
		}
		return Frame{}, NeedMore

	case n == headerLen(v2):
		if !p.lengthValid(v2) {
			p.stats.BadHeader++
			return p.reject()
		}
	}

	if n < p.want {
		return Frame{}, NeedMore
	}

	return p.complete(v2)
}

func headerLen(v2 bool) int {
	if v2 {
		return headerLenV2
	}
	return headerLenV1
}

func (p *Parser) messageID(v2 bool) uint32 {
	if v2 {
		return uint32(p.buff[7]) | uint32(p.buff[8])<<8 | uint32(p.buff[9])<<16
	}
	return uint32(p.buff[5])
}

func (p *Parser) lengthValid(v2 bool) bool {
	info, ok := messages[p.messageID(v2)]
	if !ok {
		return true
	}
	length := int(p.buff[1])
	if v2 {
		return length <= info.maxLen
	}
	return length == info.minLen
}

func (p *Parser) complete(v2 bool) (Frame, Status) {
	hl := headerLen(v2)
	length := int(p.buff[1])
	msgID := p.messageID(v2)

	extra, _ := crcExtra(msgID)
	crc := crcBytes(crcInit, p.buff[1:hl+length])
	crc = crcAccumulate(crc, extra)
	if crc != binary.LittleEndian.Uint16(p.buff[hl+length:]) {
		p.stats.BadChecksum++
		return p.reject()
	}

	raw := append([]byte(nil), p.buff...)
	f := Frame{
		Version:     1,
		MessageID:   msgID,
		Payload:     raw[hl : hl+length],
		Raw:         raw,
		Sequence:    raw[2],
		SystemID:    raw[3],
		ComponentID: raw[4],
	}
	if v2 {
		f.Version = 2
		f.Sequence = raw[4]
		f.SystemID = raw[5]
		f.ComponentID = raw[6]
	}

	p.buff = p.buff[:0]
	p.want = 0
	p.stats.Frames++
	return f, Decoded
}

func (p *Parser) reject() (Frame, Status) {
	p.rejected = append([]byte(nil), p.buff[1:]...)
	p.buff = p.buff[:0]
	p.want = 0
	return Frame{}, Rejected
}
