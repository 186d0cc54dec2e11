// Package mavlink decodes MAVLink v1 and v2 frames from a byte stream.
//
// A v1 frame is
//
//	0xFE len seq sysid compid msgid payload[len] crc_lo crc_hi
//
// and a v2 frame is
//
//	0xFD len incompat compat seq sysid compid msgid[3] payload[len] crc_lo crc_hi [signature[13]]
//
// The checksum covers everything after the start marker plus a per-message
// CRC_EXTRA byte, so a frame can only be validated for message ids whose
// CRC_EXTRA is known.
package mavlink

import (
	"encoding/binary"
	"fmt"
)

const (
	magicV1 = 0xfe
	magicV2 = 0xfd

	headerLenV1    = 6
	headerLenV2    = 10
	checksumLen    = 2
	signatureLen   = 13
	maxPayloadLen  = 255
	incompatSigned = 0x01
)

// Frame is one checksum-validated MAVLink message.
type Frame struct {
	Version     int
	Sequence    byte
	SystemID    byte
	ComponentID byte
	MessageID   uint32
	Payload     []byte
	Raw         []byte
}

func (f Frame) String() string {
	return fmt.Sprintf("v%d sys=%d comp=%d seq=%d msg=%d len=%d", f.Version, f.SystemID, f.ComponentID, f.Sequence, f.MessageID, len(f.Payload))
}

// Encode builds a v1 frame. It is the inverse of Parser and is mostly useful
// for producing telemetry logs in tests and tools.
func Encode(seq, sysID, compID byte, msgID uint32, payload []byte) ([]byte, error) {
	if msgID > 0xff {
		return nil, fmt.Errorf("message id %d does not fit a v1 frame", msgID)
	}
	if len(payload) > maxPayloadLen {
		return nil, fmt.Errorf("payload too large: %d", len(payload))
	}

	buff := make([]byte, 0, headerLenV1+len(payload)+checksumLen)
	buff = append(buff, magicV1, byte(len(payload)), seq, sysID, compID, byte(msgID))
	buff = append(buff, payload...)
	return appendChecksum(buff, msgID), nil
}

// EncodeV2 builds an unsigned v2 frame, trimming trailing zero bytes of the
// payload the way v2 senders do.
func EncodeV2(seq, sysID, compID byte, msgID uint32, payload []byte) ([]byte, error) {
	if msgID > 0xffffff {
		return nil, fmt.Errorf("message id %d does not fit a v2 frame", msgID)
	}
	if len(payload) > maxPayloadLen {
		return nil, fmt.Errorf("payload too large: %d", len(payload))
	}
	n := len(payload)
	for n > 1 && payload[n-1] == 0 {
		n--
	}
	payload = payload[:n]

	buff := make([]byte, 0, headerLenV2+len(payload)+checksumLen)
	buff = append(buff, magicV2, byte(len(payload)), 0, 0, seq, sysID, compID, byte(msgID), byte(msgID>>8), byte(msgID>>16))
	buff = append(buff, payload...)
	return appendChecksum(buff, msgID), nil
}

func appendChecksum(buff []byte, msgID uint32) []byte {
	extra, _ := crcExtra(msgID)
	crc := crcBytes(crcInit, buff[1:])
	crc = crcAccumulate(crc, extra)
	return binary.LittleEndian.AppendUint16(buff, crc)
}
