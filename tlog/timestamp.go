// Package tlog reads ground-station telemetry logs: an 8 byte timestamp
// followed by any number of MAVLink frames, each followed by another 8 byte
// timestamp.
//
// Timestamps are microseconds since the Unix epoch. They are written big
// endian, but logs produced on some platforms carry them little endian and
// nothing in the file says which. A timestamp that would lie in the future
// when read big endian is taken to be little endian. A log recorded with a
// badly wrong system clock can defeat this.
package tlog

import (
	"encoding/binary"
	"math/bits"
	"time"
)

const TimestampSize = 8

// DecodeTimestamp decodes one timestamp token, using now to decide its byte
// order.
func DecodeTimestamp(raw [TimestampSize]byte, now time.Time) uint64 {
	ts := binary.BigEndian.Uint64(raw[:])
	if ts > uint64(now.UnixMilli())*1000 {
		ts = bits.ReverseBytes64(ts)
	}
	return ts
}

// EncodeTimestamp writes ts big endian, the way the ground station does.
func EncodeTimestamp(ts uint64) [TimestampSize]byte {
	var raw [TimestampSize]byte
	binary.BigEndian.PutUint64(raw[:], ts)
	return raw
}

// Time converts a timestamp to a UTC time.
func Time(ts uint64) time.Time {
	return time.UnixMicro(int64(ts)).UTC()
}
