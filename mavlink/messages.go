package mavlink

import (
	"encoding/binary"
	"math"
)

// Message ids handled by the converter.
const (
	MsgGPSRawInt         = 24
	MsgGlobalPositionInt = 33
	MsgVFRHUD            = 74
)

// GPS fix types, from MAVLink's GPS_FIX_TYPE enum.
const (
	FixNone   = 0
	FixNoFix  = 1
	Fix2D     = 2
	Fix3D     = 3
	FixDGPS   = 4
	FixRTK    = 5
	FixRTKFix = 6
)

type messageInfo struct {
	name     string
	crcExtra byte
	minLen   int // v1 payload length
	maxLen   int // v2 payload length including extensions
}

var messages = map[uint32]messageInfo{
	MsgGPSRawInt:         {"GPS_RAW_INT", 24, 30, 52},
	MsgGlobalPositionInt: {"GLOBAL_POSITION_INT", 104, 28, 28},
	MsgVFRHUD:            {"VFR_HUD", 20, 20, 20},
}

func crcExtra(msgID uint32) (byte, bool) {
	info, ok := messages[msgID]
	return info.crcExtra, ok
}

// MessageName returns the MAVLink name of a known message id, or "UNKNOWN".
func MessageName(msgID uint32) string {
	if info, ok := messages[msgID]; ok {
		return info.name
	}
	return "UNKNOWN"
}

// GPSRawInt is the raw satellite position fix.
type GPSRawInt struct {
	TimeUsec          uint64
	Lat               int32 // degE7
	Lon               int32 // degE7
	Alt               int32 // mm, MSL
	Eph               uint16
	Epv               uint16
	Vel               uint16 // cm/s
	Cog               uint16 // cdeg
	FixType           uint8
	SatellitesVisible uint8
}

// GlobalPositionInt is the fused position estimate.
type GlobalPositionInt struct {
	TimeBootMs  uint32
	Lat         int32 // degE7
	Lon         int32 // degE7
	Alt         int32 // mm, MSL
	RelativeAlt int32 // mm
	Vx          int16 // cm/s
	Vy          int16
	Vz          int16
	Hdg         uint16 // cdeg
}

// VFRHUD carries the HUD speed readings.
type VFRHUD struct {
	Airspeed    float32
	Groundspeed float32
	Alt         float32
	Climb       float32
	Heading     int16
	Throttle    uint16
}

// v2 senders trim trailing zero bytes, so payloads are zero-extended before
// decoding.
func extend(payload []byte, n int) []byte {
	if len(payload) >= n {
		return payload
	}
	b := make([]byte, n)
	copy(b, payload)
	return b
}

func DecodeGPSRawInt(payload []byte) GPSRawInt {
	p := extend(payload, 30)
	le := binary.LittleEndian
	return GPSRawInt{
		TimeUsec:          le.Uint64(p[0:]),
		Lat:               int32(le.Uint32(p[8:])),
		Lon:               int32(le.Uint32(p[12:])),
		Alt:               int32(le.Uint32(p[16:])),
		Eph:               le.Uint16(p[20:]),
		Epv:               le.Uint16(p[22:]),
		Vel:               le.Uint16(p[24:]),
		Cog:               le.Uint16(p[26:]),
		FixType:           p[28],
		SatellitesVisible: p[29],
	}
}

func (m GPSRawInt) Marshal() []byte {
	p := make([]byte, 30)
	le := binary.LittleEndian
	le.PutUint64(p[0:], m.TimeUsec)
	le.PutUint32(p[8:], uint32(m.Lat))
	le.PutUint32(p[12:], uint32(m.Lon))
	le.PutUint32(p[16:], uint32(m.Alt))
	le.PutUint16(p[20:], m.Eph)
	le.PutUint16(p[22:], m.Epv)
	le.PutUint16(p[24:], m.Vel)
	le.PutUint16(p[26:], m.Cog)
	p[28] = m.FixType
	p[29] = m.SatellitesVisible
	return p
}

func DecodeGlobalPositionInt(payload []byte) GlobalPositionInt {
	p := extend(payload, 28)
	le := binary.LittleEndian
	return GlobalPositionInt{
		TimeBootMs:  le.Uint32(p[0:]),
		Lat:         int32(le.Uint32(p[4:])),
		Lon:         int32(le.Uint32(p[8:])),
		Alt:         int32(le.Uint32(p[12:])),
		RelativeAlt: int32(le.Uint32(p[16:])),
		Vx:          int16(le.Uint16(p[20:])),
		Vy:          int16(le.Uint16(p[22:])),
		Vz:          int16(le.Uint16(p[24:])),
		Hdg:         le.Uint16(p[26:]),
	}
}

func (m GlobalPositionInt) Marshal() []byte {
	p := make([]byte, 28)
	le := binary.LittleEndian
	le.PutUint32(p[0:], m.TimeBootMs)
	le.PutUint32(p[4:], uint32(m.Lat))
	le.PutUint32(p[8:], uint32(m.Lon))
	le.PutUint32(p[12:], uint32(m.Alt))
	le.PutUint32(p[16:], uint32(m.RelativeAlt))
	le.PutUint16(p[20:], uint16(m.Vx))
	le.PutUint16(p[22:], uint16(m.Vy))
	le.PutUint16(p[24:], uint16(m.Vz))
	le.PutUint16(p[26:], m.Hdg)
	return p
}

func DecodeVFRHUD(payload []byte) VFRHUD {
	p := extend(payload, 20)
	le := binary.LittleEndian
	return VFRHUD{
		Airspeed:    math.Float32frombits(le.Uint32(p[0:])),
		Groundspeed: math.Float32frombits(le.Uint32(p[4:])),
		Alt:         math.Float32frombits(le.Uint32(p[8:])),
		Climb:       math.Float32frombits(le.Uint32(p[12:])),
		Heading:     int16(le.Uint16(p[16:])),
		Throttle:    le.Uint16(p[18:]),
	}
}

func (m VFRHUD) Marshal() []byte {
	p := make([]byte, 20)
	le := binary.LittleEndian
	le.PutUint32(p[0:], math.Float32bits(m.Airspeed))
	le.PutUint32(p[4:], math.Float32bits(m.Groundspeed))
	le.PutUint32(p[8:], math.Float32bits(m.Alt))
	le.PutUint32(p[12:], math.Float32bits(m.Climb))
	le.PutUint16(p[16:], uint16(m.Heading))
	le.PutUint16(p[18:], m.Throttle)
	return p
}
