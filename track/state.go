package track

import (
	"math"

	"utm-converter/mavlink"
)

// State is the interpretation state of one conversion run.
type State struct {
	// StartMicros is the timestamp of the first frame of the run.
	StartMicros uint64
	Started     bool

	// LastSpeed is the most recent ground speed, attached to position
	// samples.
	LastSpeed float64

	// FusedSeen latches once a GLOBAL_POSITION_INT has been seen. From then
	// on raw GPS fixes are ignored.
	FusedSeen bool

	// LegacyRawFixLongitude reproduces the historical converter output, which
	// wrote the GPS_RAW_INT latitude into the longitude column.
	LegacyRawFixLongitude bool
}

// Apply interprets one frame received at ts and returns the sample it
// produces, if any.
func (s *State) Apply(ts uint64, f mavlink.Frame) (Sample, bool) {
	if !s.Started {
		s.StartMicros = ts
		s.Started = true
	}

	switch f.MessageID {
	case mavlink.MsgGPSRawInt:
		return s.gpsRawInt(ts, mavlink.DecodeGPSRawInt(f.Payload))
	case mavlink.MsgGlobalPositionInt:
		return s.globalPositionInt(ts, mavlink.DecodeGlobalPositionInt(f.Payload))
	case mavlink.MsgVFRHUD:
		s.vfrHUD(mavlink.DecodeVFRHUD(f.Payload))
	}

	return Sample{}, false
}

func (s *State) elapsed(ts uint64) float64 {
	// Timestamps are not guaranteed to be monotonic.
	if ts < s.StartMicros {
		return 0
	}
	return float64(ts-s.StartMicros) / 1e6
}

func (s *State) gpsRawInt(ts uint64, m mavlink.GPSRawInt) (Sample, bool) {
	if s.FusedSeen || m.FixType < mavlink.Fix3D {
		return Sample{}, false
	}

	lon := m.Lon
	if s.LegacyRawFixLongitude {
		lon = m.Lat
	}

	return Sample{
		Elapsed: s.elapsed(ts),
		Lon:     float64(lon) / 1e7,
		Lat:     float64(m.Lat) / 1e7,
		Alt:     float64(m.Alt) / 1000,
		Speed:   s.LastSpeed,
	}, true
}

func (s *State) globalPositionInt(ts uint64, m mavlink.GlobalPositionInt) (Sample, bool) {
	s.FusedSeen = true

	return Sample{
		Elapsed: s.elapsed(ts),
		Lon:     float64(m.Lon) / 1e7,
		Lat:     float64(m.Lat) / 1e7,
		Alt:     float64(m.Alt) / 1000,
		Speed:   s.LastSpeed,
	}, true
}

func (s *State) vfrHUD(m mavlink.VFRHUD) {
	speed := float64(m.Groundspeed)
	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		speed = 0
	}
	s.LastSpeed = speed
}
