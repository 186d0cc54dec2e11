// Package track folds decoded telemetry into a flight track.
package track

// Sample is one track point.
type Sample struct {
	Elapsed float64 // seconds since the start of the track
	Lon     float64 // degrees
	Lat     float64 // degrees
	Alt     float64 // metres, MSL
	Speed   float64 // metres per second over ground
}

// Same reports whether two samples describe the same position and speed.
// Elapsed time is not compared.
func (s Sample) Same(o Sample) bool {
	return s.Lon == o.Lon && s.Lat == o.Lat && s.Alt == o.Alt && s.Speed == o.Speed
}

// Track is a chronological list of samples in which no two neighbours are
// the Same.
type Track []Sample

// Append adds s unless it repeats the last sample. It reports whether s was
// added.
func (t *Track) Append(s Sample) bool {
	if n := len(*t); n > 0 && (*t)[n-1].Same(s) {
		return false
	}
	*t = append(*t, s)
	return true
}
