// Package export renders a converted flight track.
package export

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"utm-converter/track"
)

// Document is everything an Encoder needs to render one track.
type Document struct {
	Track   track.Track
	Start   time.Time // time of the first frame
	Created time.Time
	Path    string // destination path
}

// Name is the destination file name without directory or extensions.
func (d Document) Name() string {
	name := filepath.Base(d.Path)
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return name
}

type Encoder interface {
	Encode(w io.Writer, doc Document) error
	Extension() string
}

var formats = map[string]Encoder{
	"gutma": GUTMA{},
	"gpx":   GPX{},
	"csv":   CSV{},
}

// Lookup returns the encoder registered under name.
func Lookup(name string) (Encoder, error) {
	e, ok := formats[name]
	if !ok {
		return nil, fmt.Errorf("unknown format %q (want one of %s)", name, strings.Join(Formats(), ", "))
	}
	return e, nil
}

// Formats lists the registered format names.
func Formats() []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Keys are the column names of a track row.
var Keys = []string{"timestamp", "gps_lon", "gps_lat", "gps_altitude", "speed"}

// row formats a sample with 3 decimals for time and speed and 6 for the
// position.
func row(s track.Sample) []string {
	return []string{
		strconv.FormatFloat(s.Elapsed, 'f', 3, 64),
		strconv.FormatFloat(s.Lon, 'f', 6, 64),
		strconv.FormatFloat(s.Lat, 'f', 6, 64),
		strconv.FormatFloat(s.Alt, 'f', 6, 64),
		strconv.FormatFloat(s.Speed, 'f', 3, 64),
	}
}

func dtg(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05") + "Z"
}
