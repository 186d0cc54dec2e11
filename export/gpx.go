package export

import (
	"io"
	"time"

	"github.com/twpayne/go-gpx"
)

// GPX writes the track as a single GPX 1.1 track segment. Speed is not part
// of a GPX track point and is dropped.
type GPX struct{}

func (GPX) Extension() string {
	return ".gpx"
}

func (GPX) Encode(w io.Writer, doc Document) error {
	seg := &gpx.TrkSegType{
		TrkPt: make([]*gpx.WptType, 0, len(doc.Track)),
	}
	for _, s := range doc.Track {
		seg.TrkPt = append(seg.TrkPt, &gpx.WptType{
			Lat:  s.Lat,
			Lon:  s.Lon,
			Ele:  s.Alt,
			Time: doc.Start.Add(time.Duration(s.Elapsed * float64(time.Second))).UTC(),
		})
	}

	g := &gpx.GPX{
		Version: "1.1",
		Creator: "utm-converter",
		Metadata: &gpx.MetadataType{
			Name: doc.Name(),
			Time: doc.Created.UTC(),
		},
		Trk: []*gpx.TrkType{{
			Name:   doc.Name(),
			TrkSeg: []*gpx.TrkSegType{seg},
		}},
	}

	return g.Write(w)
}
