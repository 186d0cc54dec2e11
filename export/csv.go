package export

import (
	"encoding/csv"
	"io"
)

// CSV writes a header row of Keys followed by one row per sample.
type CSV struct{}

func (CSV) Extension() string {
	return ".csv"
}

func (CSV) Encode(w io.Writer, doc Document) error {
	c := csv.NewWriter(w)
	if err := c.Write(Keys); err != nil {
		return err
	}
	for _, s := range doc.Track {
		if err := c.Write(row(s)); err != nil {
			return err
		}
	}
	c.Flush()
	return c.Error()
}
