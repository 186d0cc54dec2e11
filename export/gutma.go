package export

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

const (
	gutmaHeader = `{
    "exchange": {
        "exchange_type": "flight_logging",
        "message": {
            "flight_logging": {
                "flight_logging_items": [
`
	gutmaKeys = `                ],
                "flight_logging_keys": [
                    %KEYS%
                ],
                "altitude_system": "WGS84",
                "logging_start_dtg": %START%
            },
            "file": {
                "logging_type": "GUTMA_DX_JSON",
                "filename": %FILENAME%,
                "creation_dtg": %CREATED%
            },
            "message_type": "flight_logging_submission"
        }
    }
}
`
	itemIndent = "                    "
)

// GUTMA writes the flight logging submission document of the GUTMA data
// exchange format, one track row per line.
type GUTMA struct{}

func (GUTMA) Extension() string {
	return ".json"
}

func (GUTMA) Encode(w io.Writer, doc Document) error {
	bw := bufio.NewWriter(w)

	bw.WriteString(gutmaHeader)
	for i, s := range doc.Track {
		bw.WriteString(itemIndent + "[" + strings.Join(row(s), ", ") + "]")
		if i < len(doc.Track)-1 {
			bw.WriteByte(',')
		}
		bw.WriteByte('\n')
	}

	keys := make([]string, len(Keys))
	for i, k := range Keys {
		keys[i] = quote(k)
	}
	footer := strings.NewReplacer(
		"%KEYS%", strings.Join(keys, ", "),
		"%START%", quote(dtg(doc.Start)),
		"%FILENAME%", quote(doc.Name()),
		"%CREATED%", quote(dtg(doc.Created)),
	).Replace(gutmaKeys)
	bw.WriteString(footer)

	return bw.Flush()
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
