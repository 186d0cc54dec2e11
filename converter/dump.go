package converter

import (
	"encoding/hex"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// dumpReader hex-dumps everything read through it.
type dumpReader struct {
	r      io.Reader
	logger log.Logger
}

func newDumpReader(r io.Reader, logger log.Logger) io.Reader {
	return dumpReader{
		r:      r,
		logger: logger,
	}
}

func (d dumpReader) Read(p []byte) (n int, err error) {
	n, err = d.r.Read(p)
	if n > 0 {
		level.Debug(d.logger).Log("read", n, "bytes", hex.EncodeToString(p[:n]))
	}
	if err != nil && err != io.EOF {
		level.Debug(d.logger).Log("read", n, "err", err)
	}

	return
}
