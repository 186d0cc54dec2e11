// Package converter turns ground-station telemetry logs into flight logging
// documents.
package converter

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"utm-converter/catalog"
	"utm-converter/export"
	"utm-converter/mavlink"
	"utm-converter/tlog"
	"utm-converter/track"
)

var (
	ErrNoChannel         = mavlink.ErrNoChannel
	ErrSourceOpen        = errors.New("unable to open log file")
	ErrDestinationCreate = errors.New("unable to create destination file")
	ErrSameFile          = errors.New("destination is the source file")
)

type Converter struct {
	// Pool supplies the decoder channel for each conversion. Required.
	Pool *mavlink.Pool

	Logger  log.Logger
	Encoder export.Encoder
	// Catalog, if set, records every non-empty track.
	Catalog *catalog.Catalog
	Now     func() time.Time

	LegacyRawFixLongitude bool
	// DumpFrames logs every decoded frame at debug level.
	DumpFrames bool
	// DumpBytes logs every read from the source at debug level.
	DumpBytes bool
}

// Result summarises one conversion.
type Result struct {
	Samples int
	Start   time.Time
	Stats   mavlink.Stats
	// Written is false when the track was empty and no file was left behind.
	Written bool
}

// ConvertTelemetryFile converts src into a GUTMA flight log at dst and
// reports whether the conversion succeeded. An empty track is a success.
func ConvertTelemetryFile(pool *mavlink.Pool, src, dst string) bool {
	c := Converter{Pool: pool}
	_, err := c.Convert(src, dst)
	return err == nil
}

func (c *Converter) logger() log.Logger {
	if c.Logger == nil {
		return log.NewNopLogger()
	}
	return c.Logger
}

func (c *Converter) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// Convert reads the telemetry log at src and writes its track to dst. If no
// track sample could be extracted dst is removed.
func (c *Converter) Convert(src, dst string) (Result, error) {
	logger := log.With(c.logger(), "src", src)

	parser, err := c.Pool.Acquire()
	if err != nil {
		level.Warn(logger).Log("msg", "no decoder channels available")
		conversions.WithLabelValues("no_channel").Inc()
		return Result{}, err
	}
	channelsInUse.Inc()
	defer func() {
		c.Pool.Release(parser)
		channelsInUse.Dec()
	}()

	in, err := os.Open(src)
	if err != nil {
		level.Warn(logger).Log("msg", "unable to open log file", "err", err)
		conversions.WithLabelValues("source_error").Inc()
		return Result{}, fmt.Errorf("%w %s: %w", ErrSourceOpen, src, err)
	}
	defer in.Close()

	if sameFile(in, dst) {
		level.Warn(logger).Log("msg", "destination is the source file", "dst", dst)
		conversions.WithLabelValues("destination_error").Inc()
		return Result{}, fmt.Errorf("%w %s: %w", ErrDestinationCreate, dst, ErrSameFile)
	}

	out, err := os.Create(dst)
	if err != nil {
		level.Warn(logger).Log("msg", "unable to create destination file", "dst", dst, "err", err)
		conversions.WithLabelValues("destination_error").Inc()
		return Result{}, fmt.Errorf("%w %s: %w", ErrDestinationCreate, dst, err)
	}

	var source io.Reader = in
	if c.DumpBytes {
		source = newDumpReader(source, logger)
	}

	r := run{
		logger:     logger,
		scanner:    tlog.NewScanner(source, parser),
		state:      track.State{LegacyRawFixLongitude: c.LegacyRawFixLongitude},
		dumpFrames: c.DumpFrames,
	}
	r.scanner.Now = c.now
	r.scan()

	stats := parser.Stats()
	framesRejected.Add(float64(stats.BadChecksum + stats.BadHeader))

	res := Result{
		Samples: len(r.track),
		Start:   tlog.Time(r.state.StartMicros),
		Stats:   stats,
	}

	if len(r.track) == 0 {
		out.Close()
		if err := os.Remove(dst); err != nil {
			level.Warn(logger).Log("msg", "unable to remove empty destination file", "dst", dst, "err", err)
		}
		level.Info(logger).Log("msg", "no track samples", "frames", stats.Frames)
		conversions.WithLabelValues("empty").Inc()
		return res, nil
	}

	doc := export.Document{
		Track:   r.track,
		Start:   res.Start,
		Created: c.now(),
		Path:    dst,
	}
	if err := c.write(out, doc); err != nil {
		os.Remove(dst)
		level.Error(logger).Log("msg", "unable to write destination file", "dst", dst, "err", err)
		conversions.WithLabelValues("write_error").Inc()
		return Result{}, err
	}
	res.Written = true
	samplesWritten.Add(float64(len(r.track)))

	if c.Catalog != nil {
		entry := catalog.Entry{Source: src, Destination: dst, Start: doc.Start, Created: doc.Created}
		if _, err := c.Catalog.Add(entry, r.track); err != nil {
			level.Warn(logger).Log("msg", "unable to catalog track", "err", err)
		}
	}

	level.Info(logger).Log(
		"msg", "converted",
		"dst", dst,
		"samples", len(r.track),
		"frames", stats.Frames,
		"bad_checksum", stats.BadChecksum,
		"bad_header", stats.BadHeader,
		"skipped_bytes", stats.Skipped,
	)
	conversions.WithLabelValues("ok").Inc()
	return res, nil
}

// sameFile reports whether dst names the already opened source. A missing
// dst cannot be the source.
func sameFile(in *os.File, dst string) bool {
	srcInfo, err := in.Stat()
	if err != nil {
		return false
	}
	dstInfo, err := os.Stat(dst)
	if err != nil {
		return false
	}
	return os.SameFile(srcInfo, dstInfo)
}

func (c *Converter) write(out *os.File, doc export.Document) error {
	enc := c.Encoder
	if enc == nil {
		enc = export.GUTMA{}
	}

	if err := enc.Encode(out, doc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// run is the state of one conversion between acquiring and releasing its
// decoder channel.
type run struct {
	logger     log.Logger
	scanner    *tlog.Scanner
	state      track.State
	track      track.Track
	dumpFrames bool

	// current is the timestamp read before the frame being decoded.
	current uint64
}

func (r *run) scan() {
	var err error
	r.current, err = r.scanner.ReadTimestamp()
	if err != nil {
		r.readError(err)
		return
	}

	for {
		frame, next, err := r.scanner.Next()
		if err != nil {
			r.readError(err)
			return
		}

		framesDecoded.WithLabelValues(mavlink.MessageName(frame.MessageID)).Inc()
		if r.dumpFrames {
			level.Debug(r.logger).Log("frame", frame, "raw", hex.EncodeToString(frame.Raw))
		}

		if s, ok := r.state.Apply(r.current, frame); ok && r.track.Append(s) {
			level.Debug(r.logger).Log("msg", "appending", "elapsed", s.Elapsed, "lon", s.Lon, "lat", s.Lat, "alt", s.Alt, "speed", s.Speed)
		}
		r.current = next
	}
}

// readError ends the scan. Read failures are treated like the end of the
// log so that whatever was decoded so far is still written.
func (r *run) readError(err error) {
	if err != io.EOF {
		level.Warn(r.logger).Log("msg", "read failed, truncating log", "err", err)
	}
}
