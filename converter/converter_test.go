package converter

import (
	"bytes"
	"encoding/hex"
	"encoding/binary"
	"encoding/json"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"utm-converter/catalog"
	"utm-converter/export"
	"utm-converter/mavlink"
	"utm-converter/tlog"
	"utm-converter/track"
)

const t0 = uint64(1700000000000000)

var now = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

type logBuilder struct {
	t    *testing.T
	buff bytes.Buffer
	seq  byte
}

func newLog(t *testing.T, start uint64) *logBuilder {
	b := &logBuilder{t: t}
	return b.ts(start)
}

func (b *logBuilder) ts(v uint64) *logBuilder {
	raw := tlog.EncodeTimestamp(v)
	b.buff.Write(raw[:])
	return b
}

func (b *logBuilder) frame(msgID uint32, payload []byte, next uint64) *logBuilder {
	b.seq++
	f, err := mavlink.Encode(b.seq, 1, 1, msgID, payload)
	require.NoError(b.t, err)
	b.buff.Write(f)
	return b.ts(next)
}

func (b *logBuilder) hud(speed float32, next uint64) *logBuilder {
	return b.frame(mavlink.MsgVFRHUD, mavlink.VFRHUD{Groundspeed: speed}.Marshal(), next)
}

func (b *logBuilder) fused(lat, lon, alt int32, next uint64) *logBuilder {
	return b.frame(mavlink.MsgGlobalPositionInt, mavlink.GlobalPositionInt{Lat: lat, Lon: lon, Alt: alt}.Marshal(), next)
}

func (b *logBuilder) raw(lat, lon, alt int32, next uint64) *logBuilder {
	return b.frame(mavlink.MsgGPSRawInt, mavlink.GPSRawInt{FixType: mavlink.Fix3D, Lat: lat, Lon: lon, Alt: alt}.Marshal(), next)
}

func (b *logBuilder) write() string {
	path := filepath.Join(b.t.TempDir(), "flight.tlog")
	require.NoError(b.t, os.WriteFile(path, b.buff.Bytes(), 0o600))
	return path
}

func newConverter() *Converter {
	return &Converter{
		Pool: mavlink.NewPool(1),
		Now:  func() time.Time { return now },
	}
}

func destination(t *testing.T) string {
	return filepath.Join(t.TempDir(), "flight.utm.json")
}

func readItems(t *testing.T, path string) [][]float64 {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Exchange struct {
			Message struct {
				FlightLogging struct {
					Items    [][]float64 `json:"flight_logging_items"`
					StartDTG string      `json:"logging_start_dtg"`
				} `json:"flight_logging"`
				File struct {
					Filename    string `json:"filename"`
					CreationDTG string `json:"creation_dtg"`
				} `json:"file"`
			} `json:"message"`
		} `json:"exchange"`
	}
	require.NoError(t, json.Unmarshal(b, &doc))

	m := doc.Exchange.Message
	assert.Equal(t, "2023-11-14T22:13:20Z", m.FlightLogging.StartDTG)
	assert.Equal(t, "flight", m.File.Filename)
	assert.Equal(t, "2024-01-02T03:04:05Z", m.File.CreationDTG)
	return m.FlightLogging.Items
}

func TestSpeedThenFusedPosition(t *testing.T) {
	src := newLog(t, t0).
		hud(5, t0).
		fused(377749000, -1224194000, 30000, t0).
		write()
	dst := destination(t)

	c := newConverter()
	res, err := c.Convert(src, dst)
	require.NoError(t, err)
	assert.True(t, res.Written)
	assert.Equal(t, 1, res.Samples)
	assert.Equal(t, 2, res.Stats.Frames)

	items := readItems(t, dst)
	require.Len(t, items, 1)
	assert.Equal(t, 0.0, items[0][0])
	assert.InDelta(t, -122.4194, items[0][1], 1e-6)
	assert.InDelta(t, 37.7749, items[0][2], 1e-6)
	assert.Equal(t, 30.0, items[0][3])
	assert.Equal(t, 5.0, items[0][4])
	assert.Equal(t, 0, c.Pool.InUse())
}

func TestIdenticalFusedPositionsDeduplicated(t *testing.T) {
	src := newLog(t, t0).
		fused(377749000, -1224194000, 30000, t0+1000000).
		fused(377749000, -1224194000, 30000, t0+2000000).
		write()
	dst := destination(t)

	res, err := newConverter().Convert(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Samples)
	assert.Len(t, readItems(t, dst), 1)
}

func TestFrameUsesPrecedingTimestamp(t *testing.T) {
	src := newLog(t, t0).
		hud(1, t0+1000000).
		fused(10, 20, 30, t0+2500000).
		fused(11, 21, 31, t0+9000000).
		write()
	dst := destination(t)

	_, err := newConverter().Convert(src, dst)
	require.NoError(t, err)

	items := readItems(t, dst)
	require.Len(t, items, 2)
	assert.Equal(t, 1.0, items[0][0])
	assert.Equal(t, 2.5, items[1][0])
}

func TestFusedPositionSuppressesRawFixes(t *testing.T) {
	src := newLog(t, t0).
		raw(100, 200, 300, t0+1000000).
		fused(110, 210, 310, t0+2000000).
		raw(120, 220, 320, t0+3000000).
		fused(130, 230, 330, t0+4000000).
		raw(140, 240, 340, t0+5000000).
		write()
	dst := destination(t)

	_, err := newConverter().Convert(src, dst)
	require.NoError(t, err)

	items := readItems(t, dst)
	require.Len(t, items, 3)
	assert.InDelta(t, 0.0000200, items[0][1], 1e-12)
	assert.InDelta(t, 0.0000210, items[1][1], 1e-12)
	assert.InDelta(t, 0.0000230, items[2][1], 1e-12)
}

func TestLegacyRawFixLongitude(t *testing.T) {
	src := newLog(t, t0).raw(515007000, -1246000, 11500, t0).write()
	dst := destination(t)

	c := newConverter()
	c.LegacyRawFixLongitude = true
	_, err := c.Convert(src, dst)
	require.NoError(t, err)

	items := readItems(t, dst)
	require.Len(t, items, 1)
	assert.Equal(t, items[0][2], items[0][1])
}

func TestLittleEndianTimestamps(t *testing.T) {
	b := &logBuilder{t: t}
	le := func(v uint64) {
		var raw [8]byte
		binary.LittleEndian.PutUint64(raw[:], v)
		b.buff.Write(raw[:])
	}
	fused := func(lat int32) {
		f, err := mavlink.Encode(0, 1, 1, mavlink.MsgGlobalPositionInt, mavlink.GlobalPositionInt{Lat: lat}.Marshal())
		require.NoError(t, err)
		b.buff.Write(f)
	}

	le(t0)
	fused(1)
	le(t0 + 4000000)
	fused(2)
	b.ts(t0 + 5000000)
	src := b.write()
	dst := destination(t)

	res, err := newConverter().Convert(src, dst)
	require.NoError(t, err)
	assert.True(t, tlog.Time(t0).Equal(res.Start))

	items := readItems(t, dst)
	require.Len(t, items, 2)
	assert.Equal(t, 0.0, items[0][0])
	assert.Equal(t, 4.0, items[1][0])
}

func TestEmptyTrackRemovesDestination(t *testing.T) {
	src := newLog(t, t0).hud(3, t0).hud(4, t0).write()
	dst := destination(t)

	res, err := newConverter().Convert(src, dst)
	require.NoError(t, err)
	assert.False(t, res.Written)
	assert.Equal(t, 2, res.Stats.Frames)
	assert.NoFileExists(t, dst)
}

func TestShortSource(t *testing.T) {
	for _, content := range [][]byte{nil, {1, 2, 3}} {
		src := filepath.Join(t.TempDir(), "short.tlog")
		require.NoError(t, os.WriteFile(src, content, 0o600))
		dst := destination(t)

		res, err := newConverter().Convert(src, dst)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Samples)
		assert.NoFileExists(t, dst)
	}
}

func TestCorruptedStream(t *testing.T) {
	b := newLog(t, t0).fused(1, 2, 3, t0+1000000)
	b.buff.Write([]byte{0xfe, 0x1c, 0xff, 0x00, 0xfd, 0x01})
	b.fused(4, 5, 6, t0+2000000)
	src := b.write()
	dst := destination(t)

	res, err := newConverter().Convert(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Samples)
	assert.NotZero(t, res.Stats.BadChecksum+res.Stats.BadHeader+res.Stats.Skipped)
}

func TestRandomBytes(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	dir := t.TempDir()

	c := newConverter()
	for i := 0; i < 50; i++ {
		data := make([]byte, rnd.Intn(4096))
		rnd.Read(data)

		src := filepath.Join(dir, "random.tlog")
		require.NoError(t, os.WriteFile(src, data, 0o600))
		dst := filepath.Join(dir, "random.json")

		res, err := c.Convert(src, dst)
		require.NoError(t, err)
		if !res.Written {
			assert.NoFileExists(t, dst)
		}
	}
	assert.Equal(t, 0, c.Pool.InUse())
}

func TestPoolExhausted(t *testing.T) {
	src := newLog(t, t0).fused(1, 2, 3, t0).write()
	dst := destination(t)

	c := newConverter()
	held, err := c.Pool.Acquire()
	require.NoError(t, err)
	defer c.Pool.Release(held)

	before := testutil.ToFloat64(conversions.WithLabelValues("no_channel"))
	_, err = c.Convert(src, dst)
	assert.ErrorIs(t, err, ErrNoChannel)
	assert.NoFileExists(t, dst)
	assert.Equal(t, before+1, testutil.ToFloat64(conversions.WithLabelValues("no_channel")))
}

func TestSourceMissing(t *testing.T) {
	dst := destination(t)
	c := newConverter()

	_, err := c.Convert(filepath.Join(t.TempDir(), "missing.tlog"), dst)
	assert.ErrorIs(t, err, ErrSourceOpen)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.NoFileExists(t, dst)
	assert.Equal(t, 0, c.Pool.InUse())
}

func TestDestinationNotCreatable(t *testing.T) {
	src := newLog(t, t0).fused(1, 2, 3, t0).write()
	dst := filepath.Join(t.TempDir(), "missing", "flight.json")
	c := newConverter()

	_, err := c.Convert(src, dst)
	assert.ErrorIs(t, err, ErrDestinationCreate)
	assert.Equal(t, 0, c.Pool.InUse())
}

func TestConvertTelemetryFile(t *testing.T) {
	pool := mavlink.NewPool(1)
	src := newLog(t, t0).fused(1, 2, 3, t0).write()

	assert.True(t, ConvertTelemetryFile(pool, src, destination(t)))
	assert.False(t, ConvertTelemetryFile(pool, filepath.Join(t.TempDir(), "missing"), destination(t)))

	held, _ := pool.Acquire()
	assert.False(t, ConvertTelemetryFile(pool, src, destination(t)))
	pool.Release(held)
}

func TestGPXAndCatalog(t *testing.T) {
	src := newLog(t, t0).
		hud(2, t0+1000000).
		fused(377749000, -1224194000, 30000, t0+2000000).
		fused(377749100, -1224194100, 30500, t0+3000000).
		write()
	dst := filepath.Join(t.TempDir(), "flight.gpx")

	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	defer cat.Close()

	c := newConverter()
	c.Encoder = export.GPX{}
	c.Catalog = cat
	res, err := c.Convert(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Samples)

	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Contains(t, string(b), "<trkpt")

	entries, err := cat.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, src, entries[0].Source)
	assert.Equal(t, dst, entries[0].Destination)
	assert.Equal(t, 2, entries[0].Samples)
	assert.True(t, tlog.Time(t0).Equal(entries[0].Start))

	tr, err := cat.Track(entries[0].ID)
	require.NoError(t, err)
	assert.Len(t, tr, 2)
	assert.Equal(t, 2.0, tr[0].Speed)
}

func TestInfiniteGroundspeedKeepsDocumentValid(t *testing.T) {
	src := newLog(t, t0).
		hud(float32(math.Inf(1)), t0).
		fused(1, 2, 3, t0).
		write()
	dst := destination(t)

	_, err := newConverter().Convert(src, dst)
	require.NoError(t, err)

	items := readItems(t, dst)
	require.Len(t, items, 1)
	assert.Equal(t, 0.0, items[0][4])
}

func TestDestinationIsSource(t *testing.T) {
	src := newLog(t, t0).fused(1, 2, 3, t0).write()
	before, err := os.ReadFile(src)
	require.NoError(t, err)

	c := newConverter()
	_, err = c.Convert(src, src)
	assert.ErrorIs(t, err, ErrSameFile)
	assert.ErrorIs(t, err, ErrDestinationCreate)
	assert.Equal(t, 0, c.Pool.InUse())

	after, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// The same file reached through a symlink.
	link := filepath.Join(t.TempDir(), "flight.json")
	require.NoError(t, os.Symlink(src, link))
	_, err = c.Convert(src, link)
	assert.ErrorIs(t, err, ErrSameFile)

	after, err = os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestNilPool(t *testing.T) {
	src := newLog(t, t0).fused(1, 2, 3, t0).write()
	dst := destination(t)

	c := &Converter{}
	_, err := c.Convert(src, dst)
	assert.ErrorIs(t, err, ErrNoChannel)
	assert.NoFileExists(t, dst)
	assert.False(t, ConvertTelemetryFile(nil, src, dst))
}

func TestDumpBytes(t *testing.T) {
	src := newLog(t, t0).fused(1, 2, 3, t0).write()
	dst := destination(t)

	var logged bytes.Buffer
	c := newConverter()
	c.Logger = log.NewLogfmtLogger(&logged)
	c.DumpBytes = true

	res, err := c.Convert(src, dst)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Samples)

	raw := tlog.EncodeTimestamp(t0)
	assert.Contains(t, logged.String(), "bytes="+hex.EncodeToString(raw[:]))
}

func TestRandomTracksHaveNoRepeats(t *testing.T) {
	rnd := rand.New(rand.NewSource(2))
	dir := t.TempDir()
	c := newConverter()

	for i := 0; i < 20; i++ {
		// Few distinct values so that repeats are common.
		b := newLog(t, t0)
		ts := t0
		for j := 0; j < 200; j++ {
			ts += uint64(rnd.Intn(3)) * 100000
			switch rnd.Intn(3) {
			case 0:
				b.hud(float32(rnd.Intn(2)), ts)
			case 1:
				b.raw(int32(rnd.Intn(2)*1e7), int32(rnd.Intn(2)*1e7), int32(rnd.Intn(2)*1000), ts)
			default:
				b.fused(int32(rnd.Intn(2)*1e7), int32(rnd.Intn(2)*1e7), int32(rnd.Intn(2)*1000), ts)
			}
		}
		src := b.write()
		dst := filepath.Join(dir, "flight.json")

		_, err := c.Convert(src, dst)
		require.NoError(t, err)

		tr := track.Track{}
		for _, item := range readItems(t, dst) {
			tr = append(tr, track.Sample{Elapsed: item[0], Lon: item[1], Lat: item[2], Alt: item[3], Speed: item[4]})
		}
		for k := 1; k < len(tr); k++ {
			assert.False(t, tr[k-1].Same(tr[k]), "samples %d and %d repeat", k-1, k)
		}
	}
}
