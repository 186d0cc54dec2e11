package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/alecthomas/kingpin.v2"

	"utm-converter/catalog"
	"utm-converter/config"
	"utm-converter/converter"
	"utm-converter/export"
	"utm-converter/mavlink"
)

var (
	sources         = kingpin.Arg("source", "Telemetry log(s) to convert").Required().ExistingFiles()
	configFile      = kingpin.Flag("config", "TOML file with default settings").ExistingFile()
	outputDir       = kingpin.Flag("output-dir", "Directory for converted files (default: next to each source)").String()
	format          = kingpin.Flag("format", "Output format: "+strings.Join(export.Formats(), ", ")).Enum(export.Formats()...)
	channels        = kingpin.Flag("channels", "Number of decoder channels").Int()
	catalogFile     = kingpin.Flag("catalog", "sqlite database recording converted tracks").String()
	metricsTextfile = kingpin.Flag("metrics.textfile", "Write metrics in text exposition format to this file").String()
	logLevel        = kingpin.Flag("log.level", "Log level: debug, info, warn, error").Enum("debug", "info", "warn", "error")
	legacyLongitude = kingpin.Flag("legacy-raw-fix-longitude", "Write the GPS_RAW_INT latitude as longitude, like older converters").Bool()
	dumpFrames      = kingpin.Flag("dump-frames", "Hex-dump all decoded frames at debug level").Bool()
	dumpBytes       = kingpin.Flag("dump-bytes", "Hex-dump all bytes read from sources at debug level").Bool()
)

func main() {
	kingpin.Version("dev")
	kingpin.HelpFlag.Short('h')
	kingpin.CommandLine.UsageWriter(os.Stdout)
	kingpin.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger := newLogger(cfg.LogLevel)

	if err := run(logger, cfg, *sources); err != nil {
		level.Error(logger).Log("err", err)
		os.Exit(1)
	}
}

// loadConfig merges the config file, if any, with flags given on the command
// line. Flags win.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			return config.Config{}, err
		}
	}

	if *outputDir != "" {
		cfg.OutputDir = *outputDir
	}
	if *format != "" {
		cfg.Format = *format
	}
	if *channels != 0 {
		cfg.Channels = *channels
	}
	if *catalogFile != "" {
		cfg.Catalog = *catalogFile
	}
	if *metricsTextfile != "" {
		cfg.MetricsTextfile = *metricsTextfile
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *legacyLongitude {
		cfg.LegacyRawFixLongitude = true
	}

	return cfg, config.Validate(cfg)
}

func newLogger(lvl string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)

	var allow level.Option
	switch lvl {
	case "debug":
		allow = level.AllowDebug()
	case "warn":
		allow = level.AllowWarn()
	case "error":
		allow = level.AllowError()
	default:
		allow = level.AllowInfo()
	}
	return level.NewFilter(logger, allow)
}

func run(logger log.Logger, cfg config.Config, sources []string) error {
	enc, err := export.Lookup(cfg.Format)
	if err != nil {
		return err
	}

	c := &converter.Converter{
		Pool:                  mavlink.NewPool(cfg.Channels),
		Logger:                logger,
		Encoder:               enc,
		LegacyRawFixLongitude: cfg.LegacyRawFixLongitude,
		DumpFrames:            *dumpFrames,
		DumpBytes:             *dumpBytes,
	}

	if cfg.Catalog != "" {
		cat, err := catalog.Open(cfg.Catalog)
		if err != nil {
			return fmt.Errorf("catalog %s: %w", cfg.Catalog, err)
		}
		defer cat.Close()
		c.Catalog = cat
	}

	failed := convertAll(logger, c, cfg.OutputDir, sources)

	if cfg.MetricsTextfile != "" {
		if err := prometheus.WriteToTextfile(cfg.MetricsTextfile, prometheus.DefaultGatherer); err != nil {
			level.Error(logger).Log("metrics", cfg.MetricsTextfile, "err", err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d conversions failed", failed, len(sources))
	}
	return nil
}

func convertAll(logger log.Logger, c *converter.Converter, outDir string, sources []string) int {
	failed := 0
	for _, src := range sources {
		dst := destinationFor(src, outDir, c.Encoder.Extension())
		if _, err := c.Convert(src, dst); err != nil {
			level.Error(logger).Log("src", src, "dst", dst, "err", err)
			failed++
		}
	}
	return failed
}

// destinationFor replaces the extension of src with ext, placing the result
// in outDir when one is given.
func destinationFor(src, outDir, ext string) string {
	dir, name := filepath.Split(src)
	name = strings.TrimSuffix(name, filepath.Ext(name)) + ext
	if outDir != "" {
		dir = outDir
	}
	return filepath.Join(dir, name)
}
