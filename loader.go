package zipbed

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"encoding/csv"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"
)

// Format identifies a dataset encoding.
type Format uint8

const (
	// FormatJSON is an array of records with list fields as comma-joined text.
	FormatJSON Format = iota + 1
	// FormatCSV is a headed CSV file in the public zip code database layout.
	FormatCSV
	// FormatSnapshot is a gob snapshot written by WriteSnapshot.
	FormatSnapshot
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatCSV:
		return "csv"
	case FormatSnapshot:
		return "snapshot"
	}
	return fmt.Sprintf("Format(%d)", uint8(f))
}

// LoadOption configures dataset loading.
type LoadOption func(*loadConfig)

type loadConfig struct {
	logger *slog.Logger
}

// WithLoadLogger sets the logger that reports skipped rows.
func WithLoadLogger(l *slog.Logger) LoadOption {
	return func(c *loadConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

func newLoadConfig(opts []LoadOption) *loadConfig {
	cfg := &loadConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// LoadRecords decodes records from r.
func LoadRecords(r io.Reader, format Format, opts ...LoadOption) ([]Record, error) {
	cfg := newLoadConfig(opts)
	switch format {
	case FormatJSON:
		return loadJSON(r)
	case FormatCSV:
		return loadCSV(r, cfg.logger)
	case FormatSnapshot:
		return loadSnapshot(r)
	}
	return nil, fmt.Errorf("unsupported format %s", format)
}

// LoadFile loads a dataset file. The compression is chosen by suffix (.bz2,
// .gz or .zst) and the format by the remaining extension (.json, .csv or .dmp).
func LoadFile(path string, opts ...LoadOption) ([]Record, error) {
	cfg := newLoadConfig(opts)
	format, comp, err := detectFormat(path)
	if err != nil {
		return nil, err
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer fh.Close()

	r, cleanup, err := decompress(bufio.NewReader(fh), comp)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer cleanup()

	records, err := LoadRecords(r, format, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	cfg.logger.Info("dataset loaded",
		"path", path,
		"format", format.String(),
		"records", len(records),
	)
	return records, nil
}

// LoadFiles loads several dataset files concurrently and concatenates their
// records in argument order.
func LoadFiles(ctx context.Context, paths []string, opts ...LoadOption) ([]Record, error) {
	parts := make([][]Record, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			records, err := LoadFile(path, opts...)
			if err != nil {
				return err
			}
			parts[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, p := range parts {
		total += len(p)
	}
	out := make([]Record, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}

type compression uint8

const (
	compressionNone compression = iota
	compressionBzip2
	compressionGzip
	compressionZstd
)

func detectFormat(path string) (Format, compression, error) {
	name := toLower(filepath.Base(path))
	comp := compressionNone
	switch {
	case strings.HasSuffix(name, ".bz2"):
		comp, name = compressionBzip2, strings.TrimSuffix(name, ".bz2")
	case strings.HasSuffix(name, ".gz"):
		comp, name = compressionGzip, strings.TrimSuffix(name, ".gz")
	case strings.HasSuffix(name, ".zst"):
		comp, name = compressionZstd, strings.TrimSuffix(name, ".zst")
	}

	switch filepath.Ext(name) {
	case ".json":
		return FormatJSON, comp, nil
	case ".csv":
		return FormatCSV, comp, nil
	case ".dmp":
		return FormatSnapshot, comp, nil
	}
	return 0, 0, fmt.Errorf("cannot tell dataset format of %s", path)
}

func decompress(r io.Reader, c compression) (io.Reader, func(), error) {
	switch c {
	case compressionBzip2:
		return bzip2.NewReader(r), func() {}, nil
	case compressionGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		return zr, func() { zr.Close() }, nil
	case compressionZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		return zr, zr.Close, nil
	}
	return r, func() {}, nil
}

func loadJSON(r io.Reader) ([]Record, error) {
	var records []Record
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding json: %w", err)
	}
	return records, nil
}

// csvColumns maps CSV header names to record fields. The public database
// names the population column irs_estimated_population.
var csvColumns = map[string]func(*Record, string){
	"zip":                      func(r *Record, v string) { r.Zip = v },
	"type":                     func(r *Record, v string) { r.Type = v },
	"primary_city":             func(r *Record, v string) { r.PrimaryCity = v },
	"acceptable_cities":        func(r *Record, v string) { r.AcceptableCities = ParseCityList(v) },
	"unacceptable_cities":      func(r *Record, v string) { r.UnacceptableCities = ParseCityList(v) },
	"state":                    func(r *Record, v string) { r.State = v },
	"county":                   func(r *Record, v string) { r.County = v },
	"timezone":                 func(r *Record, v string) { r.Timezone = v },
	"area_codes":               func(r *Record, v string) { r.AreaCodes = v },
	"latitude":                 func(r *Record, v string) { r.Latitude = v },
	"longitude":                func(r *Record, v string) { r.Longitude = v },
	"country":                  func(r *Record, v string) { r.Country = v },
	"estimated_population":     func(r *Record, v string) { r.EstimatedPopulation = v },
	"irs_estimated_population": func(r *Record, v string) { r.EstimatedPopulation = v },
}

func loadCSV(r io.Reader, logger *slog.Logger) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	setters := make([]func(*Record, string), len(header))
	var known int
	for i, name := range header {
		name = toLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if set, ok := csvColumns[name]; ok {
			setters[i] = set
			known++
		}
	}
	if known == 0 {
		return nil, errors.New("csv header has no known columns")
	}

	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Wrong column counts are reported as errors but the reader can continue.
			var perr *csv.ParseError
			if errors.As(err, &perr) && errors.Is(perr.Err, csv.ErrFieldCount) {
				logger.Warn("skipping csv row", "line", perr.StartLine, "error", err)
				continue
			}
			return nil, fmt.Errorf("reading csv: %w", err)
		}

		var rec Record
		for i, v := range row {
			if setters[i] != nil {
				setters[i](&rec, strings.TrimSpace(v))
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// snapshotRecord is the gob form of a Record; list fields travel as plain slices.
type snapshotRecord struct {
	Zip                 string
	Type                string
	PrimaryCity         string
	AcceptableCities    []string
	UnacceptableCities  []string
	State               string
	County              string
	Timezone            string
	AreaCodes           string
	Latitude            string
	Longitude           string
	Country             string
	EstimatedPopulation string
}

func loadSnapshot(r io.Reader) ([]Record, error) {
	var snap []snapshotRecord
	if err := gob.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	records := make([]Record, len(snap))
	for i, s := range snap {
		records[i] = Record{
			Zip:                 s.Zip,
			Type:                s.Type,
			PrimaryCity:         s.PrimaryCity,
			AcceptableCities:    CityList(s.AcceptableCities),
			UnacceptableCities:  CityList(s.UnacceptableCities),
			State:               s.State,
			County:              s.County,
			Timezone:            s.Timezone,
			AreaCodes:           s.AreaCodes,
			Latitude:            s.Latitude,
			Longitude:           s.Longitude,
			Country:             s.Country,
			EstimatedPopulation: s.EstimatedPopulation,
		}
	}
	return records, nil
}

// WriteSnapshot writes records as a zstd-compressed gob snapshot, readable by
// LoadFile from a .dmp.zst file.
func WriteSnapshot(w io.Writer, records []Record) error {
	snap := make([]snapshotRecord, len(records))
	for i, r := range records {
		snap[i] = snapshotRecord{
			Zip:                 r.Zip,
			Type:                r.Type,
			PrimaryCity:         r.PrimaryCity,
			AcceptableCities:    r.AcceptableCities,
			UnacceptableCities:  r.UnacceptableCities,
			State:               r.State,
			County:              r.County,
			Timezone:            r.Timezone,
			AreaCodes:           r.AreaCodes,
			Latitude:            r.Latitude,
			Longitude:           r.Longitude,
			Country:             r.Country,
			EstimatedPopulation: r.EstimatedPopulation,
		}
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if err := gob.NewEncoder(zw).Encode(snap); err != nil {
		zw.Close()
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flushing snapshot: %w", err)
	}
	return nil
}

// WriteSnapshotFile writes a snapshot to path, creating parent directories.
// A partial file is removed on failure.
func WriteSnapshotFile(path string, records []Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating snapshot directory: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", path, err)
	}

	success := false
	defer func() {
		out.Close()
		if !success {
			os.Remove(path)
		}
	}()

	bw := bufio.NewWriter(out)
	if err := WriteSnapshot(bw, records); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing file %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing file %s: %w", path, err)
	}
	success = true
	return nil
}
