// Command zipsearch queries a zip code dataset, or serves queries over HTTP.
//
// Usage:
//
//	zipsearch -city Amherst zip_code_database.csv
//	zipsearch -lat 43.96 -lon -69.78 zipcodes.dmp.zst
//	zipsearch -filter state=MA -filter type=standard zipcodes.json
//	zipsearch -serve :8080 zipcodes.dmp.zst
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/andreiashu/zipbed"
)

// filterFlags collects repeated -filter key=value flags.
type filterFlags zipbed.Filters

func (f filterFlags) String() string {
	parts := make([]string, 0, len(f))
	for k, v := range f {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

func (f filterFlags) Set(s string) error {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return fmt.Errorf("filter %q is not key=value", s)
	}
	f[key] = value
	return nil
}

type options struct {
	zip        string
	city       string
	population float64
	lat, lon   string
	filters    filterFlags
	suggest    int
}

func main() {
	opts := options{filters: filterFlags{}}
	flag.StringVar(&opts.zip, "zip", "", "search by (partial) zip code")
	flag.StringVar(&opts.city, "city", "", "search by city name, including aliases")
	flag.Float64Var(&opts.population, "population", 0, "search by estimated population")
	flag.StringVar(&opts.lat, "lat", "", "latitude for a location search")
	flag.StringVar(&opts.lon, "lon", "", "longitude for a location search")
	flag.Var(opts.filters, "filter", "additional key=value filter (repeatable)")
	flag.IntVar(&opts.suggest, "suggest", 2, "edit distance for city suggestions when a city search finds nothing")

	index := flag.String("index", "s2", "spatial index: s2, rtree or none")
	radius := flag.Float64("radius", zipbed.DefaultGeoRadiusKm, "geo search radius in km")
	tolerance := flag.Float64("tolerance", zipbed.DefaultPopulationTolerance, "population search tolerance")
	serve := flag.String("serve", "", "serve HTTP queries on this address instead of running one query")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn or error")
	logFormat := flag.String("log-format", "text", "log format: text or json")
	flag.Parse()

	logger, err := newLogger(*logLevel, *logFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: zipsearch [flags] dataset...")
		flag.PrintDefaults()
		os.Exit(2)
	}
	kind, err := zipbed.ParseIndexKind(*index)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	records, err := zipbed.LoadFiles(ctx, flag.Args(), zipbed.WithLoadLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	e := zipbed.NewEngine(zipbed.NewCatalog(records),
		zipbed.WithLogger(logger),
		zipbed.WithSpatialIndex(kind),
		zipbed.WithGeoRadius(*radius),
		zipbed.WithPopulationTolerance(*tolerance),
	)

	if *serve != "" {
		if err := listen(ctx, *serve, e, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	results, err := runQuery(e, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(zipbed.NewResults(results)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(results) == 0 && opts.city != "" {
		if s := e.SuggestCities(opts.city, opts.suggest); len(s) > 0 {
			fmt.Fprintf(os.Stderr, "No matches. Did you mean: %s?\n", strings.Join(s, ", "))
		}
	}
}

// runQuery uses the single-criterion searches when exactly one criterion was
// given and a combined Search otherwise.
func runQuery(e *zipbed.Engine, opts options) ([]zipbed.Record, error) {
	filters := zipbed.Filters{}
	for k, v := range opts.filters {
		filters[k] = v
	}
	criteria := len(filters)

	if opts.zip != "" {
		filters["zip"] = opts.zip
		criteria++
	}
	if opts.city != "" {
		filters["primary_city"] = opts.city
		criteria++
	}
	if opts.population != 0 {
		filters["estimated_population"] = strconv.FormatFloat(opts.population, 'f', -1, 64)
		criteria++
	}
	location := opts.lat != "" || opts.lon != ""
	if location {
		filters["latitude"] = opts.lat
		filters["longitude"] = opts.lon
		criteria++
	}

	if criteria != 1 || len(opts.filters) > 0 {
		if criteria == 0 {
			return nil, errors.New("no search criteria given")
		}
		return e.Search(filters)
	}

	switch {
	case opts.zip != "":
		return e.SearchByZipCode(opts.zip)
	case opts.city != "":
		return e.SearchByCityName(opts.city)
	case opts.population != 0:
		return e.SearchByEstimatedPopulation(opts.population)
	}
	return e.SearchByLocation(parseCoordinate(opts.lat), parseCoordinate(opts.lon))
}

// parseCoordinate returns NaN for an empty or malformed coordinate.
func parseCoordinate(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func listen(ctx context.Context, addr string, e *zipbed.Engine, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/search", zipbed.NewHandler(e, zipbed.WithHandlerLogger(logger)))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "records", e.Catalog().Len())
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return nil, fmt.Errorf("invalid log format %q", format)
}
