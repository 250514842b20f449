// Command update-cache converts raw zip code datasets into a compressed snapshot.
//
// Usage:
//
//	go run ./cmd/update-cache -o zipbed-cache/zipcodes.dmp.zst zip_code_database.csv
//
// Inputs may be .json or .csv files, optionally compressed (.bz2, .gz, .zst).
// The snapshot loads faster than the raw files and is read by LoadFile.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/andreiashu/zipbed"
)

func main() {
	out := flag.String("o", "./zipbed-cache/zipcodes.dmp.zst", "snapshot output path")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: update-cache [-o snapshot] dataset...")
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	fmt.Println("Regenerating zipbed snapshot from raw data...")
	records, err := zipbed.LoadFiles(context.Background(), flag.Args(), zipbed.WithLoadLogger(logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := zipbed.WriteSnapshotFile(*out, records); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Snapshot of %d records written to %s\n", len(records), *out)
}
