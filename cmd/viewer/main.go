package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"halo-chat/internal"
	"halo-chat/repositories"
)

// viewer dumps the store as a table and serves the read-only inspector.
// It opens badger with the lock guard bypassed so it can run next to a
// live messenger process.
func main() {
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	prefix := flag.String("prefix", "user:", "Key prefix to scan")
	serve := flag.Bool("serve", false, "Keep running and serve the HTML inspector")
	flag.Parse()

	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	color.Cyan.Printf("=== halo-chat store, prefix %q ===\n", *prefix)
	if err := dump(db, *prefix); err != nil {
		log.Fatal(err)
	}

	if !*serve {
		return
	}

	stats := func() map[string]any {
		return map[string]any{
			"Status": "Viewer Mode (Read-Only)",
			"Time":   time.Now().Format(time.RFC822),
		}
	}
	color.Green.Printf("Viewer started at http://localhost:%d/inspect\n", config.DebugPort)
	internal.Inspect(db, config.DebugPort, "/inspect", storeMapper, stats, *prefix, nil)
}

func dump(db *badger.DB, prefix string) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Detail"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				key := string(item.Key())
				row := internal.DefaultMapper(key, val)
				table.Append([]string{key, row.Kind, repositories.Describe(key, val)})
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to read key %s: %w", item.Key(), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	table.Render()
	return nil
}

func storeMapper(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)
	row.Detail = repositories.Describe(key, val)
	return row
}
