// Command badger_inspect dumps the message log of a chat-relay BadgerDB as
// a table, for poking at a store without starting the server.
//
// Usage:
//
//	go run ./tools --db /path/to/badger --prefix "msg:"
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
	"github.com/olekukonko/tablewriter"
)

// storedMessage mirrors the repository's on-disk shape.
type storedMessage struct {
	ID                uint64 `cbor:"id"`
	SenderID          string `cbor:"sender_id"`
	ReceiverID        string `cbor:"receiver_id"`
	Body              string `cbor:"body"`
	Read              bool   `cbor:"read"`
	DeletedBySender   bool   `cbor:"deleted_by_sender"`
	DeletedByReceiver bool   `cbor:"deleted_by_receiver"`
	CreatedAt         int64  `cbor:"created_at"`
}

func main() {
	dbPath := flag.String("db", "", "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Key prefix to scan")
	flag.Parse()

	if *dbPath == "" {
		log.Fatal("--db is required")
	}

	db, err := badger.Open(badger.DefaultOptions(*dbPath).WithReadOnly(true).WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "ID", "Sender", "Receiver", "Read", "Del S/R", "Created", "Body"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	count := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()

			err := item.Value(func(v []byte) error {
				var m storedMessage
				if err := cbor.Unmarshal(v, &m); err != nil {
					// Secondary index values are plain key pointers, skip them.
					return nil
				}
				table.Append([]string{
					string(item.Key()),
					fmt.Sprintf("%d", m.ID),
					m.SenderID,
					m.ReceiverID,
					fmt.Sprintf("%t", m.Read),
					fmt.Sprintf("%t/%t", m.DeletedBySender, m.DeletedByReceiver),
					time.Unix(0, m.CreatedAt).UTC().Format(time.RFC3339),
					truncate(m.Body, 60),
				})
				count++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Error while scanning: ", err)
	}

	table.Render()
	fmt.Printf("\n%d messages under prefix %q\n", count, *prefix)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
