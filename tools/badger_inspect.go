package main

import (
	"chatwire/domain"
	"chatwire/repositories"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	// Par défaut on cherche "msg:" pour éviter de percuter les index email:
	prefix := flag.String("prefix", "msg:", "Prefix to scan")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "Timestamp", "Entity ID", "Conversation", "Detail"})
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

	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()

			// Sécurité : on ignore explicitement les index secondaires
			if strings.HasPrefix(string(item.Key()), "email:") {
				continue
			}

			err := item.Value(func(v []byte) error {
				table.Append(rowFor(string(item.Key()), v))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

// rowFor decodes one stored value according to its key family.
func rowFor(key string, value []byte) []string {
	switch {
	case strings.HasPrefix(key, "msg:"):
		var msg domain.Message
		if err := json.Unmarshal(value, &msg); err != nil {
			// Au lieu de stopper tout le script, on log l'erreur et on continue
			fmt.Printf("Error unmarshaling key %s: %v\n", key, err)
			return []string{key, "?", "", "", "", ""}
		}

		kind := "TEXT"
		detail := msg.Text
		if msg.ImageRef != "" {
			kind = "IMAGE"
			if msg.Text != "" {
				kind = "MIXED"
			}
			detail = strings.TrimSpace(detail + " " + msg.ImageRef)
		}

		return []string{
			key,
			kind,
			msg.CreatedAt.Format("15:04:05"),
			shorten(msg.ID.String()),
			pairOf(key),
			fmt.Sprintf("%s > %s: %s", shorten(msg.SenderID), shorten(msg.ReceiverID), detail),
		}

	case strings.HasPrefix(key, "user:"):
		var u repositories.User
		if err := json.Unmarshal(value, &u); err != nil {
			fmt.Printf("Error unmarshaling key %s: %v\n", key, err)
			return []string{key, "?", "", "", "", ""}
		}
		return []string{
			key,
			"USER",
			u.CreatedAt.Format("15:04:05"),
			shorten(u.ID),
			"",
			fmt.Sprintf("%s <%s>", u.DisplayName, u.Email),
		}

	default:
		return []string{key, "RAW", "", "", "", fmt.Sprintf("%d bytes", len(value))}
	}
}

// pairOf extracts the conversation segment of a message key and shortens
// both identity halves for readability.
func pairOf(key string) string {
	parts := strings.Split(key, ":")
	if len(parts) < 2 {
		return ""
	}
	halves := strings.Split(parts[1], "|")
	for i, h := range halves {
		halves[i] = shorten(h)
	}
	return strings.Join(halves, "|")
}

// On affiche les 8 premiers caractères pour la lisibilité
func shorten(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true).
		WithValueLogFileSize(10 * 1024 * 1024)

	db, err := badger.Open(opts)
	if err != nil {
		// Si corruption détectée, essaie un open en write pour truncate
		if strings.Contains(err.Error(), "Log truncate required") {
			fmt.Println("⚠️  Log truncate required, reopening once in write mode")

			// Open en mode write pour permettre le truncate
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}

			// Ferme et réouvre en read-only
			db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
