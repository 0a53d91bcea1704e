package normalize

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/eventlake/eventlake/pkg/types"
)

// writeCSV writes rows to a new temporary file in dir and returns its path.
// The caller removes the file.
func writeCSV(dir string, rows []types.InteractionRow, header bool) (string, error) {
	f, err := os.CreateTemp(dir, "interactions-*.csv")
	if err != nil {
		return "", fmt.Errorf("failed to create artifact file: %w", err)
	}

	w := csv.NewWriter(f)
	if header {
		if err := w.Write(types.InteractionColumns); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", err
		}
	}

	record := make([]string, 3)
	for _, r := range rows {
		record[0] = r.UserID
		record[1] = r.ItemID
		record[2] = strconv.FormatInt(r.Timestamp, 10)
		if err := w.Write(record); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close artifact: %w", err)
	}
	return f.Name(), nil
}
