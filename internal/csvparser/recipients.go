package csvparser

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// RecipientRow is a single recipient extracted from a CSV. Email comes
// from the "Email" column and Name from the "Name" column (both
// case-insensitive); Name may be empty.
type RecipientRow struct {
	Email string
	Name  string
}

// ParseRecipientRows parses a CSV from an io.Reader. The CSV must contain
// a header row with an "Email" column; a "Name" column is optional.
//
// maxRows limits how many data rows are parsed (excluding header).
func ParseRecipientRows(r io.Reader, maxRows int) ([]RecipientRow, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}
	if len(headers) == 0 {
		return nil, errors.New("csv header row is empty")
	}

	emailIdx := -1
	nameIdx := -1
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if strings.EqualFold(h, "email") {
			emailIdx = i
		}
		if strings.EqualFold(h, "name") {
			nameIdx = i
		}
	}
	if emailIdx == -1 {
		return nil, errors.New("csv must contain an Email column")
	}

	if maxRows <= 0 {
		maxRows = 10000
	}

	rows := make([]RecipientRow, 0)
	for len(rows) < maxRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) != len(headers) {
			// skip malformed row
			continue
		}

		email := strings.TrimSpace(record[emailIdx])
		if email == "" {
			continue
		}

		name := ""
		if nameIdx >= 0 {
			name = strings.TrimSpace(record[nameIdx])
		}

		rows = append(rows, RecipientRow{
			Email: email,
			Name:  name,
		})
	}

	if len(rows) == 0 {
		return nil, errors.New("csv must contain at least one data row")
	}

	return rows, nil
}
