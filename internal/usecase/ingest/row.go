package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Row is one corpus entry as read from an ingest file.
type Row struct {
	ID          string          `json:"id,omitempty"`
	Title       string          `json:"title"`
	TitleCore   string          `json:"title_core,omitempty"`
	Category    string          `json:"category"`
	URL         string          `json:"url"`
	Description string          `json:"description,omitempty"`
	Image       string          `json:"image,omitempty"`
	Ingredients []IngredientRow `json:"ingredients"`
}

// IngredientRow is one ingredient of a corpus entry.
type IngredientRow struct {
	Name string `json:"name"`
	Kana string `json:"kana,omitempty"`
}

// ReadRows decodes a JSON array of rows or JSON lines, whichever r holds.
func ReadRows(r io.Reader) ([]Row, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	if first == '[' {
		var rows []Row
		if err := json.NewDecoder(br).Decode(&rows); err != nil {
			return nil, fmt.Errorf("decode json array: %w", err)
		}
		return rows, nil
	}

	var rows []Row
	sc := bufio.NewScanner(br)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for line := 1; sc.Scan(); line++ {
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var row Row
		if err := json.Unmarshal(b, &row); err != nil {
			return nil, fmt.Errorf("decode line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read json lines: %w", err)
	}
	return rows, nil
}

func peekNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err //nolint:wrapcheck // io.EOF is checked by caller
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte() //nolint:wrapcheck // cannot fail after ReadByte
	}
}
