package program

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// pmfRow is one table row of a PLed project file. Levels are usually the
// strings typed into the table cells, but plain numbers are accepted too.
type pmfRow struct {
	Time   string            `json:"t"`
	Levels []json.RawMessage `json:"v"`
}

// pmfLevel decodes one level cell: a JSON integer or a string holding one.
func pmfLevel(raw json.RawMessage) (int, bool) {
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		text = string(raw)
	}
	v, err := strconv.Atoi(strings.TrimSpace(text))
	return v, err == nil
}

// parsePMF reads a PLed project file: a JSON array of table rows.
func parsePMF(data []byte, name string) (Program, error) {
	var rows []pmfRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return Program{}, fmt.Errorf("failed to parse pmf file: %w", err)
	}

	entries := make([]StepEntry, len(rows))
	for i, row := range rows {
		levels := make([]int, len(row.Levels))
		for ch, raw := range row.Levels {
			v, ok := pmfLevel(raw)
			if !ok {
				return Program{}, fmt.Errorf("step %d: %w: channel %d level %s is not a number",
					i, ErrInvalidStep, ch+1, raw)
			}
			levels[ch] = v
		}
		entries[i] = StepEntry{Time: row.Time, Levels: levels}
	}

	steps, err := ParseEntries(entries)
	if err != nil {
		return Program{}, err
	}
	if name == "" {
		name = DefaultName
	}
	return Program{Name: name, Steps: steps}, nil
}
