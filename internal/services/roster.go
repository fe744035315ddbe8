package services

import (
	"strings"

	"talent/internal/talent"
	"talent/internal/validator"
)

// RosterRow is one card in a bulk load.
type RosterRow struct {
	Token   string `json:"token"`
	Balance int64  `json:"balance"`
	Label   string `json:"label"`
}

// SkippedLine reports a roster line that could not be parsed. Line is 1-based.
type SkippedLine struct {
	Line   int    `json:"line"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// ParseRoster reads newline-delimited "token,balance[,label]" records. Blank
// lines are ignored and a missing balance means 0. Lines with a bad token or
// a non-integer balance are skipped and reported. When a token repeats, the
// last line wins.
func ParseRoster(text string) ([]RosterRow, []SkippedLine) {
	var (
		rows    []RosterRow
		skipped []SkippedLine
		index   = map[string]int{}
	)
	text = strings.TrimPrefix(text, "\ufeff")
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ",", 3)
		for j := range parts {
			parts[j] = strings.TrimSpace(parts[j])
		}
		token := parts[0]
		if token == "" {
			skipped = append(skipped, SkippedLine{Line: i + 1, Text: line, Reason: "missing token"})
			continue
		}
		if err := validator.ValidateToken(token); err != nil {
			skipped = append(skipped, SkippedLine{Line: i + 1, Text: line, Reason: "token is malformed"})
			continue
		}
		var balance int64
		if len(parts) > 1 && parts[1] != "" {
			value, err := talent.ParseAmount(parts[1])
			if err != nil {
				skipped = append(skipped, SkippedLine{Line: i + 1, Text: line, Reason: "balance must be an integer"})
				continue
			}
			balance = value
		}
		label := ""
		if len(parts) > 2 {
			label = parts[2]
		}
		row := RosterRow{Token: token, Balance: balance, Label: label}
		if pos, ok := index[token]; ok {
			rows[pos] = row
			continue
		}
		index[token] = len(rows)
		rows = append(rows, row)
	}
	return rows, skipped
}
