package persist

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// pgnHeader carries the tag pairs written ahead of the move text.
type pgnHeader struct {
	Room        string
	White       string
	Black       string
	TimeControl time.Duration
	Date        time.Time
}

func resultToPGN(winner string) string {
	switch strings.ToLower(strings.TrimSpace(winner)) {
	case "white":
		return "1-0"
	case "black":
		return "0-1"
	case "draw":
		return "1/2-1/2"
	default:
		return "*"
	}
}

func buildPGN(h pgnHeader, res Result) string {
	pgnResult := resultToPGN(res.Winner)
	date := h.Date
	if date.IsZero() {
		date = time.Now()
	}
	var b strings.Builder
	b.WriteString("[Event \"Chess Room\"]\n")
	fmt.Fprintf(&b, "[Site \"%s\"]\n", sanitizePGN(h.Room))
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[White \"%s\"]\n", sanitizePGN(h.White))
	fmt.Fprintf(&b, "[Black \"%s\"]\n", sanitizePGN(h.Black))
	if h.TimeControl > 0 {
		fmt.Fprintf(&b, "[TimeControl \"%d\"]\n", int(h.TimeControl/time.Second))
	}
	if r := strings.TrimSpace(res.Reason); r != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizePGN(r))
	}
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", pgnResult)

	for i := 0; i < len(res.History); i += 2 {
		fmt.Fprintf(&b, "%d. %s", i/2+1, strings.TrimSpace(res.History[i]))
		if i+1 < len(res.History) {
			b.WriteString(" ")
			b.WriteString(strings.TrimSpace(res.History[i+1]))
		}
		b.WriteString(" ")
	}
	b.WriteString(pgnResult)
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}

// appendCapped decodes a JSON array, appends entry and keeps the last max
// elements.
func appendCapped(raw []byte, entry any, max int) ([]byte, error) {
	var items []json.RawMessage
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
	}
	enc, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	items = append(items, enc)
	if max > 0 && len(items) > max {
		items = items[len(items)-max:]
	}
	return json.Marshal(items)
}

func durationSeconds(start, end time.Time) int {
	if start.IsZero() || end.Before(start) {
		return 0
	}
	return int(end.Sub(start) / time.Second)
}

// winRate is a percentage rounded to two decimals.
func winRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(wins)/float64(total)*10000) / 100
}
