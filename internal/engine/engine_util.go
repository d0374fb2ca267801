package engine

import (
	"bytes"
	"encoding/json"
	"sort"
)

// MarshalJSON flattens per-player state next to the roster, keyed by name:
// {"players": [...], "<name>": {...}, "deck_count": n}.
func (g GlobalState) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"players":`)
	players := g.Players
	if players == nil {
		players = []string{}
	}
	if err := writeJSON(&buf, players); err != nil {
		return nil, err
	}
	for _, name := range g.Players {
		ps, ok := g.Public[name]
		if !ok {
			continue
		}
		buf.WriteByte(',')
		if err := writeJSON(&buf, name); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSON(&buf, ps); err != nil {
			return nil, err
		}
	}
	buf.WriteString(`,"deck_count":`)
	if err := writeJSON(&buf, g.DeckCount); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (g *GlobalState) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var out GlobalState
	if err := json.Unmarshal(raw["players"], &out.Players); err != nil {
		return err
	}
	if count, ok := raw["deck_count"]; ok {
		if err := json.Unmarshal(count, &out.DeckCount); err != nil {
			return err
		}
	}
	out.Public = make(map[string]PlayerState, len(out.Players))
	for _, name := range out.Players {
		entry, ok := raw[name]
		if !ok {
			continue
		}
		var ps PlayerState
		if err := json.Unmarshal(entry, &ps); err != nil {
			return err
		}
		out.Public[name] = ps
	}
	*g = out
	return nil
}

// Score is one line of the final standings.
type Score struct {
	Name  string
	Score int
}

// Scoreboard is ordered by descending score.
type Scoreboard []Score

// NewScoreboard sorts scores high to low; equal scores keep their input order.
func NewScoreboard(scores []Score) Scoreboard {
	board := make(Scoreboard, len(scores))
	copy(board, scores)
	sort.SliceStable(board, func(i, j int) bool { return board[i].Score > board[j].Score })
	return board
}

// MarshalJSON encodes the board as a name -> score object, keeping rank order.
func (b Scoreboard) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range b {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSON(&buf, s.Name); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSON(&buf, s.Score); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
