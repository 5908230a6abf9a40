package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Room is a screening room.  Its seat layout lives in a separate template
// record referenced by LayoutID so several rooms can share one layout.
type Room struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	LayoutID uint64 `json:"layout_id"`
}

// RoomLayout is the seat template of a room: an ordered list of rows, each
// listing its seats.
type RoomLayout struct {
	ID   uint64      `json:"id"`
	Rows []LayoutRow `json:"rows"`
}

// LayoutRow is one row of a layout template.
type LayoutRow struct {
	Row   string       `json:"row"`
	Seats []LayoutSeat `json:"seats"`
}

// LayoutSeat is one entry of a layout row.
type LayoutSeat struct {
	Number string `json:"number"`
	Type   string `json:"type"`
}

// SeatCount returns the number of template entries in the layout.
func (l RoomLayout) SeatCount() int {
	n := 0
	for _, r := range l.Rows {
		n += len(r.Seats)
	}
	return n
}

// ParseSeatLayout decodes the persisted layout document, a JSON array of
// `{ "row": "A", "seats": [{ "number": 1, "type": "vip" }] }`.  The row key
// may also be spelled rowLabel and seat numbers may be strings or numbers.
func ParseSeatLayout(raw []byte) ([]LayoutRow, error) {
	var rows []LayoutRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("decode seat layout: %w", err)
	}
	return rows, nil
}

func (r *LayoutRow) UnmarshalJSON(b []byte) error {
	var aux struct {
		Row      string       `json:"row"`
		RowLabel string       `json:"rowLabel"`
		Seats    []LayoutSeat `json:"seats"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	r.Row = aux.Row
	if r.Row == "" {
		r.Row = aux.RowLabel
	}
	r.Seats = aux.Seats
	return nil
}

func (s *LayoutSeat) UnmarshalJSON(b []byte) error {
	var aux struct {
		Number json.RawMessage `json:"number"`
		Type   string          `json:"type"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	s.Type = aux.Type
	num := bytes.TrimSpace(aux.Number)
	if len(num) == 0 || bytes.Equal(num, []byte("null")) {
		s.Number = ""
		return nil
	}
	if num[0] == '"' {
		return json.Unmarshal(num, &s.Number)
	}
	var f json.Number
	if err := json.Unmarshal(num, &f); err != nil {
		return fmt.Errorf("seat number: %w", err)
	}
	if i, err := strconv.ParseInt(f.String(), 10, 64); err == nil {
		s.Number = strconv.FormatInt(i, 10)
		return nil
	}
	if fl, err := f.Float64(); err == nil && fl == math.Trunc(fl) {
		s.Number = strconv.FormatInt(int64(fl), 10)
		return nil
	}
	s.Number = f.String()
	return nil
}
