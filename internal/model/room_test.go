package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeatLayout(t *testing.T) {
	raw := []byte(`[
		{"row": "A", "seats": [{"number": 1, "type": "vip"}, {"number": "2", "type": "regular"}]},
		{"rowLabel": "B", "seats": [{"number": 1.0, "type": "couple"}, {"number": "1A"}]}
	]`)

	rows, err := ParseSeatLayout(raw)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "A", rows[0].Row)
	assert.Equal(t, []LayoutSeat{{Number: "1", Type: "vip"}, {Number: "2", Type: "regular"}}, rows[0].Seats)

	assert.Equal(t, "B", rows[1].Row, "rowLabel is accepted as the row key")
	assert.Equal(t, "1", rows[1].Seats[0].Number)
	assert.Equal(t, "1A", rows[1].Seats[1].Number)
	assert.Equal(t, "", rows[1].Seats[1].Type)

	layout := RoomLayout{Rows: rows}
	assert.Equal(t, 4, layout.SeatCount())
}

func TestParseSeatLayout_Invalid(t *testing.T) {
	_, err := ParseSeatLayout([]byte(`{"row": "A"}`))
	assert.Error(t, err)

	_, err = ParseSeatLayout([]byte(`[{"row": "A", "seats": [{"number": true}]}]`))
	assert.Error(t, err)
}
