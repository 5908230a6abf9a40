package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestErrorClasses(t *testing.T) {
	cases := []struct {
		err   error
		class error
	}{
		{ErrShowtimeNotFound, ErrNotFound},
		{ErrRoomNotFound, ErrNotFound},
		{ErrLayoutNotFound, ErrNotFound},
		{ErrSeatNotFound, ErrNotFound},
		{ErrSeatsUnavailable, ErrConflict},
		{ErrSeatsNotBookable, ErrConflict},
		{ErrSeatsAlreadyInitialized, ErrAlreadyInitialized},
		{ErrEmptySeatList, ErrInvalidInput},
		{ErrInvalidSeatID, ErrInvalidInput},
		{ErrInvalidTTL, ErrInvalidInput},
		{ErrSeatShowtimeMismatch, ErrInvalidInput},
		{ErrInvalidLayout, ErrInvalidInput},
		{ErrMissingBookingRef, ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.ErrorIs(t, tc.err, tc.class)
			assert.ErrorIs(t, fmt.Errorf("wrapped: %w", tc.err), tc.class)
		})
	}
	assert.NotErrorIs(t, ErrSeatsUnavailable, ErrNotFound)
	assert.NotErrorIs(t, ErrShowtimeNotFound, ErrConflict)
}

func TestSeatConflictError(t *testing.T) {
	err := NewSeatConflictError(ErrSeatsUnavailable, []uint64{9, 3, 5})

	assert.Equal(t, []uint64{3, 5, 9}, err.SeatIDs)
	assert.ErrorIs(t, err, ErrSeatsUnavailable)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "[3,5,9]")

	var ce *SeatConflictError
	assert.True(t, errors.As(fmt.Errorf("reserve: %w", err), &ce))
	assert.Equal(t, []uint64{3, 5, 9}, ce.SeatIDs)
}

func TestSeatNotFoundError(t *testing.T) {
	err := &SeatNotFoundError{SeatIDs: []uint64{42}}
	assert.ErrorIs(t, err, ErrSeatNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "42")
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	transientCases := map[string]error{
		"deadlock":     &mysql.MySQLError{Number: 1213},
		"lock wait":    &mysql.MySQLError{Number: 1205},
		"too many":     &mysql.MySQLError{Number: 1040},
		"shutdown":     &mysql.MySQLError{Number: 1053},
		"bad conn":     driver.ErrBadConn,
		"invalid conn": mysql.ErrInvalidConn,
		"deadline":     context.DeadlineExceeded,
		"net":          timeoutErr{},
	}
	for name, cause := range transientCases {
		t.Run(name, func(t *testing.T) {
			err := classify("op", cause)
			assert.ErrorIs(t, err, ErrTransient)
			assert.ErrorIs(t, err, cause)
		})
	}

	err := classify("op", &mysql.MySQLError{Number: 1064})
	assert.NotErrorIs(t, err, ErrTransient)
	assert.Contains(t, err.Error(), "op:")

	assert.NoError(t, classify("op", nil))
	assert.True(t, isDuplicateKey(fmt.Errorf("x: %w", &mysql.MySQLError{Number: 1062})))
	assert.False(t, isDuplicateKey(&mysql.MySQLError{Number: 1213}))
}
