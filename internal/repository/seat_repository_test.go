package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-engine/internal/model"
)

var seatCols = []string{
	"id", "showtime_id", "row_label", "seat_number", "seat_type", "price_cents", "status",
	"holder_id", "booking_ref", "expires_at", "booked_at", "version", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (*SeatRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSeatRepo(db), mock
}

func availableRow(rows *sqlmock.Rows, id uint64, row, num string) *sqlmock.Rows {
	return rows.AddRow(id, 1, row, num, "regular", 900, "AVAILABLE", nil, nil, nil, nil, 0, now, now)
}

func TestSeatRepo_MutateWritesChangedSeatsOnly(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows(seatCols)
	availableRow(rows, 1, "A", "1")
	availableRow(rows, 2, "A", "2")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM seats WHERE id IN \(\?,\?\) ORDER BY id FOR UPDATE`).
		WithArgs(1, 2).
		WillReturnRows(rows)
	mock.ExpectExec(`UPDATE seats\s+SET status = \?`).
		WithArgs("RESERVED", 7, nil, sqlmock.AnyArg(), nil, 1, sqlmock.AnyArg(), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	out, err := repo.Mutate(context.Background(), []uint64{2, 1, 2}, func(ss []*model.Seat) error {
		require.Len(t, ss, 2)
		ss[1].Reserve(7, now.Add(15*time.Minute), now)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, model.SeatAvailable, out[0].Status)
	assert.Equal(t, model.SeatReserved, out[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepo_MutateRollsBackOnCallbackError(t *testing.T) {
	repo, mock := newMockRepo(t)

	rows := sqlmock.NewRows(seatCols)
	availableRow(rows, 1, "A", "1")

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(rows)
	mock.ExpectRollback()

	_, err := repo.Mutate(context.Background(), []uint64{1}, func(ss []*model.Seat) error {
		ss[0].Reserve(7, now.Add(time.Minute), now)
		return ErrSeatsUnavailable
	})
	assert.ErrorIs(t, err, ErrSeatsUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepo_MutateDeadlockIsTransient(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnError(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"})
	mock.ExpectRollback()

	_, err := repo.Mutate(context.Background(), []uint64{1}, func([]*model.Seat) error { return nil })
	assert.ErrorIs(t, err, ErrTransient)
	var me *mysql.MySQLError
	assert.True(t, errors.As(err, &me))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepo_CreateSeatsRejectsInitializedShowtime(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM seats WHERE showtime_id = \?`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))
	mock.ExpectRollback()

	_, err := repo.CreateSeats(context.Background(), 1, []model.Seat{{RowLabel: "A", SeatNumber: "1"}})
	assert.ErrorIs(t, err, ErrSeatsAlreadyInitialized)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepo_CreateSeatsDuplicateKeyRace(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO seats`).WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	_, err := repo.CreateSeats(context.Background(), 1, []model.Seat{{RowLabel: "A", SeatNumber: "1"}})
	assert.ErrorIs(t, err, ErrSeatsAlreadyInitialized)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepo_CreateSeats(t *testing.T) {
	repo, mock := newMockRepo(t)

	in := []model.Seat{
		{RowLabel: "A", SeatNumber: "1", SeatType: model.SeatTypeRegular, PriceCents: 900, CreatedAt: now},
		{RowLabel: "A", SeatNumber: "2", SeatType: model.SeatTypeRegular, PriceCents: 900, CreatedAt: now},
	}
	rows := sqlmock.NewRows(seatCols)
	availableRow(rows, 11, "A", "1")
	availableRow(rows, 12, "A", "2")

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT`).WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO seats .+ VALUES \(.+\),\(.+\)`).WillReturnResult(sqlmock.NewResult(11, 2))
	mock.ExpectQuery(`WHERE showtime_id = \? ORDER BY id`).WithArgs(1).WillReturnRows(rows)
	mock.ExpectCommit()

	out, err := repo.CreateSeats(context.Background(), 1, in)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, uint64(11), out[0].ID)
	assert.Equal(t, "A2", out[1].Label())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepo_ReleaseExpired(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE seats\s+SET status = \?.+WHERE status = \? AND expires_at < \?`).
		WithArgs("AVAILABLE", sqlmock.AnyArg(), "RESERVED", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.ReleaseExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeatRepo_ListByShowtimeAvailableOnly(t *testing.T) {
	repo, mock := newMockRepo(t)

	hold := now.Add(10 * time.Minute)
	rows := sqlmock.NewRows(seatCols).
		AddRow(3, 1, "B", "4", "vip", 1500, "RESERVED", 9, nil, hold, nil, 1, now, now)
	mock.ExpectQuery(`WHERE showtime_id = \? ORDER BY id`).WithArgs(1).WillReturnRows(rows)

	seats, err := repo.ListByShowtime(context.Background(), 1, false)
	require.NoError(t, err)
	require.Len(t, seats, 1)
	require.NotNil(t, seats[0].HolderID)
	assert.Equal(t, uint64(9), *seats[0].HolderID)
	require.NotNil(t, seats[0].ExpiresAt)
	assert.True(t, hold.Equal(*seats[0].ExpiresAt))

	mock.ExpectQuery(`WHERE showtime_id = \? AND status = \? ORDER BY id`).
		WithArgs(1, "AVAILABLE").
		WillReturnRows(sqlmock.NewRows(seatCols))
	seats, err = repo.ListByShowtime(context.Background(), 1, true)
	require.NoError(t, err)
	assert.Empty(t, seats)
	assert.NoError(t, mock.ExpectationsWereMet())
}
