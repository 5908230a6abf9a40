package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-seat-engine/internal/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DBConfig{User: "app", Pass: "pw", Host: "db", Port: "3307", Name: "cinema"})

	mc, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "app", mc.User)
	assert.Equal(t, "pw", mc.Passwd)
	assert.Equal(t, "db:3307", mc.Addr)
	assert.Equal(t, "cinema", mc.DBName)
	assert.True(t, mc.ParseTime)
	assert.Equal(t, "UTC", mc.Loc.String())
}

func TestMigrate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"room_layouts", "rooms", "showtimes", "seats"} {
		mock.ExpectExec(`CREATE TABLE IF NOT EXISTS ` + table + ` `).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, Migrate(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_StopsAtFirstFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS room_layouts`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS rooms`).WillReturnError(errors.New("access denied"))

	err = Migrate(context.Background(), db)
	assert.ErrorContains(t, err, "migrate step 2")
	assert.NoError(t, mock.ExpectationsWereMet())
}
