package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the tables the seat engine reads and writes.  The catalog
// tables (room_layouts, rooms, showtimes) are owned by catalog management
// and only created here so a fresh database is usable in development.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS room_layouts (
		id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		seat_layout JSON NOT NULL,
		PRIMARY KEY (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS rooms (
		id        BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		name      VARCHAR(120) NOT NULL,
		layout_id BIGINT UNSIGNED NOT NULL,
		PRIMARY KEY (id),
		CONSTRAINT fk_rooms_layout FOREIGN KEY (layout_id) REFERENCES room_layouts (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS showtimes (
		id                  BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		movie_id            BIGINT UNSIGNED NOT NULL,
		room_id             BIGINT UNSIGNED NOT NULL,
		starts_at           DATETIME NOT NULL,
		discount_id         BIGINT UNSIGNED NULL,
		price_regular_cents INT UNSIGNED NOT NULL DEFAULT 0,
		price_vip_cents     INT UNSIGNED NOT NULL DEFAULT 0,
		price_couple_cents  INT UNSIGNED NOT NULL DEFAULT 0,
		status              VARCHAR(20) NOT NULL DEFAULT 'active',
		PRIMARY KEY (id),
		KEY idx_showtimes_room (room_id),
		CONSTRAINT fk_showtimes_room FOREIGN KEY (room_id) REFERENCES rooms (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS seats (
		id          BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
		showtime_id BIGINT UNSIGNED NOT NULL,
		row_label   VARCHAR(8) NOT NULL,
		seat_number VARCHAR(16) NOT NULL,
		seat_type   ENUM('regular','vip','couple') NOT NULL DEFAULT 'regular',
		price_cents INT UNSIGNED NOT NULL,
		status      ENUM('AVAILABLE','RESERVED','BOOKED') NOT NULL DEFAULT 'AVAILABLE',
		holder_id   BIGINT UNSIGNED NULL,
		booking_ref VARCHAR(64) NULL,
		expires_at  DATETIME(6) NULL,
		booked_at   DATETIME(6) NULL,
		version     INT UNSIGNED NOT NULL DEFAULT 0,
		created_at  DATETIME(6) NOT NULL,
		updated_at  DATETIME(6) NOT NULL,
		PRIMARY KEY (id),
		UNIQUE KEY uq_seats_showtime_row_number (showtime_id, row_label, seat_number),
		KEY idx_seats_status_expires (status, expires_at),
		CONSTRAINT fk_seats_showtime FOREIGN KEY (showtime_id) REFERENCES showtimes (id) ON DELETE CASCADE,
		CONSTRAINT chk_seats_expiry CHECK ((status = 'RESERVED') = (expires_at IS NOT NULL)),
		CONSTRAINT chk_seats_booking CHECK ((status = 'BOOKED') = (booking_ref IS NOT NULL))
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates any missing tables.  Statements are idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
