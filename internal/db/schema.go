package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
const schema = `
CREATE TABLE IF NOT EXISTS patrons (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    full_name     TEXT NOT NULL DEFAULT '',
    email         TEXT NOT NULL DEFAULT '',
    role          TEXT NOT NULL DEFAULT 'member'
                  CHECK (role IN ('member', 'librarian', 'head_librarian', 'admin', 'superadmin')),
    status        TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'active', 'suspended')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_patrons_username_active
    ON patrons(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS titles (
    id               INTEGER PRIMARY KEY,
    isbn             TEXT NOT NULL DEFAULT '',
    title            TEXT NOT NULL,
    author           TEXT NOT NULL DEFAULT '',
    publisher        TEXT NOT NULL DEFAULT '',
    year             INTEGER NOT NULL DEFAULT 0,
    genre            TEXT NOT NULL DEFAULT '',
    total_copies     INTEGER NOT NULL DEFAULT 0 CHECK (total_copies >= 0),
    available_copies INTEGER NOT NULL DEFAULT 0 CHECK (available_copies >= 0),
    version          INTEGER NOT NULL DEFAULT 1,
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at       DATETIME
);

CREATE TABLE IF NOT EXISTS circulation_requests (
    id           INTEGER PRIMARY KEY,
    title_id     INTEGER NOT NULL REFERENCES titles(id),
    patron_id    INTEGER NOT NULL REFERENCES patrons(id),
    status       TEXT NOT NULL DEFAULT 'pending'
                 CHECK (status IN ('pending', 'approved', 'rejected', 'fulfilled')),
    notes        TEXT,
    created_at   DATETIME NOT NULL,
    reviewed_at  DATETIME,
    reviewed_by  INTEGER REFERENCES patrons(id),
    fulfilled_at DATETIME,
    loan_id      INTEGER REFERENCES loans(id)
);

CREATE INDEX IF NOT EXISTS idx_requests_status ON circulation_requests(status);

CREATE TABLE IF NOT EXISTS reservations (
    id           INTEGER PRIMARY KEY,
    title_id     INTEGER NOT NULL REFERENCES titles(id),
    patron_id    INTEGER NOT NULL REFERENCES patrons(id),
    status       TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'fulfilled', 'cancelled')),
    notes        TEXT,
    created_at   DATETIME NOT NULL,
    fulfilled_at DATETIME,
    cancelled_at DATETIME,
    handled_by   INTEGER REFERENCES patrons(id),
    loan_id      INTEGER REFERENCES loans(id)
);

CREATE INDEX IF NOT EXISTS idx_reservations_status ON reservations(status);

CREATE TABLE IF NOT EXISTS loans (
    id             INTEGER PRIMARY KEY,
    ref            TEXT NOT NULL UNIQUE,
    title_id       INTEGER NOT NULL REFERENCES titles(id),
    patron_id      INTEGER NOT NULL REFERENCES patrons(id),
    issued_by      INTEGER,
    request_id     INTEGER,
    reservation_id INTEGER,
    issued_at      DATETIME NOT NULL,
    due_at         DATETIME NOT NULL,
    returned_at    DATETIME,
    status         TEXT NOT NULL DEFAULT 'issued' CHECK (status IN ('issued', 'returned', 'overdue')),
    notes          TEXT
);

CREATE INDEX IF NOT EXISTS idx_loans_status ON loans(status);

CREATE TABLE IF NOT EXISTS fines (
    id               INTEGER PRIMARY KEY,
    loan_id          INTEGER NOT NULL UNIQUE REFERENCES loans(id),
    amount           INTEGER NOT NULL CHECK (amount >= 0),
    paid_status      TEXT NOT NULL DEFAULT 'unpaid' CHECK (paid_status IN ('unpaid', 'paid')),
    assessed_at      DATETIME NOT NULL,
    paid_at          DATETIME,
    paid_recorded_by INTEGER
);

CREATE TABLE IF NOT EXISTS book_reviews (
    id           INTEGER PRIMARY KEY,
    title_id     INTEGER NOT NULL REFERENCES titles(id),
    patron_id    INTEGER NOT NULL REFERENCES patrons(id),
    rating       INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
    review_text  TEXT,
    status       TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
    created_at   DATETIME NOT NULL,
    reviewed_at  DATETIME,
    reviewed_by  INTEGER REFERENCES patrons(id),
    review_notes TEXT
);

CREATE INDEX IF NOT EXISTS idx_book_reviews_title ON book_reviews(title_id, status);

CREATE TABLE IF NOT EXISTS events (
    id           TEXT PRIMARY KEY,
    type         TEXT NOT NULL,
    aggregate    TEXT NOT NULL,
    aggregate_id INTEGER NOT NULL,
    actor_id     INTEGER NOT NULL DEFAULT 0,
    payload      TEXT NOT NULL,
    occurred_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_occurred ON events(occurred_at);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
