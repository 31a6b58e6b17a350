package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the full MMSTR table set. Idempotent; run at startup or via
// the migrate command. The UNIQUE constraints on gradings.interpretation_id,
// grading_responses.grading_id and arbitrations.interpretation_id back the
// one-per-parent invariants, and the arbitration uniqueness doubles as the
// insert-if-absent guard against duplicate rulings.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id          BIGSERIAL PRIMARY KEY,
    name        TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS conversations (
    id                 TEXT PRIMARY KEY,
    title              TEXT NOT NULL,
    max_attempts       INTEGER NOT NULL DEFAULT 3,
    participant_limit  INTEGER NOT NULL DEFAULT 20,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS participations (
    user_id   BIGINT NOT NULL REFERENCES users(id),
    convo_id  TEXT NOT NULL REFERENCES conversations(id),
    PRIMARY KEY (user_id, convo_id)
);

CREATE TABLE IF NOT EXISTS messages (
    id                       TEXT PRIMARY KEY,
    text                     TEXT NOT NULL,
    user_id                  BIGINT NOT NULL REFERENCES users(id),
    convo_id                 TEXT NOT NULL REFERENCES conversations(id),
    replying_to_message_id   TEXT REFERENCES messages(id),
    created_at               TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS interpretations (
    id              TEXT PRIMARY KEY,
    message_id      TEXT NOT NULL REFERENCES messages(id),
    user_id         BIGINT NOT NULL REFERENCES users(id),
    text            TEXT NOT NULL,
    attempt_number  INTEGER NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (message_id, user_id, attempt_number)
);

CREATE TABLE IF NOT EXISTS gradings (
    id                     TEXT PRIMARY KEY,
    interpretation_id      TEXT NOT NULL UNIQUE REFERENCES interpretations(id),
    status                 TEXT NOT NULL,
    similarity_score       INTEGER NOT NULL DEFAULT 0,
    auto_accept_suggested  BOOLEAN NOT NULL DEFAULT false,
    notes                  TEXT,
    created_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS grading_responses (
    id          TEXT PRIMARY KEY,
    grading_id  TEXT NOT NULL UNIQUE REFERENCES gradings(id),
    text        TEXT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS arbitrations (
    id                   TEXT PRIMARY KEY,
    message_id           TEXT NOT NULL REFERENCES messages(id),
    interpretation_id    TEXT NOT NULL UNIQUE REFERENCES interpretations(id),
    grading_id           TEXT NOT NULL REFERENCES gradings(id),
    grading_response_id  TEXT REFERENCES grading_responses(id),
    result               TEXT NOT NULL,
    ruling_status        TEXT NOT NULL,
    explanation          TEXT NOT NULL,
    created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS breakdowns (
    id                 TEXT PRIMARY KEY,
    message_id         TEXT REFERENCES messages(id),
    interpretation_id  TEXT REFERENCES interpretations(id),
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    CHECK ((message_id IS NULL) <> (interpretation_id IS NULL)),
    UNIQUE (message_id),
    UNIQUE (interpretation_id)
);

CREATE TABLE IF NOT EXISTS points (
    id            TEXT PRIMARY KEY,
    breakdown_id  TEXT NOT NULL REFERENCES breakdowns(id),
    text          TEXT NOT NULL,
    point_order   INTEGER NOT NULL
);
`

// Migrate applies the schema to db.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
