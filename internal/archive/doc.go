// Package archive persists received domain notifications to PostgreSQL.
//
// The archive subscribes to the dispatcher's message stream, parses
// notification frames, and batch-inserts rows into the notifications table
// with ON CONFLICT (id) DO NOTHING. Frames that are not notifications are
// counted and skipped.
//
// Expected table:
//
//	CREATE TABLE notifications (
//	    id          text PRIMARY KEY,
//	    kind        text NOT NULL,
//	    title       text NOT NULL DEFAULT '',
//	    body        text NOT NULL DEFAULT '',
//	    venue_id    text NOT NULL DEFAULT '',
//	    event_ts    bigint NOT NULL,
//	    received_at bigint NOT NULL
//	);
package archive
