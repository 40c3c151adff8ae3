package main

import (
	"database/sql"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Event types recorded by the journal
const (
	EventJoin  = "join"
	EventLeave = "leave"
	EventEaten = "eaten"
	EventSkill = "skill"
)

// Event is one game lifecycle record
type Event struct {
	Type     string
	PlayerID string
	Name     string
	Detail   string  // skill name, or the eaten player's name
	Score    float64 // score carried by the event, when meaningful
	At       time.Time
}

const (
	journalQueue = 1024
	journalBatch = 50
	journalFlush = 5 * time.Second
)

// Journal persists game events to SQLite with batched background writes.
// It journals events, not world state; a restart still starts an empty
// arena.
type Journal struct {
	db     *sql.DB
	events chan Event
	stop   chan struct{}
	wg     sync.WaitGroup
}

// OpenJournal opens (or creates) the database and starts the writer
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	j := &Journal{
		db:     db,
		events: make(chan Event, journalQueue),
		stop:   make(chan struct{}),
	}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	j.wg.Add(1)
	go j.writer()
	return j, nil
}

// migrate creates tables if they don't exist
func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_type TEXT NOT NULL,
		player_id TEXT,
		player_name TEXT,
		detail TEXT,
		score REAL NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_type ON events(event_type);
	CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record enqueues an event for async persistence (non-blocking)
func (j *Journal) Record(ev Event) {
	ev.At = time.Now().UTC()
	select {
	case j.events <- ev:
	default:
		// queue full, drop the event rather than stall the caller
	}
}

// Stop drains the queue and flushes before closing the database
func (j *Journal) Stop() {
	close(j.stop)
	j.wg.Wait()
	j.db.Close()
}

// writer is the background goroutine that batches and writes events
func (j *Journal) writer() {
	defer j.wg.Done()

	batch := make([]Event, 0, 64)
	ticker := time.NewTicker(journalFlush)
	defer ticker.Stop()

	for {
		select {
		case evt := <-j.events:
			batch = append(batch, evt)
			if len(batch) >= journalBatch {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				j.flush(batch)
				batch = batch[:0]
			}
		case <-j.stop:
			for {
				select {
				case evt := <-j.events:
					batch = append(batch, evt)
				default:
					if len(batch) > 0 {
						j.flush(batch)
					}
					return
				}
			}
		}
	}
}

// flush writes a batch of events inside one transaction
func (j *Journal) flush(events []Event) {
	tx, err := j.db.Begin()
	if err != nil {
		log.Printf("journal: begin tx: %v", err)
		return
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO events (event_type, player_id, player_name, detail, score, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		log.Printf("journal: prepare: %v", err)
		return
	}
	defer stmt.Close()

	for _, evt := range events {
		pid := sql.NullString{String: evt.PlayerID, Valid: evt.PlayerID != ""}
		name := sql.NullString{String: evt.Name, Valid: evt.Name != ""}
		detail := sql.NullString{String: evt.Detail, Valid: evt.Detail != ""}
		if _, err := stmt.Exec(evt.Type, pid, name, detail, evt.Score, evt.At.Format(time.RFC3339)); err != nil {
			log.Printf("journal: insert: %v", err)
		}
	}
	tx.Commit()
}

// ScoreRow is one leaderboard entry
type ScoreRow struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// TopScores returns the best score each player was recorded holding:
// their score on leaving, or what an eater took from them at death. The
// eaten row names the loser in detail, so the transfer is credited there.
func (j *Journal) TopScores(limit int) ([]ScoreRow, error) {
	rows, err := j.db.Query(`
		SELECT name, MAX(score) AS best FROM (
			SELECT player_name AS name, score FROM events
			WHERE event_type = ? AND player_name IS NOT NULL
			UNION ALL
			SELECT detail AS name, score FROM events
			WHERE event_type = ? AND detail IS NOT NULL
		)
		WHERE score > 0
		GROUP BY name
		ORDER BY best DESC
		LIMIT ?
	`, EventLeave, EventEaten, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ScoreRow
	for rows.Next() {
		var sr ScoreRow
		if err := rows.Scan(&sr.Name, &sr.Score); err != nil {
			continue
		}
		result = append(result, sr)
	}
	return result, rows.Err()
}

// EventCounts returns counts of each event type for the last N days
func (j *Journal) EventCounts(days int) (map[string]int, error) {
	rows, err := j.db.Query(`
		SELECT event_type, COUNT(*) FROM events
		WHERE created_at >= date('now', '-' || ? || ' days')
		GROUP BY event_type ORDER BY COUNT(*) DESC
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var evtType string
		var count int
		if err := rows.Scan(&evtType, &count); err != nil {
			continue
		}
		result[evtType] = count
	}
	return result, rows.Err()
}
