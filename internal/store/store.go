// Package store keeps a history of clock readings in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pinthoz/analogic-watch-detector/pkg/types"
)

// ErrNotFound is returned when a reading id does not exist
var ErrNotFound = errors.New("reading not found")

// Reading is one stored result of a detect-time request
type Reading struct {
	ID         string             `json:"id"`
	Source     string             `json:"source"`
	Reading    types.ClockReading `json:"time"`
	Confidence float64            `json:"confidence"`
	Stage      string             `json:"stage"`
	Detections []types.Detection  `json:"detections"`
	CreatedAt  time.Time          `json:"created_at"`
}

type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database at path
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

func (db *DB) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS readings (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		hours INTEGER NOT NULL,
		minutes INTEGER,
		seconds INTEGER,
		confidence REAL NOT NULL,
		stage TEXT NOT NULL,
		detections TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_readings_created_at ON readings(created_at);
	`

	_, err := db.conn.Exec(query)
	return err
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Record stores r, assigning its ID and CreatedAt
func (db *DB) Record(ctx context.Context, r *Reading) error {
	r.ID = uuid.New().String()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	dets := r.Detections
	if dets == nil {
		dets = []types.Detection{}
	}
	detsJSON, err := json.Marshal(dets)
	if err != nil {
		return fmt.Errorf("failed to marshal detections: %w", err)
	}

	query := `
		INSERT INTO readings (
			id, source, hours, minutes, seconds, confidence, stage, detections, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = db.conn.ExecContext(ctx, query,
		r.ID,
		r.Source,
		r.Reading.Hours,
		nullInt(r.Reading.Minutes),
		nullInt(r.Reading.Seconds),
		r.Confidence,
		r.Stage,
		string(detsJSON),
		r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

// Get returns the reading with the given id or ErrNotFound
func (db *DB) Get(ctx context.Context, id string) (*Reading, error) {
	query := `
		SELECT id, source, hours, minutes, seconds, confidence, stage, detections, created_at
		FROM readings WHERE id = ?`

	r, err := scanReading(db.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reading: %w", err)
	}
	return r, nil
}

// List returns the most recent readings, newest first
func (db *DB) List(ctx context.Context, limit int) ([]Reading, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, source, hours, minutes, seconds, confidence, stage, detections, created_at
		FROM readings ORDER BY created_at DESC LIMIT ?`

	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list readings: %w", err)
	}
	defer rows.Close()

	readings := []Reading{}
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		readings = append(readings, *r)
	}
	return readings, rows.Err()
}

// Count returns the number of stored readings
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM readings`).Scan(&n)
	return n, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReading(s scanner) (*Reading, error) {
	var (
		r                Reading
		minutes, seconds sql.NullInt64
		detsJSON         string
	)
	err := s.Scan(&r.ID, &r.Source, &r.Reading.Hours, &minutes, &seconds,
		&r.Confidence, &r.Stage, &detsJSON, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	if minutes.Valid {
		r.Reading.Minutes = types.IntPtr(int(minutes.Int64))
	}
	if seconds.Valid {
		r.Reading.Seconds = types.IntPtr(int(seconds.Int64))
	}
	if err := json.Unmarshal([]byte(detsJSON), &r.Detections); err != nil {
		return nil, fmt.Errorf("invalid detections column: %w", err)
	}
	return &r, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
