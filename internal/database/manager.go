// Package database is the sqlite implementation of the relay event journal.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	dbconfig "github.com/SoCo-NP/SoCo/pkg/database"
	"github.com/SoCo-NP/SoCo/pkg/interfaces"
	"github.com/SoCo-NP/SoCo/pkg/types"
)

// retryDelay is the pause before the single retry of a failed write
const retryDelay = 250 * time.Millisecond

// Manager implements interfaces.Journal
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation // TECHNICAL: Single-writer pattern for SQLite
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the journal, applies the embedded migrations and starts the writer
func NewManager(config *dbconfig.Config) (*Manager, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid journal config: %w", err)
	}

	db, err := sql.Open("sqlite3", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// FUNCTIONAL DISCOVERY: Connection pool configuration critical for concurrent reads
	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := dbconfig.ApplyPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite pragmas: %w", err)
	}
	if err := dbconfig.NewMigrationManager(db, dbconfig.Migrations()).ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}

	manager := &Manager{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	// ARCHITECTURAL DISCOVERY: Single-writer goroutine prevents SQLite write contention
	manager.wg.Add(1)
	go manager.writeLoop()

	log.Printf("Journal opened: path=%s", config.DatabasePath)
	return manager, nil
}

// writeLoop processes all write operations in a single goroutine
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			m.run(op)
		case <-m.shutdown:
			// drain what was queued before Close
			for {
				select {
				case op := <-m.writeChannel:
					m.run(op)
				default:
					log.Println("Journal write loop shutting down")
					return
				}
			}
		}
	}
}

// run executes one write, retrying exactly once
func (m *Manager) run(op writeOperation) {
	err := op.operation(m.db)
	if err != nil {
		log.Printf("Journal write failed, retrying: %v", err)
		time.Sleep(retryDelay)
		err = op.operation(m.db)
		if err != nil {
			log.Printf("Journal write failed after retry: %v", err)
		}
	}
	op.result <- err
}

// executeWrite queues a write operation and waits for completion or ctx
func (m *Manager) executeWrite(ctx context.Context, operation func(*sql.DB) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return interfaces.ErrJournalClosed
	}

	result := make(chan error, 1)
	ctx, cancel := context.WithTimeout(ctx, m.config.WriteTimeout)
	defer cancel()

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
	case <-ctx.Done():
		return fmt.Errorf("queueing journal write: %w", ctx.Err())
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for journal write: %w", ctx.Err())
	}
}

// Record appends one event
func (m *Manager) Record(ctx context.Context, event *types.Event) error {
	if !types.IsValidEventKind(event.Kind) {
		return fmt.Errorf("%w: %q", types.ErrInvalidEventKind, event.Kind)
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	return m.executeWrite(ctx, func(db *sql.DB) error {
		res, err := db.ExecContext(ctx, `
			INSERT INTO events (run_id, kind, nickname, role, path, detail, at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			event.RunID,
			string(event.Kind),
			event.Nickname,
			event.Role,
			string(event.Path),
			event.Detail,
			event.At,
		)
		if err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
		if id, err := res.LastInsertId(); err == nil {
			event.ID = id
		}
		return nil
	})
}

// Events lists one run's events in insertion order
func (m *Manager) Events(ctx context.Context, runID string) ([]*types.Event, error) {
	// ARCHITECTURAL DISCOVERY: Read operations can be concurrent - no need for writeChannel
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, run_id, kind, nickname, role, path, detail, at
		FROM events
		WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*types.Event
	for rows.Next() {
		var e types.Event
		var kind, path string
		if err := rows.Scan(&e.ID, &e.RunID, &kind, &e.Nickname, &e.Role, &path, &e.Detail, &e.At); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		e.Kind = types.EventKind(kind)
		e.Path = types.VirtualPath(path)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}

// HealthCheck validates database connectivity
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var n int
	if err := m.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM events").Scan(&n); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}
	return nil
}

// GetDB returns the underlying connection for schema checks
func (m *Manager) GetDB() *sql.DB {
	return m.db
}

// Close flushes queued writes and closes the database
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	// ARCHITECTURAL DISCOVERY: Graceful shutdown requires careful goroutine coordination
	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	log.Println("Journal closed")
	return nil
}
