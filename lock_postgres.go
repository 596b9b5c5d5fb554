package sqsworker

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// PostgresLock uses session level advisory locks. Each held lock pins one
// connection; the server releases the lock when that connection goes away.
type PostgresLock struct {
	db *sql.DB

	mu    sync.Mutex
	conns map[string]*sql.Conn
}

func NewPostgresLock(db *sql.DB) *PostgresLock {
	return &PostgresLock{
		db:    db,
		conns: make(map[string]*sql.Conn),
	}
}

func (p *PostgresLock) TryAcquire(ctx context.Context, key string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.conns[key]; exists {
		return false, nil
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get connection: %w", err)
	}

	var locked bool
	err = conn.QueryRowContext(ctx,
		"SELECT pg_try_advisory_lock(hashtextextended($1, 0))",
		key,
	).Scan(&locked)
	if err != nil {
		conn.Close()
		return false, fmt.Errorf("failed to take advisory lock: %w", err)
	}
	if !locked {
		conn.Close()
		return false, nil
	}

	p.conns[key] = conn
	return true, nil
}

// Close releases every held lock by closing its connection.
func (p *PostgresLock) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for key, conn := range p.conns {
		if _, err := conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock_all()"); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.conns, key)
	}
	return firstErr
}
