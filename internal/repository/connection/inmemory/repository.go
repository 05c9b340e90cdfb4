package inmemory

import (
	"log/slog"
	"sync"

	"github.com/sharetube/watchparty/internal/repository/connection"
	"golang.org/x/exp/maps"
)

type repo struct {
	conns  map[string]*connection.Conn
	mu     sync.RWMutex
	logger *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		conns:  make(map[string]*connection.Conn),
		logger: logger,
	}
}

func (r *repo) Add(conn *connection.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("called", "conn_id", conn.ID)
	if _, ok := r.conns[conn.ID]; ok {
		r.logger.Debug("returned", "error", connection.ErrAlreadyExists)
		return connection.ErrAlreadyExists
	}

	r.conns[conn.ID] = conn

	return nil
}

// Remove forgets the connection and closes it.
func (r *repo) Remove(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("called", "conn_id", connID)
	conn, ok := r.conns[connID]
	if !ok {
		r.logger.Debug("returned", "error", connection.ErrNotFound)
		return connection.ErrNotFound
	}
	conn.Close()

	delete(r.conns, connID)

	return nil
}

func (r *repo) GetConn(connID string) (*connection.Conn, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.conns[connID]
	if !ok {
		return nil, connection.ErrNotFound
	}

	return conn, nil
}

func (r *repo) GetConns() []*connection.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Values(r.conns)
}

func (r *repo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}
