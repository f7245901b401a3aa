package server

import (
	"log/slog"
	"sort"
	"strconv"
	"sync"
)

// Entry is a point-in-time view of one registered connection.
type Entry struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DeliveryError records a broadcast write that failed for one recipient.
type DeliveryError struct {
	Conn *Connection
	Err  error
}

// Registry is the directory of live connections. Names are compared
// case-sensitively and are unique among registered connections. The decimal
// form of an id is that connection's default name and no other connection
// may take it, including ids not yet handed out.
type Registry struct {
	mu     sync.RWMutex
	conns  map[int64]*Connection
	logger *slog.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		conns:  make(map[int64]*Connection),
		logger: logger,
	}
}

// Add registers c as Active.
func (r *Registry) Add(c *Connection) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[c.ID()]; exists {
		return ErrDuplicateID
	}
	c.setState(StateActive)
	r.conns[c.ID()] = c
	r.logger.Debug("connection registered", "conn_id", c.ID(), "total", len(r.conns))
	return nil
}

// Remove marks the connection Removed and drops it. It reports whether the
// id was registered; removing an unknown id is a no-op.
func (r *Registry) Remove(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return false
	}
	c.setState(StateRemoved)
	delete(r.conns, id)
	r.logger.Debug("connection unregistered", "conn_id", id, "total", len(r.conns))
	return true
}

// FindByName returns the Active connection called name.
func (r *Registry) FindByName(name string) (*Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.conns {
		if c.State() == StateActive && c.Name() == name {
			return c, nil
		}
	}
	return nil, ErrNotFound
}

// FindByID returns the connection with the given id.
func (r *Registry) FindByID(id int64) (*Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

// Rename changes the name of connection id and returns its previous name.
func (r *Registry) Rename(id int64, newName string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[id]
	if !ok {
		return "", ErrNotFound
	}
	oldName := c.Name()
	if oldName == newName {
		return oldName, ErrNameUnchanged
	}
	if owner, ok := defaultNameOwner(newName); ok && owner != id {
		return oldName, ErrNameTaken
	}
	for otherID, other := range r.conns {
		if otherID != id && other.State() == StateActive && other.Name() == newName {
			return oldName, ErrNameTaken
		}
	}
	c.setName(newName)
	return oldName, nil
}

// defaultNameOwner reports which id name is the default for, if any.
func defaultNameOwner(name string) (int64, bool) {
	id, err := strconv.ParseInt(name, 10, 64)
	if err != nil || id <= 0 || strconv.FormatInt(id, 10) != name {
		return 0, false
	}
	return id, true
}

// List returns every Active connection in ascending id order.
func (r *Registry) List() []Entry {
	conns := r.snapshot()
	entries := make([]Entry, 0, len(conns))
	for _, c := range conns {
		entries = append(entries, Entry{ID: c.ID(), Name: c.Name()})
	}
	return entries
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Broadcast writes message to every Active connection except the excluded
// ids. A failed write never stops delivery to the others; failures are
// returned so the caller can tear those connections down.
func (r *Registry) Broadcast(message string, exclude ...int64) []DeliveryError {
	var failed []DeliveryError

	for _, c := range r.snapshot() {
		if excluded(c.ID(), exclude) {
			continue
		}
		if err := c.Send(message); err != nil {
			r.logger.Warn("broadcast delivery failed", "conn_id", c.ID(), "error", err)
			failed = append(failed, DeliveryError{Conn: c, Err: err})
		}
	}
	return failed
}

// snapshot copies the Active connections, sorted by id, under the read lock.
func (r *Registry) snapshot() []*Connection {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, c := range r.conns {
		if c.State() == StateActive {
			conns = append(conns, c)
		}
	}
	r.mu.RUnlock()

	sort.Slice(conns, func(i, j int) bool { return conns[i].ID() < conns[j].ID() })
	return conns
}

func excluded(id int64, exclude []int64) bool {
	for _, e := range exclude {
		if e == id {
			return true
		}
	}
	return false
}
