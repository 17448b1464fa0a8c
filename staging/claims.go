package staging

import (
	"errors"
	"fmt"
	"sync"
)

// ErrBookBusy is returned when another live session already stages
// annotations for the same book.
var ErrBookBusy = errors.New("book is being processed by another session")

// Claims tracks which session owns which book. One instance is shared by all
// sessions of the process.
type Claims struct {
	mu     sync.Mutex
	owners map[int64]*Store
}

func NewClaims() *Claims {
	return &Claims{owners: make(map[int64]*Store)}
}

func (c *Claims) acquire(bookID int64, s *Store) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if owner, ok := c.owners[bookID]; ok && owner != s {
		return fmt.Errorf("book %d: %w", bookID, ErrBookBusy)
	}
	c.owners[bookID] = s
	return nil
}

func (c *Claims) releaseAll(s *Store) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, owner := range c.owners {
		if owner == s {
			delete(c.owners, id)
		}
	}
}

// busy reports whether book is claimed by any live session.
func (c *Claims) busy(bookID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.owners[bookID]
	return ok
}
