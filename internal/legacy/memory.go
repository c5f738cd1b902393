package legacy

import (
	"context"
	"strings"
	"sync"
)

// MemoryDirectory is an in-process Directory, used for local
// development and tests. Seed it up front or via Add.
type MemoryDirectory struct {
	mu      sync.RWMutex
	byLogin map[string]Record
}

func NewMemoryDirectory(records ...Record) *MemoryDirectory {
	d := &MemoryDirectory{
		byLogin: make(map[string]Record, len(records)),
	}
	for _, r := range records {
		d.byLogin[strings.ToLower(r.LoginName)] = r
	}
	return d
}

func (d *MemoryDirectory) Add(r Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byLogin[strings.ToLower(r.LoginName)] = r
}

func (d *MemoryDirectory) LookupByLoginName(_ context.Context, loginName string) (*Record, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	r, ok := d.byLogin[strings.ToLower(loginName)]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}
