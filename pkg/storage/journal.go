// Package storage holds the durable side pieces of the node that are not
// the ledger database itself.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tokendex/tokendex/pkg/app/core/exchange"
)

// Journal is an append-only JSON-lines log of exchange events. One line
// per event, flushed on every append. It satisfies exchange.Sink so it can
// be wired straight into the engine.
type Journal struct {
	mu sync.Mutex
	f  *os.File
}

func NewJournal(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	return &Journal{f: f}, nil
}

type journalLine struct {
	Kind string         `json:"kind"`
	At   int64          `json:"at"` // Unix milliseconds, write time
	Data exchange.Event `json:"data"`
}

// Emit appends one event line. Errors are swallowed; the journal is an
// observer, never a gate on the ledger.
func (j *Journal) Emit(ev exchange.Event) {
	line, err := json.Marshal(journalLine{
		Kind: ev.Kind(),
		At:   time.Now().UnixMilli(),
		Data: ev,
	})
	if err != nil {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	fmt.Fprintln(j.f, string(line))
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}

var _ exchange.Sink = (*Journal)(nil)
