// Package pipeline é o lado cliente das transições de estágio: aplica o
// movimento no kanban local antes da resposta e desfaz quando o servidor recusa.
package pipeline

import (
	"errors"
	"sync"
)

var ErrRecordNotInStage = errors.New("record is not in the origin stage")

// Board é a visão local do kanban: estágio -> ids na ordem exibida.
type Board struct {
	mu      sync.RWMutex
	columns map[string][]string
}

func NewBoard(columns map[string][]string) *Board {
	b := &Board{columns: make(map[string][]string, len(columns))}
	for stage, ids := range columns {
		b.columns[stage] = append([]string(nil), ids...)
	}
	return b
}

func (b *Board) Column(stage string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.columns[stage]...)
}

func (b *Board) StageOf(recordID string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for stage, ids := range b.columns {
		if indexOf(ids, recordID) >= 0 {
			return stage, true
		}
	}
	return "", false
}

// take remove o record da coluna e devolve a posição que ele ocupava.
func (b *Board) take(stage, recordID string) (int, bool) {
	ids := b.columns[stage]
	i := indexOf(ids, recordID)
	if i < 0 {
		return -1, false
	}
	b.columns[stage] = append(ids[:i:i], ids[i+1:]...)
	return i, true
}

func (b *Board) insert(stage, recordID string, at int) {
	ids := b.columns[stage]
	if at < 0 || at > len(ids) {
		at = len(ids)
	}
	out := make([]string, 0, len(ids)+1)
	out = append(out, ids[:at]...)
	out = append(out, recordID)
	b.columns[stage] = append(out, ids[at:]...)
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// MoveCommand é o movimento otimista; Undo é a compensação explícita.
type MoveCommand struct {
	RecordID string
	From     string
	To       string

	origin   int
	executed bool
}

func (c *MoveCommand) Execute(b *Board) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	at, ok := b.take(c.From, c.RecordID)
	if !ok {
		return ErrRecordNotInStage
	}
	c.origin = at
	c.executed = true
	b.insert(c.To, c.RecordID, -1)
	return nil
}

// Undo devolve o record à posição original. Sem Execute prévio não faz nada.
func (c *MoveCommand) Undo(b *Board) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !c.executed {
		return
	}
	c.executed = false
	b.take(c.To, c.RecordID)
	b.insert(c.From, c.RecordID, c.origin)
}
