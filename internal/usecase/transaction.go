package usecase

import (
	"context"
	"fmt"

	"github.com/xavierca1/ligue-crm/internal/infra/logger"
)

// Transaction executa operações em ordem e, na primeira falha, roda as
// compensações das operações já concluídas em ordem reversa.
type Transaction struct {
	operations    []Operation
	compensations map[int]Compensation
}

type Operation struct {
	Name string
	Fn   func(context.Context) error
}

type Compensation struct {
	Name string
	Fn   func(context.Context) error
}

func NewTransaction() *Transaction {
	return &Transaction{
		operations:    []Operation{},
		compensations: map[int]Compensation{},
	}
}

func (t *Transaction) AddOperation(name string, fn func(context.Context) error) {
	t.operations = append(t.operations, Operation{name, fn})
}

// AddCompensation associa a compensação à última operação adicionada.
func (t *Transaction) AddCompensation(name string, fn func(context.Context) error) {
	if len(t.operations) == 0 {
		return
	}
	t.compensations[len(t.operations)-1] = Compensation{name, fn}
}

func (t *Transaction) Execute(ctx context.Context) error {
	for i, op := range t.operations {
		if err := op.Fn(ctx); err != nil {
			t.rollback(context.WithoutCancel(ctx), i)
			return fmt.Errorf("operation '%s' failed: %w (rolled back %d operations)", op.Name, err, i)
		}
	}
	return nil
}

func (t *Transaction) rollback(ctx context.Context, failedAtIndex int) {
	for i := failedAtIndex - 1; i >= 0; i-- {
		comp, ok := t.compensations[i]
		if !ok {
			continue
		}
		if err := comp.Fn(ctx); err != nil {
			logger.LogError(logger.Get(), "usecase", "Transaction.rollback", "compensação falhou, risco de inconsistência", comp.Name, err)
		}
	}
}
