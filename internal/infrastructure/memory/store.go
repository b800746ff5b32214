// Package memory implementa los repositorios en memoria. Sirve como doble de pruebas y
// para la CLI en modo desarrollo; no persiste nada.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
	"github.com/jhoicas/invorya-verifactu/internal/domain/repository"
)

// Store guarda todas las entidades. Los repositorios guardan y devuelven copias, de modo
// que una entidad almacenada nunca se modifica in situ.
type Store struct {
	mu sync.RWMutex
	// txMu serializa las transacciones: equivale a los bloqueos de fila y de cadena
	// que toma la implementación en PostgreSQL.
	txMu sync.Mutex

	tenants   map[string]*entity.Tenant
	customers map[string]*entity.Customer
	series    map[string]*entity.Series
	invoices  map[string]*entity.Invoice
	entries   map[string]*entity.LedgerEntry
	jobs      map[string]*entity.SubmissionJob

	// jobOrder orden de inserción de los trabajos (equivale a la columna identity).
	jobOrder   map[string]int64
	jobCounter int64
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{
		tenants:   make(map[string]*entity.Tenant),
		customers: make(map[string]*entity.Customer),
		series:    make(map[string]*entity.Series),
		invoices:  make(map[string]*entity.Invoice),
		entries:   make(map[string]*entity.LedgerEntry),
		jobs:      make(map[string]*entity.SubmissionJob),
		jobOrder:  make(map[string]int64),
	}
}

// Repos devuelve los repositorios respaldados por este almacén.
func (s *Store) Repos() repository.Repos {
	return s.repos(nil)
}

func (s *Store) repos(j *journal) repository.Repos {
	return repository.Repos{
		Tenants:   &TenantRepo{s: s, j: j},
		Customers: &CustomerRepo{s: s, j: j},
		Series:    &SeriesRepo{s: s, j: j},
		Invoices:  &InvoiceRepo{s: s, j: j},
		Ledger:    &LedgerRepo{s: s, j: j},
		Jobs:      &SubmissionJobRepo{s: s, j: j},
	}
}

// RunBilling ejecuta fn de forma exclusiva. Si fn falla se deshacen sus escrituras, y
// sólo las suyas: lo escrito fuera de la transacción mientras tanto se conserva.
func (s *Store) RunBilling(ctx context.Context, fn func(repos repository.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	j := &journal{}
	if err := fn(s.repos(j)); err != nil {
		s.mu.Lock()
		j.rollback()
		s.mu.Unlock()
		return err
	}
	return nil
}

// TamperEntry modifica un registro ya escrito saltándose el append-only. Sólo para
// simular manipulaciones en pruebas de verificación.
func (s *Store) TamperEntry(id string, mutate func(e *entity.LedgerEntry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("memory: registro %s no encontrado", id)
	}
	c := cloneEntry(e)
	mutate(c)
	s.entries[id] = c
	return nil
}

// journal anota cómo deshacer cada escritura de una transacción.
type journal struct {
	undo []func()
}

func (j *journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// put escribe m[key] = v; dentro de una transacción guarda antes el valor previo de la
// clave. Se llama con s.mu tomado.
func put[V any](j *journal, m map[string]V, key string, v V) {
	if j != nil {
		prev, existed := m[key]
		j.undo = append(j.undo, func() {
			if existed {
				m[key] = prev
			} else {
				delete(m, key)
			}
		})
	}
	m[key] = v
}

var _ repository.TenantRepository = (*TenantRepo)(nil)
var _ repository.CustomerRepository = (*CustomerRepo)(nil)
var _ repository.SeriesRepository = (*SeriesRepo)(nil)
var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)
var _ repository.LedgerRepository = (*LedgerRepo)(nil)
var _ repository.SubmissionJobRepository = (*SubmissionJobRepo)(nil)
