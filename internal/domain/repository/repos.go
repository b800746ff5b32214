package repository

// Repos agrupa los repositorios que participan en una transacción de facturación.
// Todos comparten la misma transacción subyacente.
type Repos struct {
	Tenants   TenantRepository
	Customers CustomerRepository
	Series    SeriesRepository
	Invoices  InvoiceRepository
	Ledger    LedgerRepository
	Jobs      SubmissionJobRepository
}
