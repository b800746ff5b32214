package memory

import (
	"encoding/json"
	"time"

	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
)

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	return append(json.RawMessage(nil), r...)
}

func cloneTenant(t *entity.Tenant) *entity.Tenant {
	c := *t
	return &c
}

func cloneCustomer(cu *entity.Customer) *entity.Customer {
	c := *cu
	return &c
}

func cloneSeries(s *entity.Series) *entity.Series {
	c := *s
	return &c
}

func cloneInvoice(inv *entity.Invoice) *entity.Invoice {
	c := *inv
	c.IssuedAt = cloneTime(inv.IssuedAt)
	c.Lines = make([]*entity.InvoiceLine, 0, len(inv.Lines))
	for _, l := range inv.Lines {
		lc := *l
		c.Lines = append(c.Lines, &lc)
	}
	return &c
}

func cloneEntry(e *entity.LedgerEntry) *entity.LedgerEntry {
	c := *e
	c.PrevHash = cloneString(e.PrevHash)
	c.PrevEntryID = cloneString(e.PrevEntryID)
	c.Payload = cloneRaw(e.Payload)
	return &c
}

func cloneJob(j *entity.SubmissionJob) *entity.SubmissionJob {
	c := *j
	c.Response = cloneRaw(j.Response)
	c.NextAttemptAt = cloneTime(j.NextAttemptAt)
	c.LockedUntil = cloneTime(j.LockedUntil)
	c.SentAt = cloneTime(j.SentAt)
	return &c
}
