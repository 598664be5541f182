// Package services holds the server's business logic: sessions, add-on
// curation and reload, and user synchronization. Services receive every
// collaborator at construction.
package services

import "github.com/dmitrijs2005/addonkeeper/internal/server/notify"

// Status is the result kind of one reload or sync item.
type Status string

const (
	StatusSuccess Status = "success"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Outcome reports what happened to one add-on or user.
type Outcome struct {
	ID     string
	Name   string
	Status Status
	Reason string
}

func succeeded(id, name, reason string) Outcome {
	return Outcome{ID: id, Name: name, Status: StatusSuccess, Reason: reason}
}

func skipped(id, name, reason string) Outcome {
	return Outcome{ID: id, Name: name, Status: StatusSkipped, Reason: reason}
}

func failed(id, name string, err error) Outcome {
	return Outcome{ID: id, Name: name, Status: StatusFailed, Reason: err.Error()}
}

// BatchResult aggregates the outcomes of a batch run. Batches never stop
// at a failing item.
type BatchResult struct {
	Outcomes  []Outcome
	Succeeded int
	Failed    int
	Skipped   int
	Total     int
}

func (b *BatchResult) add(o Outcome) {
	b.Outcomes = append(b.Outcomes, o)
	b.Total++
	switch o.Status {
	case StatusSuccess:
		b.Succeeded++
	case StatusFailed:
		b.Failed++
	case StatusSkipped:
		b.Skipped++
	}
}

func (b *BatchResult) summary(accountID, scope string) notify.Summary {
	return notify.Summary{
		AccountID: accountID,
		Scope:     scope,
		Succeeded: b.Succeeded,
		Failed:    b.Failed,
		Skipped:   b.Skipped,
		Total:     b.Total,
	}
}
