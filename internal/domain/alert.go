package domain

import "time"

// Alert is the tuple published to the outbound channel for each newly observed
// fill. PositionRef indexes the ledger row the fill mutated; it is nil only for
// orphan exits, signaling the consumer to skip dispatch.
type Alert struct {
	Text        string
	FilledAt    string // Order.CloseTime of the originating fill
	PositionRef *int
}

// JournalOutcome classifies what a processed fill did to the ledger.
type JournalOutcome string

const (
	OutcomeOpened            JournalOutcome = "opened"
	OutcomeAveragedEntry     JournalOutcome = "averaged_entry"
	OutcomeExited            JournalOutcome = "exited"
	OutcomeAveragedExit      JournalOutcome = "averaged_exit"
	OutcomeOrphanExit        JournalOutcome = "orphan_exit"
	OutcomeRejectedAveraging JournalOutcome = "rejected_averaging"
	OutcomeSkipped           JournalOutcome = "skipped"
)

// JournalEntry is one processed fill recorded in the audit journal, carrying
// the normalized order fields alongside the ledger outcome.
type JournalEntry struct {
	ID             int64
	OrderID        string
	Broker         string
	Symbol         string
	Action         string
	Status         OrderStatus
	Quantity       float64
	FilledQuantity float64
	Price          float64
	CloseTime      string
	Outcome        JournalOutcome
	PositionRef    *int
	ProcessedAt    time.Time
}
