package models

import "github.com/shopspring/decimal"

// Classification says whether an expense must be mirrored to the remote ledger.
type Classification int

const (
	// Personal expenses are stored locally only.
	Personal Classification = iota
	// Shared expenses create a debt between participants and live on the remote ledger.
	Shared
)

func (c Classification) String() string {
	if c == Shared {
		return "shared"
	}
	return "personal"
}

// ShareInput is a participant share as received at the boundary, before validation.
type ShareInput struct {
	ParticipantID string
	PaidShare     string
	OwedShare     string
}

// Share is a validated participant share.
type Share struct {
	ParticipantID string
	PaidShare     decimal.Decimal
	OwedShare     decimal.Decimal
}
