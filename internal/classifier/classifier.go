// Package classifier decides whether a submitted expense is personal or shared.
package classifier

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tripledger/internal/models"
)

// ErrInvalidShare is returned for a share that is not a non-negative number.
var ErrInvalidShare = errors.New("invalid share")

// ParseShares validates raw shares. Empty share strings count as zero.
func ParseShares(inputs []models.ShareInput) ([]models.Share, error) {
	shares := make([]models.Share, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for i, in := range inputs {
		participant := strings.TrimSpace(in.ParticipantID)
		if participant == "" {
			return nil, fmt.Errorf("%w: share %d has no participant", ErrInvalidShare, i)
		}
		if seen[participant] {
			return nil, fmt.Errorf("%w: duplicate participant %s", ErrInvalidShare, participant)
		}
		seen[participant] = true
		paid, err := parseShare(in.PaidShare)
		if err != nil {
			return nil, fmt.Errorf("%w: participant %s paid_share %q", ErrInvalidShare, participant, in.PaidShare)
		}
		owed, err := parseShare(in.OwedShare)
		if err != nil {
			return nil, fmt.Errorf("%w: participant %s owed_share %q", ErrInvalidShare, participant, in.OwedShare)
		}
		shares = append(shares, models.Share{
			ParticipantID: participant,
			PaidShare:     paid,
			OwedShare:     owed,
		})
	}
	return shares, nil
}

func parseShare(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative share %s", s)
	}
	return d, nil
}

// Classify returns Shared when a participant other than acting owes a
// positive share, and Personal otherwise.
//
// An empty acting id means the acting participant is unknown; any positive
// owed share then makes the expense Shared.
func Classify(acting string, shares []models.Share) models.Classification {
	for _, s := range shares {
		if !s.OwedShare.IsPositive() {
			continue
		}
		if acting == "" || s.ParticipantID != acting {
			return models.Shared
		}
	}
	return models.Personal
}
