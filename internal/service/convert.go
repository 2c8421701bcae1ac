package service

import (
	"fmt"
	"time"

	"github.com/mmynk/tripledger/internal/calculator"
	"github.com/mmynk/tripledger/internal/models"
	"github.com/mmynk/tripledger/internal/submission"
	"github.com/mmynk/tripledger/pkg/api"
)

// parseOptionalDate parses a YYYY-MM-DD field; "" is nil.
func parseOptionalDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := models.ParseDate(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", submission.ErrInvalidSubmission, field, err)
	}
	return &t, nil
}

func detailsFromAPI(d api.ExpenseDetails) (models.ExpenseDetails, error) {
	start, err := parseOptionalDate("stay_start", d.StayStart)
	if err != nil {
		return models.ExpenseDetails{}, err
	}
	end, err := parseOptionalDate("stay_end", d.StayEnd)
	if err != nil {
		return models.ExpenseDetails{}, err
	}
	return models.ExpenseDetails{
		Location:  d.Location,
		Category:  d.Category,
		StayStart: start,
		StayEnd:   end,
	}, nil
}

func submissionFromAPI(req *api.SubmitExpenseRequest) (models.Submission, error) {
	details, err := detailsFromAPI(req.Details)
	if err != nil {
		return models.Submission{}, err
	}
	date, err := parseOptionalDate("date", req.Date)
	if err != nil {
		return models.Submission{}, err
	}

	sub := models.Submission{
		ExpenseID:    req.ExpenseID,
		GroupID:      req.GroupID,
		Description:  req.Description,
		Cost:         req.Cost,
		CurrencyCode: req.CurrencyCode,
		Details:      details,
	}
	if date != nil {
		sub.Date = *date
	}
	for _, s := range req.Shares {
		sub.Shares = append(sub.Shares, models.ShareInput{
			ParticipantID: s.ParticipantID,
			PaidShare:     s.PaidShare,
			OwedShare:     s.OwedShare,
		})
	}
	return sub, nil
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return models.FormatDate(*t)
}

func expenseToAPI(r *models.ExpenseRow) api.Expense {
	return api.Expense{
		ID:             r.ID,
		ExpenseID:      r.ExpenseID,
		GroupID:        r.GroupID,
		ParticipantID:  r.ParticipantID,
		Description:    r.Description,
		Amount:         r.Amount,
		CurrencyCode:   r.CurrencyCode,
		OriginalAmount: r.OriginalAmount,
		Date:           models.FormatDate(r.Date),
		Personal:       models.IsLocalID(r.ExpenseID),
		ExpenseDetails: api.ExpenseDetails{
			Location:  r.Location,
			Category:  r.Category,
			StayStart: formatOptionalDate(r.StayStart),
			StayEnd:   formatOptionalDate(r.StayEnd),
		},
	}
}

func expensesToAPI(rows []*models.ExpenseRow) []api.Expense {
	out := make([]api.Expense, 0, len(rows))
	for _, r := range rows {
		out = append(out, expenseToAPI(r))
	}
	return out
}

func tripToAPI(t *models.Trip) *api.Trip {
	return &api.Trip{
		ID:            t.ID,
		GroupID:       t.GroupID,
		Name:          t.Name,
		StartDate:     formatOptionalDate(t.StartDate),
		EndDate:       formatOptionalDate(t.EndDate),
		Currencies:    t.Currencies,
		Locations:     t.Locations,
		CreatedBy:     t.CreatedBy,
		CreatedByName: t.CreatedByName,
		CreatedAt:     t.CreatedAt,
	}
}

func userToAPI(u *models.User) *api.User {
	return &api.User{
		ID:        u.ID,
		RemoteID:  u.RemoteID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

func totalsToAPI(totals []calculator.Total) []api.Total {
	out := make([]api.Total, 0, len(totals))
	for _, t := range totals {
		out = append(out, api.Total{Key: t.Key, Amount: t.Amount, Count: t.Count})
	}
	return out
}
