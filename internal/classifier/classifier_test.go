package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/tripledger/internal/models"
)

func shares(t *testing.T, in ...models.ShareInput) []models.Share {
	t.Helper()
	parsed, err := ParseShares(in)
	require.NoError(t, err)
	return parsed
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		acting string
		shares []models.ShareInput
		want   models.Classification
	}{
		{
			name:   "acting user owes everything",
			acting: "A",
			shares: []models.ShareInput{
				{ParticipantID: "A", OwedShare: "10"},
				{ParticipantID: "B", OwedShare: "0"},
			},
			want: models.Personal,
		},
		{
			name:   "another participant owes",
			acting: "A",
			shares: []models.ShareInput{
				{ParticipantID: "A", OwedShare: "0"},
				{ParticipantID: "B", OwedShare: "10"},
			},
			want: models.Shared,
		},
		{
			name:   "paid share alone does not share",
			acting: "A",
			shares: []models.ShareInput{
				{ParticipantID: "A", PaidShare: "0", OwedShare: "25.50"},
				{ParticipantID: "B", PaidShare: "25.50", OwedShare: "0.00"},
			},
			want: models.Personal,
		},
		{
			name:   "empty share set",
			acting: "A",
			want:   models.Personal,
		},
		{
			name:   "unknown acting user with positive share",
			acting: "",
			shares: []models.ShareInput{{ParticipantID: "A", OwedShare: "5"}},
			want:   models.Shared,
		},
		{
			name:   "unknown acting user with zero shares",
			acting: "",
			shares: []models.ShareInput{{ParticipantID: "A", OwedShare: "0"}},
			want:   models.Personal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.acting, shares(t, tt.shares...))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseShares(t *testing.T) {
	parsed, err := ParseShares([]models.ShareInput{
		{ParticipantID: " 42 ", PaidShare: "12.50", OwedShare: ""},
	})

	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, "42", parsed[0].ParticipantID)
	assert.Equal(t, "12.5", parsed[0].PaidShare.String())
	assert.True(t, parsed[0].OwedShare.IsZero())
}

func TestParseShares_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input models.ShareInput
	}{
		{name: "non-numeric owed", input: models.ShareInput{ParticipantID: "A", OwedShare: "ten"}},
		{name: "non-numeric paid", input: models.ShareInput{ParticipantID: "A", PaidShare: "1,5"}},
		{name: "negative owed", input: models.ShareInput{ParticipantID: "A", OwedShare: "-3"}},
		{name: "missing participant", input: models.ShareInput{OwedShare: "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseShares([]models.ShareInput{tt.input})
			assert.ErrorIs(t, err, ErrInvalidShare)
		})
	}
}

func TestParseShares_DuplicateParticipant(t *testing.T) {
	_, err := ParseShares([]models.ShareInput{
		{ParticipantID: "A", PaidShare: "30", OwedShare: "10"},
		{ParticipantID: "B", OwedShare: "10"},
		{ParticipantID: " A ", OwedShare: "10"},
	})

	require.ErrorIs(t, err, ErrInvalidShare)
	assert.Contains(t, err.Error(), "duplicate participant A")
}
