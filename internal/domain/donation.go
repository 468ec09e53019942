package domain

import "time"

// DonationStatus enumerates payment states.
type DonationStatus string

const (
	DonationStatusPending   DonationStatus = "pending"
	DonationStatusCompleted DonationStatus = "completed"
	DonationStatusFailed    DonationStatus = "failed"
	DonationStatusRefunded  DonationStatus = "refunded"
)

// Donation is a recorded contribution. Payer and fund fields are joined in for
// display and are empty when the donation is anonymous or unassigned.
type Donation struct {
	ID          string
	ChurchID    string
	AmountCents int64
	Status      DonationStatus
	Method      string
	DonatedAt   time.Time
	DonorName   string
	DonorEmail  string
	FundName    string
	CreatedAt   time.Time
}

// Anonymous reports whether the donation has no linked payer.
func (d Donation) Anonymous() bool {
	return d.DonorName == ""
}
