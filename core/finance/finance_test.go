package finance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "1250", want: 125000},
		{in: "1,250", want: 125000},
		{in: "1,250.5", want: 125050},
		{in: " 1,250.50 ", want: 125050},
		{in: ".5", want: 50},
		{in: "0.05", want: 5},
		{in: "1,000,000.00", want: 100000000},
		{in: "", wantErr: true},
		{in: ".", wantErr: true},
		{in: "1.234", wantErr: true},
		{in: "12,50", wantErr: true},
		{in: "-5", wantErr: true},
		{in: "1e3", wantErr: true},
		{in: "99999999999999999999", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0.00", FormatAmount(0))
	assert.Equal(t, "0.05", FormatAmount(5))
	assert.Equal(t, "999.99", FormatAmount(99999))
	assert.Equal(t, "1,250.50", FormatAmount(125050))
	assert.Equal(t, "1,000,000.00", FormatAmount(100000000))
	assert.Equal(t, "-12.30", FormatAmount(-1230))
}

func TestScholarship_IsActiveOn(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 9, d, 0, 0, 0, 0, time.UTC) }
	s := Scholarship{Status: ScholarshipActive, StartsOn: day(10), EndsOn: day(20)}

	assert.False(t, s.IsActiveOn(day(9).Add(23*time.Hour)))
	assert.True(t, s.IsActiveOn(day(10)))
	assert.True(t, s.IsActiveOn(day(20).Add(23*time.Hour)), "the last day is included")
	assert.False(t, s.IsActiveOn(day(21)))

	noon := Scholarship{Status: ScholarshipActive, StartsOn: day(10).Add(12 * time.Hour), EndsOn: day(20).Add(12 * time.Hour)}
	assert.True(t, noon.IsActiveOn(day(10).Add(8*time.Hour)), "active all of its first day")
	assert.True(t, noon.IsActiveOn(day(20).Add(18*time.Hour)), "active all of its last day")

	s.EndsOn = time.Time{}
	assert.True(t, s.IsActiveOn(day(28).AddDate(5, 0, 0)), "open ended")

	s.Status = ScholarshipRevoked
	assert.False(t, s.IsActiveOn(day(15)))
}

func TestComputeBalance(t *testing.T) {
	on := time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)
	txs := []Transaction{
		{Kind: KindTuition, Amount: 100000, Status: StatusPending},
		{Kind: KindFee, Amount: 5000, Status: StatusPaid},
		{Kind: KindFee, Amount: 9999, Status: StatusCancelled},
		{Kind: KindPayment, Amount: 20000, Status: StatusPaid},
		{Kind: KindPayment, Amount: 50000, Status: StatusPending},
		{Kind: KindRefund, Amount: 1000, Status: StatusPaid},
	}
	tot := SumTransactions(txs)
	assert.Equal(t, Totals{Tuition: 100000, Fees: 5000, Payments: 20000, Refunds: 1000}, tot)

	active := Scholarship{Status: ScholarshipActive, Percentage: 25, Amount: 2500, Currency: "USD", StartsOn: on.AddDate(0, -1, 0)}
	future := Scholarship{Status: ScholarshipActive, Percentage: 100, StartsOn: on.AddDate(0, 1, 0)}

	bal := ComputeBalance("s1", "USD", tot, []Scholarship{active, future}, on)
	assert.Equal(t, int64(105000), bal.Charges)
	assert.Equal(t, int64(27500), bal.Discount)
	assert.Equal(t, int64(105000-27500-20000+1000), bal.Balance)
	assert.Equal(t, "585.00 USD", bal.Display)

	t.Run("the discount is capped at the charges", func(t *testing.T) {
		full := Scholarship{Status: ScholarshipActive, Percentage: 100, Amount: 100000, Currency: "USD", StartsOn: on}
		bal := ComputeBalance("s1", "USD", tot, []Scholarship{full}, on)
		assert.Equal(t, bal.Charges, bal.Discount)
		assert.Equal(t, int64(-19000), bal.Balance)
		assert.Equal(t, "-190.00 USD", bal.Display)
	})

	t.Run("fixed amounts only discount their currency", func(t *testing.T) {
		eur := Scholarship{Status: ScholarshipActive, Percentage: 10, Amount: 5000, Currency: "EUR", StartsOn: on}
		bal := ComputeBalance("s1", "USD", tot, []Scholarship{eur}, on)
		assert.Equal(t, int64(10000), bal.Discount)

		bal = ComputeBalance("s1", "EUR", Totals{Fees: 8000}, []Scholarship{eur}, on)
		assert.Equal(t, int64(5000), bal.Discount)
		assert.Equal(t, "30.00 EUR", bal.Display)
	})
}
