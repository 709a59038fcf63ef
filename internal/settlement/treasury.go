package settlement

// Funds is an in-memory Treasury.
type Funds struct {
	balance float64
	adjusts int
}

func NewFunds(balance float64) *Funds { return &Funds{balance: balance} }

func (f *Funds) Adjust(delta float64) {
	f.balance += delta
	f.adjusts++
}

func (f *Funds) Balance() float64 { return f.balance }

// Adjustments counts Adjust calls.
func (f *Funds) Adjustments() int { return f.adjusts }

func (f *Funds) Set(balance float64) { f.balance = balance }
