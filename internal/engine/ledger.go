package engine

import "fmt"

// Denominations are the face values of the seven money cards, in ledger order.
var Denominations = [7]int{0, 10, 20, 50, 100, 200, 500}

// Money counts money cards per denomination. Unset fields mean zero, which is
// how clients send partial payment bundles.
type Money struct {
	Zeros        int `json:"zeros"`
	Tens         int `json:"tens"`
	Twenties     int `json:"twenties"`
	Fifties      int `json:"fifties"`
	Hundreds     int `json:"hundreds"`
	TwoHundreds  int `json:"twohundreds"`
	FiveHundreds int `json:"fivehundreds"`
}

func (m Money) counts() [7]int {
	return [7]int{m.Zeros, m.Tens, m.Twenties, m.Fifties, m.Hundreds, m.TwoHundreds, m.FiveHundreds}
}

func moneyOf(c [7]int) Money {
	return Money{
		Zeros:        c[0],
		Tens:         c[1],
		Twenties:     c[2],
		Fifties:      c[3],
		Hundreds:     c[4],
		TwoHundreds:  c[5],
		FiveHundreds: c[6],
	}
}

// Total is the face value of the bundle. Zeros contribute nothing.
func (m Money) Total() int {
	total := 0
	for i, n := range m.counts() {
		total += n * Denominations[i]
	}
	return total
}

// Count is the number of money cards, zeros included.
func (m Money) Count() int {
	count := 0
	for _, n := range m.counts() {
		count += n
	}
	return count
}

func (m Money) validate() error {
	for i, n := range m.counts() {
		if n < 0 {
			return fmt.Errorf("%w: negative count for %d", ErrMalformedPayment, Denominations[i])
		}
	}
	return nil
}

// Payment is a bundle of money cards removed from one ledger and not yet
// credited to another. It is a value; copies do not alias the source bundle.
type Payment struct {
	money Money
}

// NewPayment builds a payment outside of any ledger, used for bonuses and tests.
func NewPayment(m Money) Payment { return Payment{money: m} }

func (p Payment) Money() Money { return p.money }
func (p Payment) Total() int   { return p.money.Total() }
func (p Payment) Count() int   { return p.money.Count() }

// StartingMoney is what every ledger holds when a participant is created.
var StartingMoney = Money{Zeros: 2, Tens: 3, Twenties: 1, Fifties: 1}

// DonkeyBonuses is the escalating schedule paid out on each donkey draw.
var DonkeyBonuses = []Money{
	{Fifties: 1},
	{Hundreds: 1},
	{TwoHundreds: 1},
	{FiveHundreds: 1},
}

// Ledger tracks one participant's money cards. Counts never go negative.
type Ledger struct {
	held    Money
	donkeys int
}

func NewLedger() *Ledger {
	return &Ledger{held: StartingMoney}
}

// NewLedgerWith starts a ledger from an arbitrary holding.
func NewLedgerWith(m Money) *Ledger {
	return &Ledger{held: m}
}

func (l *Ledger) Money() Money { return l.held }
func (l *Ledger) Total() int   { return l.held.Total() }
func (l *Ledger) Count() int   { return l.held.Count() }

// CheckSufficiency reports whether the ledger could pay out req. It has no
// side effects.
func (l *Ledger) CheckSufficiency(req Money) bool {
	if req.validate() != nil {
		return false
	}
	if l.held.Total() < req.Total() || l.held.Count() < req.Count() {
		return false
	}
	have := l.held.counts()
	for i, n := range req.counts() {
		if have[i] < n {
			return false
		}
	}
	return true
}

// CreatePayment debits exactly req and returns it as a payment. On any
// shortfall the ledger is left untouched.
func (l *Ledger) CreatePayment(req Money) (Payment, error) {
	if err := req.validate(); err != nil {
		return Payment{}, err
	}
	if !l.CheckSufficiency(req) {
		return Payment{}, ErrInsufficientFunds
	}
	have := l.held.counts()
	for i, n := range req.counts() {
		have[i] -= n
	}
	l.held = moneyOf(have)
	return Payment{money: req}, nil
}

// AcceptPayment credits every card of p.
func (l *Ledger) AcceptPayment(p Payment) {
	have := l.held.counts()
	for i, n := range p.money.counts() {
		have[i] += n
	}
	l.held = moneyOf(have)
}

// DonkeyBonus credits the next slot of the donkey schedule.
func (l *Ledger) DonkeyBonus() error {
	if l.donkeys >= len(DonkeyBonuses) {
		return ErrDonkeyOverflow
	}
	l.AcceptPayment(NewPayment(DonkeyBonuses[l.donkeys]))
	l.donkeys++
	return nil
}
