package engine

import "slices"

// Hand holds the incomplete sets a participant owns plus the sets already
// completed. Cards never hold four of a kind past a call to Add.
type Hand struct {
	Cards     []Card
	Completed []Card
}

func NewHand() *Hand {
	return &Hand{Cards: []Card{}, Completed: []Card{}}
}

// Add appends c and promotes the kind to a completed set on the fourth copy.
func (h *Hand) Add(c Card) (completed bool) {
	h.Cards = append(h.Cards, c)
	if h.CountOf(c.Kind) < CopiesPerKind {
		return false
	}
	h.Cards = slices.DeleteFunc(h.Cards, func(held Card) bool { return held.Kind == c.Kind })
	h.Completed = append(h.Completed, c)
	return true
}

// Take removes one card of kind.
func (h *Hand) Take(kind Kind) (Card, error) {
	i := slices.IndexFunc(h.Cards, func(c Card) bool { return c.Kind == kind })
	if i < 0 {
		return Card{}, ErrCardNotHeld
	}
	c := h.Cards[i]
	h.Cards = slices.Delete(h.Cards, i, i+1)
	return c, nil
}

func (h *Hand) CountOf(kind Kind) int {
	n := 0
	for _, c := range h.Cards {
		if c.Kind == kind {
			n++
		}
	}
	return n
}

// Kinds lists the distinct kinds in the hand in first-seen order.
func (h *Hand) Kinds() []Kind {
	var kinds []Kind
	for _, c := range h.Cards {
		if !slices.Contains(kinds, c.Kind) {
			kinds = append(kinds, c.Kind)
		}
	}
	return kinds
}

// CanTrade reports whether the hand still has an incomplete set.
func (h *Hand) CanTrade() bool { return len(h.Cards) > 0 }

// Score is the summed value of completed kinds times the number of sets.
func (h *Hand) Score() int {
	sum := 0
	for _, c := range h.Completed {
		sum += c.Value
	}
	return sum * len(h.Completed)
}
