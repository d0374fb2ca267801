package engine

// Rotation is round-robin turn order over a fixed roster of n seats. Seat
// indices never move; only the head does.
type Rotation struct {
	n    int
	head int
}

func NewRotation(n int) Rotation {
	return Rotation{n: n}
}

// Head is the seat whose turn it is.
func (r Rotation) Head() int { return r.head }

// Order lists seats starting from the head.
func (r Rotation) Order() []int {
	seats := make([]int, r.n)
	for i := range seats {
		seats[i] = (r.head + i) % r.n
	}
	return seats
}

// Others lists every seat except the head, in turn order.
func (r Rotation) Others() []int {
	if r.n == 0 {
		return nil
	}
	return r.Order()[1:]
}

// Advance makes the current head the tail.
func (r Rotation) Advance() Rotation {
	if r.n == 0 {
		return r
	}
	return Rotation{n: r.n, head: (r.head + 1) % r.n}
}
