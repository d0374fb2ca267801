package engine

// SharesKind reports whether a and b hold at least one common kind.
func SharesKind(a, b *Hand) bool {
	for _, k := range a.Kinds() {
		if b.CountOf(k) > 0 {
			return true
		}
	}
	return false
}

// ContestedPairs validates a challenge of kind between the challenger's and
// the target's hands and returns how many cards each side puts at stake:
// 2 when both hold exactly two, otherwise 1.
func ContestedPairs(challenger, target *Hand, kind Kind) (int, error) {
	mine, theirs := challenger.CountOf(kind), target.CountOf(kind)
	if mine == 0 || theirs == 0 {
		return 0, ErrInvalidChallenge
	}
	if mine == 2 && theirs == 2 {
		return 2, nil
	}
	return 1, nil
}

// ChallengeWinner is true when the challenger's ante wins. Ties go to the
// challenger.
func ChallengeWinner(challengerAnte, targetAnte Payment) bool {
	return challengerAnte.Total() >= targetAnte.Total()
}
