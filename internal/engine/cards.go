package engine

import (
	"encoding/json"
	"fmt"
	"math/rand"
)

type Kind string

const (
	KindRooster Kind = "rooster"
	KindGoose   Kind = "goose"
	KindDuck    Kind = "duck"
	KindCat     Kind = "cat"
	KindDog     Kind = "dog"
	KindSheep   Kind = "sheep"
	KindGoat    Kind = "goat"
	KindDonkey  Kind = "donkey"
	KindPig     Kind = "pig"
	KindCow     Kind = "cow"
	KindHorse   Kind = "horse"
)

// CopiesPerKind is both the deck multiplicity and the size of a completed set.
const CopiesPerKind = 4

// Card is an animal card. Two cards of the same kind are interchangeable.
type Card struct {
	Kind  Kind
	Value int
}

// Catalog lists one card of every kind in ascending value.
var Catalog = []Card{
	{Kind: KindRooster, Value: 10},
	{Kind: KindGoose, Value: 20},
	{Kind: KindDuck, Value: 40},
	{Kind: KindCat, Value: 90},
	{Kind: KindDog, Value: 160},
	{Kind: KindSheep, Value: 250},
	{Kind: KindGoat, Value: 350},
	{Kind: KindDonkey, Value: 500},
	{Kind: KindPig, Value: 650},
	{Kind: KindCow, Value: 800},
	{Kind: KindHorse, Value: 1000},
}

// CardOf looks up the catalog card for a kind name.
func CardOf(kind Kind) (Card, bool) {
	for _, c := range Catalog {
		if c.Kind == kind {
			return c, true
		}
	}
	return Card{}, false
}

// MarshalJSON encodes a card as a [name, value] pair, the shape clients
// already read inside published state.
func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{c.Kind, c.Value})
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("card: want [name, value], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &c.Kind); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &c.Value)
}

// NewCardSet returns every card of the ruleset in catalog order.
func NewCardSet() []Card {
	cards := make([]Card, 0, len(Catalog)*CopiesPerKind)
	for i := 0; i < CopiesPerKind; i++ {
		cards = append(cards, Catalog...)
	}
	return cards
}

// Deck is consumed by random draw without replacement.
type Deck struct {
	cards []Card
	rng   *rand.Rand
}

// NewDeck returns the full 44-card deck drawing at random from rng.
func NewDeck(rng *rand.Rand) *Deck {
	return &Deck{cards: NewCardSet(), rng: rng}
}

// NewStackedDeck returns a deck that deals cards in the given order.
func NewStackedDeck(cards ...Card) *Deck {
	stacked := make([]Card, len(cards))
	for i, c := range cards {
		stacked[len(cards)-1-i] = c
	}
	return &Deck{cards: stacked}
}

func (d *Deck) Len() int { return len(d.cards) }

// Draw removes and returns one card; ok is false once the deck is empty.
func (d *Deck) Draw() (card Card, ok bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	i := len(d.cards) - 1
	if d.rng != nil {
		i = d.rng.Intn(len(d.cards))
	}
	card = d.cards[i]
	d.cards[i] = d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return card, true
}
