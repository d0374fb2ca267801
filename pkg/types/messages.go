package types

// Every frame on the wire is {"type": <type>, "payload": <payload>}.

// Server -> Client
//   message:          text
//   error:            text | {message}
//   query:            text | {message}
//   state:            {"my name", "my wallet": {7 counts}, "global_state"}
//   card:             {name, value}
//   bid:              {bid, player}           accepted bid (bid 0 opens the auction)
//   auction-complete: {bidwinner, bid}
//   game-over:        {name: score, ...}      highest score first
//
// Client -> Server
//   username:       {username}
//   response:       "auction" | "challenge"
//   bid:            {amount}
//   auctioneer-bid: {amount}
//   challenge:      {player, card}
//   payment:        {zeros, tens, twenties, fifties, hundreds, twohundreds, fivehundreds}

// Frame types.
const (
	TypeMessage         = "message"
	TypeError           = "error"
	TypeQuery           = "query"
	TypeState           = "state"
	TypeCard            = "card"
	TypeBid             = "bid"
	TypeAuctioneerBid   = "auctioneer-bid"
	TypeAuctionComplete = "auction-complete"
	TypeResponse        = "response"
	TypeChallenge       = "challenge"
	TypePayment         = "payment"
	TypeUsername        = "username"
	TypeGameOver        = "game-over"
)

type Prompt struct {
	Message string `json:"message"`
}

type CardPayload struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// BidBroadcast announces the current high bid to everyone.
type BidBroadcast struct {
	Bid    int    `json:"bid"`
	Player string `json:"player"`
}

// BidPayload is sent by bidders and, as auctioneer-bid, by the auctioneer.
type BidPayload struct {
	Amount int `json:"amount"`
}

type AuctionComplete struct {
	BidWinner string `json:"bidwinner"`
	Bid       int    `json:"bid"`
}

type ChallengePayload struct {
	Player string `json:"player"`
	Card   string `json:"card"`
}

type UsernamePayload struct {
	Username string `json:"username"`
}
