package blackjack

// Stake is a slave pledged in place of money.
type Stake struct {
	CollateralID   int64
	CollateralName string
	Price          int64
}

// Player is one seat at the table. It lives only as long as its game.
type Player struct {
	UserID int64
	Name   string

	Hand      []Card
	Score     int
	Bust      bool
	Blackjack bool
	Stand     bool

	// Accepted wager.
	Bet         int64
	Stake       *Stake
	BetAccepted bool
	SatOut      bool

	// Wager being assembled during the betting phase.
	PendingBet   int64
	PendingStake *Stake
}

func (p *Player) take(c Card) {
	p.Hand = append(p.Hand, c)
	p.Score = Score(p.Hand)
}

// Done reports whether the player can no longer act this round.
func (p *Player) Done() bool {
	return p.SatOut || p.Bust || p.Blackjack || p.Stand
}

// Wagered reports whether anything was actually put at risk.
func (p *Player) Wagered() bool {
	return p.Bet > 0 || p.Stake != nil
}

func (p *Player) clearPending() {
	p.PendingBet = 0
	p.PendingStake = nil
}
