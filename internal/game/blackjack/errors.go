package blackjack

import "errors"

// User input errors. Game state is unchanged when one of these is returned.
var (
	ErrGameActive          = errors.New("a game is already running in this chat")
	ErrNoGame              = errors.New("no game is running in this chat")
	ErrWrongPhase          = errors.New("action is not valid in the current phase")
	ErrAlreadyJoined       = errors.New("already joined")
	ErrGameFull            = errors.New("game is full")
	ErrNotEnoughPlayers    = errors.New("not enough players")
	ErrNotYourTurn         = errors.New("not your turn")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrMoneyAndCollateral  = errors.New("cannot bet money and collateral together")
	ErrNoCollateral        = errors.New("no slave to pledge")
	ErrMustBetFirst        = errors.New("place a bet first")
	ErrInvalidChip         = errors.New("invalid chip")
	ErrJoinDenied          = errors.New("balance too low to join")
)

// ErrNoWagers means every player sat out betting; the round is cancelled.
var ErrNoWagers = errors.New("nobody placed a bet")

// Fatal internal errors. The affected game is cancelled and refunded.
var (
	ErrDeckExhausted = errors.New("deck exhausted")
	ErrBadIndex      = errors.New("player index out of range")
)

// ErrMalformedAction is returned by DecodeAction for data it did not produce.
var ErrMalformedAction = errors.New("malformed action")
