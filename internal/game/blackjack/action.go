package blackjack

import (
	"fmt"
	"strconv"
	"strings"
)

// ActionPrefix starts every encoded action.
const ActionPrefix = "bj"

// ActionKind names a button press.
type ActionKind string

const (
	ActionJoin             ActionKind = "j"
	ActionHit              ActionKind = "h"
	ActionStand            ActionKind = "s"
	ActionAddChip          ActionKind = "c"
	ActionPledgeCollateral ActionKind = "p"
	ActionResetBet         ActionKind = "r"
	ActionAcceptBet        ActionKind = "a"
)

func (k ActionKind) valid() bool {
	switch k {
	case ActionJoin, ActionHit, ActionStand, ActionAddChip,
		ActionPledgeCollateral, ActionResetBet, ActionAcceptBet:
		return true
	}
	return false
}

// Action is a decoded button press. Amount is only set for ActionAddChip.
type Action struct {
	Kind        ActionKind
	ChatID      int64
	PlayerIndex int
	Amount      int64
}

// Encode renders the action as callback data: bj:<kind>:<chat>:<idx>[:<amount>].
func (a Action) Encode() string {
	s := fmt.Sprintf("%s:%s:%d:%d", ActionPrefix, a.Kind, a.ChatID, a.PlayerIndex)
	if a.Kind == ActionAddChip {
		s += ":" + strconv.FormatInt(a.Amount, 10)
	}
	return s
}

// DecodeAction parses callback data produced by Encode.
func DecodeAction(data string) (Action, error) {
	data = strings.TrimPrefix(data, "\f")
	parts := strings.Split(data, ":")
	if len(parts) < 4 || parts[0] != ActionPrefix {
		return Action{}, ErrMalformedAction
	}
	a := Action{Kind: ActionKind(parts[1])}
	if !a.Kind.valid() {
		return Action{}, ErrMalformedAction
	}

	chatID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Action{}, ErrMalformedAction
	}
	idx, err := strconv.Atoi(parts[3])
	if err != nil || idx < 0 {
		return Action{}, ErrMalformedAction
	}
	a.ChatID, a.PlayerIndex = chatID, idx

	if a.Kind != ActionAddChip {
		if len(parts) != 4 {
			return Action{}, ErrMalformedAction
		}
		return a, nil
	}
	if len(parts) != 5 {
		return Action{}, ErrMalformedAction
	}
	amount, err := strconv.ParseInt(parts[4], 10, 64)
	if err != nil || amount <= 0 {
		return Action{}, ErrMalformedAction
	}
	a.Amount = amount
	return a, nil
}

// IsAction reports whether callback data belongs to the blackjack game.
func IsAction(data string) bool {
	return strings.HasPrefix(strings.TrimPrefix(data, "\f"), ActionPrefix+":")
}
