package blackjack

import "sync"

// Registry holds at most one live game per chat. It also tracks users tied
// up in an accepted slave pledge, as owner or as collateral, until the game ends.
type Registry struct {
	mu      sync.RWMutex
	games   map[int64]*Game
	pledged map[int64]*Game
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		games:   make(map[int64]*Game),
		pledged: make(map[int64]*Game),
	}
}

// Create registers a new game for chatID, or fails with ErrGameActive
// leaving the running game untouched.
func (r *Registry) Create(chatID, initiatorID int64, opts Options) (*Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.games[chatID]; ok {
		return nil, ErrGameActive
	}
	g := newGame(chatID, initiatorID, opts)
	r.games[chatID] = g
	return g, nil
}

// Get returns the live game for chatID.
func (r *Registry) Get(chatID int64) (*Game, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[chatID]
	return g, ok
}

// End removes g if it is still the game registered for chatID.
// Ending an absent or replaced game is a no-op.
func (r *Registry) End(chatID int64, g *Game) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, pg := range r.pledged {
		if pg == g {
			delete(r.pledged, id)
		}
	}
	if cur, ok := r.games[chatID]; ok && cur == g {
		delete(r.games, chatID)
		return true
	}
	return false
}

// hold marks users as tied to g's pot.
func (r *Registry) hold(g *Game, ids ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.pledged[id] = g
	}
}

func (r *Registry) release(g *Game, ids ...int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		if r.pledged[id] == g {
			delete(r.pledged, id)
		}
	}
}

// Pledged reports whether userID is a pledging owner or a pledged slave in a
// live game. Their ownership record is out of the market until the game settles.
func (r *Registry) Pledged(userID int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.pledged[userID]
	return ok
}

// IsCurrent reports whether g is the game registered for chatID.
func (r *Registry) IsCurrent(chatID int64, g *Game) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.games[chatID] == g
}

// Count returns the number of live games.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}

// Games returns a snapshot of the live games.
func (r *Registry) Games() []*Game {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Game, 0, len(r.games))
	for _, g := range r.games {
		out = append(out, g)
	}
	return out
}
