package world

import "sort"

// PlayerInfo holds in-memory data for a player currently online.
// Accessed only from the game loop goroutine, no locks needed.
type PlayerInfo struct {
	ID    string // stable player identity (UUID string)
	Name  string
	World string // current world name

	Inv        *Inventory
	OpenWindow *Window // nil = no container open

	attributes map[string]*AttributeInstance
}

// NewPlayer creates a player standing in worldName with an empty inventory
// and their own inventory window open.
func NewPlayer(id, name, worldName string) *PlayerInfo {
	return &PlayerInfo{
		ID:         id,
		Name:       name,
		World:      worldName,
		Inv:        NewInventory(),
		OpenWindow: &Window{ID: PlayerInventoryWindow, Kind: "player", Holder: id},
		attributes: make(map[string]*AttributeInstance),
	}
}

// Attribute returns the player's attribute instance for key, creating it
// with the host default base value on first use.
func (p *PlayerInfo) Attribute(key string) *AttributeInstance {
	if a, ok := p.attributes[key]; ok {
		return a
	}
	a := NewAttributeInstance(key, DefaultBase(key))
	p.attributes[key] = a
	return a
}

// AttributeKeys lists attribute keys that have been materialised, sorted.
func (p *PlayerInfo) AttributeKeys() []string {
	keys := make([]string, 0, len(p.attributes))
	for k := range p.attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// State tracks all players currently online.
// Single-goroutine access only (game loop).
type State struct {
	players map[string]*PlayerInfo
}

func NewState() *State {
	return &State{
		players: make(map[string]*PlayerInfo),
	}
}

// AddPlayer registers a player in the world.
func (s *State) AddPlayer(p *PlayerInfo) {
	s.players[p.ID] = p
}

// RemovePlayer removes a player and returns it (nil if absent).
func (s *State) RemovePlayer(id string) *PlayerInfo {
	p := s.players[id]
	delete(s.players, id)
	return p
}

// Player looks up an online player.
func (s *State) Player(id string) (*PlayerInfo, bool) {
	p, ok := s.players[id]
	return p, ok
}

// WorldOf returns the world a player is currently in.
func (s *State) WorldOf(id string) (string, bool) {
	p, ok := s.players[id]
	if !ok {
		return "", false
	}
	return p.World, true
}

// PlayerCount returns the number of online players.
func (s *State) PlayerCount() int {
	return len(s.players)
}

// AllPlayers calls fn for each online player in ID order.
func (s *State) AllPlayers(fn func(*PlayerInfo)) {
	ids := make([]string, 0, len(s.players))
	for id := range s.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fn(s.players[id])
	}
}
