package talisman

// Builtins returns the talismans shipped with the server.
func Builtins() []Definition {
	return []Definition{
		{ID: "attack_speed", Strength: Common, Attribute: "generic.attack_speed"},
		{ID: "swiftness", Strength: Rare, Attribute: "generic.movement_speed"},
		{ID: "vitality", Strength: Legendary, Attribute: "generic.max_health"},
	}
}
