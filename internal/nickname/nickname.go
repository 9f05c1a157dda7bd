// Package nickname derives stable pseudo-anonymous labels such as
// "VelvetRaven" from a seed. The mapping is a pure function of the seed.
package nickname

import "github.com/cespare/xxhash/v2"

// Adjectives and Nouns are ordered; reordering them changes every nickname.
var (
	Adjectives = [...]string{
		"Silent", "Golden", "Velvet", "Hollow", "Amber",
		"Neon", "Frost", "Crimson", "Lunar", "Obsidian",
		"Jade", "Azure", "Scarlet", "Ivory", "Shadow",
		"Silver", "Bronze", "Ember", "Opal", "Cobalt",
	}
	Nouns = [...]string{
		"Fox", "Raven", "Wolf", "Lynx", "Crane",
		"Moth", "Viper", "Hawk", "Otter", "Stag",
		"Owl", "Crow", "Bear", "Hare", "Finch",
		"Drake", "Swan", "Kite", "Mink", "Puma",
	}
)

// Generate maps seed to an adjective+noun pair. The adjective is picked from
// the low 32 bits of the hash and the noun from the high 32 bits.
func Generate(seed string) string {
	h := xxhash.Sum64String(seed)
	lo := uint32(h)
	hi := uint32(h >> 32)
	return Adjectives[lo%uint32(len(Adjectives))] + Nouns[hi%uint32(len(Nouns))]
}

// Seed builds the canonical seed for a participant on a match date.
func Seed(participantID, date string) string {
	return participantID + "-" + date
}

// For returns the nickname of participantID on date.
func For(participantID, date string) string {
	return Generate(Seed(participantID, date))
}
