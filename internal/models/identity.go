package models

// Identity is the authenticated user scoping every per-user collection.
type Identity struct {
	ID             string `json:"uid"`
	Email          string `json:"email"`
	FullName       string `json:"fullName,omitempty"`
	DisplayName    string `json:"displayName,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	CreatedAt      string `json:"createdAt,omitempty"`
	Level          int    `json:"level"`
	XP             int    `json:"xp"`
}

// Name returns the best available display name.
func (i Identity) Name() string {
	if i.FullName != "" {
		return i.FullName
	}
	if i.DisplayName != "" {
		return i.DisplayName
	}
	for n, c := range i.Email {
		if c == '@' {
			return i.Email[:n]
		}
	}
	return i.Email
}

// MaxLevel is the highest level with an XP threshold.
const MaxLevel = 50

// LevelThreshold returns the total XP at which level ends: 100, 220, 360
// and so on, each step a tenth larger than the last.
func LevelThreshold(level int) int {
	level = min(max(level, 1), MaxLevel)
	return level * 10 * (9 + level)
}

type LevelProgress struct {
	Level   int     `json:"level"`
	XP      int     `json:"xp"`
	Floor   int     `json:"floor"`
	Next    int     `json:"next"`
	Percent float64 `json:"percent"`
}

// Progress places the identity's XP within its current level.
func (i Identity) Progress() LevelProgress {
	level := min(max(i.Level, 1), MaxLevel)
	p := LevelProgress{Level: level, XP: i.XP, Next: LevelThreshold(level)}
	if level > 1 {
		p.Floor = LevelThreshold(level - 1)
	}
	p.Percent = float64(i.XP-p.Floor) / float64(p.Next-p.Floor) * 100
	p.Percent = min(max(p.Percent, 0), 100)
	return p
}
