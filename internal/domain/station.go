package domain

import "time"

// UnassignedStation is the bucket for items whose group no station claims.
const UnassignedStation = "Unassigned"

// KitchenStation is a preparation area that accepts a set of item groups.
type KitchenStation struct {
	ID         string
	Name       string
	Branch     string
	Active     bool
	ItemGroups []StationItemGroup
	CreatedAt  time.Time
}

type StationItemGroup struct {
	ItemGroup string
	Disabled  bool
}

// Accepts reports whether the station is active and has an enabled mapping for group.
func (s *KitchenStation) Accepts(group string) bool {
	if !s.Active {
		return false
	}
	for _, g := range s.ItemGroups {
		if !g.Disabled && g.ItemGroup == group {
			return true
		}
	}
	return false
}
