package domain

// Palette is the fixed set of display colors assigned to members. Colors
// are handed out in join order: first color not currently in use, cycling
// once the palette is exhausted.
var Palette = []string{
	"#E6194B", // red
	"#3CB44B", // green
	"#4363D8", // blue
	"#F58231", // orange
	"#911EB4", // purple
	"#46F0F0", // cyan
	"#F032E6", // magenta
	"#FFE119", // yellow
}

// Member is a participant in a room. The ID is stable for the lifetime of
// the member's connection; Host marks the single privileged member per room.
type Member struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Host     bool   `json:"host"`
	Color    string `json:"color"`
}

// PickColor returns the first palette color not used by any of the given
// members, falling back to cycling the palette by member count.
func PickColor(members []Member) string {
	used := make(map[string]bool, len(members))
	for _, m := range members {
		used[m.Color] = true
	}
	for _, c := range Palette {
		if !used[c] {
			return c
		}
	}
	return Palette[len(members)%len(Palette)]
}
