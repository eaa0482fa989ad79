package onlyconnect

// Team is one scoring side of a room. Only-Connect play holds either one or
// two of these; unlike the generic room/registry machinery, Team is game
// state and lives here rather than in the transport layer.
type Team struct {
	ID    string
	Name  string
	Score int
}

// Json is the wire view of a team's public identity and score.
func (t *Team) Json() map[string]any {
	return map[string]any{
		"team_id": t.ID,
		"name":    t.Name,
		"score":   t.Score,
	}
}
