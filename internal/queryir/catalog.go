package queryir

// Table describes one queryable table.
type Table struct {
	Name    string
	Columns []string // Every column, in schema order
}

// Catalog lists the tables a Select may read. It mirrors the store schema.
var Catalog = map[string]Table{
	"games": {
		Name: "games",
		Columns: []string{
			"game_key", "creator", "opponent", "creator_commitment", "joiner_commitment",
			"creator_ready", "joiner_ready", "wager", "status", "outcome", "seq",
		},
	},
	"balances": {
		Name:    "balances",
		Columns: []string{"account", "balance"},
	},
	"events": {
		Name:    "events",
		Columns: []string{"seq", "id", "flow_token", "game_key", "action", "caller", "args", "result"},
	},
	"transfers": {
		Name:    "transfers",
		Columns: []string{"id", "event_seq", "from_account", "to_account", "amount"},
	},
}

// HasColumn reports whether column belongs to t.
func (t Table) HasColumn(column string) bool {
	for _, c := range t.Columns {
		if c == column {
			return true
		}
	}
	return false
}
