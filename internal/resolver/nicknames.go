package resolver

// NicknameTable maps a nickname to its formal first name. Lookups are
// bidirectional: "mike" matches "michael" and "michael" matches "mike".
// The table is injected at construction so tests can substitute fixtures.
type NicknameTable map[string]string

// Equivalent reports whether two normalized first-name tokens are
// nickname-equivalent in either direction.
func (t NicknameTable) Equivalent(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return t[a] == b || t[b] == a
}

// DefaultNicknames returns the built-in nickname table used in
// production.
func DefaultNicknames() NicknameTable {
	return NicknameTable{
		"abby":  "abigail",
		"alex":  "alexander",
		"andy":  "andrew",
		"beth":  "elizabeth",
		"bill":  "william",
		"bob":   "robert",
		"cathy": "catherine",
		"chris": "christopher",
		"chuck": "charles",
		"dan":   "daniel",
		"dave":  "david",
		"deb":   "deborah",
		"dick":  "richard",
		"ed":    "edward",
		"fred":  "frederick",
		"greg":  "gregory",
		"jen":   "jennifer",
		"jim":   "james",
		"joe":   "joseph",
		"john":  "jonathan",
		"kate":  "katherine",
		"ken":   "kenneth",
		"liz":   "elizabeth",
		"matt":  "matthew",
		"meg":   "margaret",
		"mike":  "michael",
		"nick":  "nicholas",
		"pat":   "patricia",
		"pete":  "peter",
		"rick":  "richard",
		"rob":   "robert",
		"ron":   "ronald",
		"sam":   "samuel",
		"steve": "steven",
		"sue":   "susan",
		"ted":   "theodore",
		"tim":   "timothy",
		"tom":   "thomas",
		"tony":  "anthony",
		"will":  "william",
	}
}
