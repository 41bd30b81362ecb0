package resolver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kmerritt/scorecard/internal/types"
)

// ErrDuplicateRosterName signals two roster agents whose names collapse
// to the same normalized form. This is a roster configuration error the
// caller must fix; the resolver never silently picks one of them.
var ErrDuplicateRosterName = errors.New("duplicate normalized roster name")

const (
	maxEditDistance = 2
	maxSuggestions  = 3
)

// Config tunes resolver behavior
type Config struct {
	// AcceptConfidence is the minimum fuzzy-match confidence treated
	// as a match. Defaults to 70.
	AcceptConfidence int
	// BatchWorkers bounds ResolveBatch parallelism. Defaults to 8.
	BatchWorkers int
}

// Resolver maps free-text names to canonical agent identities
type Resolver struct {
	nicknames        NicknameTable
	acceptConfidence int
	batchWorkers     int
	logger           zerolog.Logger
}

// New creates a Resolver with the given nickname table
func New(cfg Config, nicknames NicknameTable, logger zerolog.Logger) *Resolver {
	if cfg.AcceptConfidence <= 0 {
		cfg.AcceptConfidence = 70
	}
	if cfg.BatchWorkers <= 0 {
		cfg.BatchWorkers = 8
	}
	return &Resolver{
		nicknames:        nicknames,
		acceptConfidence: cfg.AcceptConfidence,
		batchWorkers:     cfg.BatchWorkers,
		logger:           logger.With().Str("component", "resolver").Logger(),
	}
}

// rosterEntry pairs an agent with its precomputed normalized name
type rosterEntry struct {
	norm  string
	agent types.Agent
}

func buildIndex(roster []types.Agent) ([]rosterEntry, error) {
	seen := make(map[string]string, len(roster))
	entries := make([]rosterEntry, 0, len(roster))
	for _, agent := range roster {
		norm := Normalize(agent.CanonicalName)
		if norm == "" {
			continue
		}
		if prev, ok := seen[norm]; ok {
			return nil, fmt.Errorf("%w: %q collides with %q", ErrDuplicateRosterName, agent.CanonicalName, prev)
		}
		seen[norm] = agent.CanonicalName
		entries = append(entries, rosterEntry{norm: norm, agent: agent})
	}
	return entries, nil
}

// Resolve maps inputName to a canonical agent. Matching runs in order:
// exact normalized (or "Last, First" reversed) match at confidence 100,
// nickname match on identical last names at 95, then Levenshtein
// distance up to 2 at 100-25*distance. Below the acceptance threshold
// the top candidates are returned as suggestions instead of a match.
func (r *Resolver) Resolve(inputName string, roster []types.Agent) (types.MatchResult, error) {
	entries, err := buildIndex(roster)
	if err != nil {
		return types.MatchResult{}, err
	}
	return r.resolveIndexed(inputName, entries), nil
}

// ResolveBatch resolves each name independently against the same
// read-only roster. Names share no state, so the work is spread across
// a bounded worker pool.
func (r *Resolver) ResolveBatch(ctx context.Context, names []string, roster []types.Agent) (map[string]types.MatchResult, error) {
	entries, err := buildIndex(roster)
	if err != nil {
		return nil, err
	}

	results := make([]types.MatchResult, len(names))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.batchWorkers)
	for i, name := range names {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = r.resolveIndexed(name, entries)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]types.MatchResult, len(names))
	for i, name := range names {
		out[name] = results[i]
	}
	return out, nil
}

func (r *Resolver) resolveIndexed(inputName string, entries []rosterEntry) types.MatchResult {
	normIn := Normalize(inputName)
	if normIn == "" {
		return types.MatchResult{Matched: false, Confidence: 0}
	}
	revIn := Normalize(reverseCommaName(inputName))

	// Exact match against normalized or reversed form
	for _, e := range entries {
		if e.norm == normIn || (revIn != "" && e.norm == revIn) {
			return types.MatchResult{Matched: true, AgentID: e.agent.ID, Confidence: 100}
		}
	}

	// Nickname match: identical last-name tokens plus an equivalent
	// first-name pair
	inFirst, inLast := splitTokens(normIn)
	if revIn != "" {
		// A reversed input already has first/last in natural order
		inFirst, inLast = splitTokens(revIn)
	}
	if inLast != "" {
		for _, e := range entries {
			first, last := splitTokens(e.norm)
			if last == inLast && r.nicknames.Equivalent(first, inFirst) {
				return types.MatchResult{Matched: true, AgentID: e.agent.ID, Confidence: 95}
			}
		}
	}

	// Fuzzy match by edit distance
	type candidate struct {
		entry    rosterEntry
		distance int
	}
	var candidates []candidate
	for _, e := range entries {
		d := levenshtein.ComputeDistance(normIn, e.norm)
		if revIn != "" {
			if rd := levenshtein.ComputeDistance(revIn, e.norm); rd < d {
				d = rd
			}
		}
		if d <= maxEditDistance {
			candidates = append(candidates, candidate{entry: e, distance: d})
		}
	}
	if len(candidates) == 0 {
		return types.MatchResult{Matched: false, Confidence: 0}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].entry.agent.CanonicalName < candidates[j].entry.agent.CanonicalName
	})

	best := candidates[0]
	confidence := 100 - best.distance*25
	if confidence < 0 {
		confidence = 0
	}
	if confidence >= r.acceptConfidence {
		return types.MatchResult{Matched: true, AgentID: best.entry.agent.ID, Confidence: confidence}
	}

	suggestions := make([]types.Suggestion, 0, maxSuggestions)
	for _, c := range candidates {
		if len(suggestions) == maxSuggestions {
			break
		}
		conf := 100 - c.distance*25
		if conf < 0 {
			conf = 0
		}
		suggestions = append(suggestions, types.Suggestion{
			AgentID:       c.entry.agent.ID,
			CanonicalName: c.entry.agent.CanonicalName,
			Distance:      c.distance,
			Confidence:    conf,
		})
	}
	return types.MatchResult{Matched: false, Confidence: confidence, Suggestions: suggestions}
}

// Normalize lowercases a name, strips every non-letter rune and
// collapses runs of whitespace to single spaces.
func Normalize(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// reverseCommaName turns "Last, First" into "First Last". Inputs
// without exactly one comma yield "".
func reverseCommaName(name string) string {
	parts := strings.Split(name, ",")
	if len(parts) != 2 {
		return ""
	}
	last := strings.TrimSpace(parts[0])
	first := strings.TrimSpace(parts[1])
	if last == "" || first == "" {
		return ""
	}
	return first + " " + last
}

// splitTokens returns the first and last whitespace-separated tokens
// of a normalized name. Single-token names report an empty last name.
func splitTokens(norm string) (first, last string) {
	tokens := strings.Fields(norm)
	switch len(tokens) {
	case 0:
		return "", ""
	case 1:
		return tokens[0], ""
	default:
		return tokens[0], tokens[len(tokens)-1]
	}
}
