package session

import (
	"slices"

	"github.com/daviddao/wordweave/pkg/model"
)

// Registry holds the cluster tokens of one session, split into an available
// view and a placed view. Each token lives in exactly one view. Tokens are
// stored by value and every accessor returns copies, so callers can never
// alias the registry's state.
type Registry struct {
	tokens    []model.ClusterToken // indexed by token id
	available []int                // ids, in the order they became available
	placed    []int                // ids, in placement order
}

// NewRegistry creates one Unplaced token per pool entry. A token's id is
// its index in clusters.
func NewRegistry(clusters []string) *Registry {
	r := &Registry{
		tokens:    make([]model.ClusterToken, len(clusters)),
		available: make([]int, len(clusters)),
	}
	for i, text := range clusters {
		r.tokens[i] = model.ClusterToken{ID: i, Text: text}
		r.available[i] = i
	}
	return r
}

// Len returns the number of tokens in the session.
func (r *Registry) Len() int { return len(r.tokens) }

// Get returns the token with the given id.
func (r *Registry) Get(id int) (model.ClusterToken, bool) {
	if id < 0 || id >= len(r.tokens) {
		return model.ClusterToken{}, false
	}
	return r.tokens[id], true
}

// All returns every token ordered by id.
func (r *Registry) All() []model.ClusterToken {
	return slices.Clone(r.tokens)
}

// Available returns the unplaced tokens.
func (r *Registry) Available() []model.ClusterToken { return r.collect(r.available) }

// Placed returns the placed tokens in placement order.
func (r *Registry) Placed() []model.ClusterToken { return r.collect(r.placed) }

func (r *Registry) collect(ids []int) []model.ClusterToken {
	out := make([]model.ClusterToken, len(ids))
	for i, id := range ids {
		out[i] = r.tokens[id]
	}
	return out
}

// AllPlaced reports whether no token is left in the available view.
func (r *Registry) AllPlaced() bool { return len(r.available) == 0 }

// InWord returns the tokens placed in a row, sorted by start cell.
func (r *Registry) InWord(word int) []model.ClusterToken {
	var out []model.ClusterToken
	for _, id := range r.placed {
		if t := r.tokens[id]; t.Pos.Word == word {
			out = append(out, t)
		}
	}
	slices.SortFunc(out, func(a, b model.ClusterToken) int { return a.Pos.Cell - b.Pos.Cell })
	return out
}

// FindByText returns all tokens whose text equals text. Tokens sharing text
// are indistinguishable here; use ids for anything that changes state.
func (r *Registry) FindByText(text string) []model.ClusterToken {
	var out []model.ClusterToken
	for _, t := range r.tokens {
		if t.Text == text {
			out = append(out, t)
		}
	}
	return out
}

// place moves an available token to the placed view. The caller has already
// checked the move is legal.
func (r *Registry) place(id int, pos model.Position) model.ClusterToken {
	r.available = remove(r.available, id)
	r.placed = append(r.placed, id)
	r.tokens[id].Placed = true
	r.tokens[id].Pos = pos
	return r.tokens[id]
}

// unplace moves a placed token back to the end of the available view.
func (r *Registry) unplace(id int) model.ClusterToken {
	r.placed = remove(r.placed, id)
	r.available = append(r.available, id)
	r.tokens[id].Placed = false
	r.tokens[id].Pos = model.Position{}
	return r.tokens[id]
}

func remove(ids []int, id int) []int {
	if i := slices.Index(ids, id); i >= 0 {
		return slices.Delete(ids, i, i+1)
	}
	return ids
}
