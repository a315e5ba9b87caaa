// Package matcher is the ancestor matcher (§4.3): the Li-Stephens copying
// HMM solved over the tree treeseq.Builder has accumulated so far. It
// depends on treeseq for the edge indexes and node/site tables it walks,
// and on internal/arena for its own traceback arena.
package matcher

// likelihoodKind tags a node's likelihood state, replacing the original
// header's overloaded float sentinels (CACHE_UNSET, NULL_LIKELIHOOD,
// NONZERO_ROOT_LIKELIHOOD) with a variant that cannot be confused with an
// actual probability.
type likelihoodKind int8

const (
	// likelihoodUnset is the zero value: this node's likelihood has not
	// been explicitly assigned for the current site. Its effective value
	// is 1 at a root (the uniform prior) and its parent's effective
	// value otherwise.
	likelihoodUnset likelihoodKind = iota
	// likelihoodNull marks a node whose value was found, after this
	// site's update, to equal its parent's effective value and was
	// compressed away — removed from explicit tracking, resolved the
	// same way likelihoodUnset is.
	likelihoodNull
	// likelihoodValue holds an explicit value that differs from the
	// node's parent (or, for a root, from the uniform prior of 1).
	likelihoodValue
	// likelihoodNonzeroRoot marks a root whose value is still exactly
	// the uniform default of 1 — kept distinct from likelihoodValue so
	// print_state-style reporting can say "never perturbed" without a
	// floating point comparison against 1.
	likelihoodNonzeroRoot
)

// likelihood is the tagged value a tree node's likelihood status carries
// for one site. The float actually driving the forward-pass recursion
// lives in treeState.current; this type exists purely so compression
// bookkeeping and PrintState have a sentinel-free way to say "explicit,
// null, or default."
type likelihood struct {
	kind  likelihoodKind
	value float64
}

func unsetLikelihood() likelihood { return likelihood{kind: likelihoodUnset} }
func nullLikelihood() likelihood  { return likelihood{kind: likelihoodNull} }

func nonzeroRootLikelihood() likelihood {
	return likelihood{kind: likelihoodNonzeroRoot, value: 1}
}

func valueLikelihood(v float64) likelihood {
	return likelihood{kind: likelihoodValue, value: v}
}

// explicit reports whether this likelihood carries its own value rather
// than inheriting one.
func (l likelihood) explicit() bool {
	return l.kind == likelihoodValue || l.kind == likelihoodNonzeroRoot
}
