package tsinfer

// NodeID is a dense node identifier assigned in insertion order, starting
// at 0. The TODO in tsinfer.h ("rename ancestor_id_t to node_id_t
// uniformly") is resolved by using this single type everywhere a node is
// referenced, whether it denotes an ancestor, a sample, or an internal
// tree node.
type NodeID int32

// SiteID is a dense site identifier in [0, S).
type SiteID int32

// Allele is a small integer allele code. 0 and 1 are the two alleles in
// the biallelic base case; MissingAllele marks an unknown observation.
type Allele int8

// MutationID is a dense mutation identifier in insertion order.
type MutationID int32

const (
	// NullNode is the sentinel parent of a root, or the sentinel child
	// of an edge that does not exist.
	NullNode NodeID = -1
	// MissingAllele marks an unknown or unobserved allele.
	MissingAllele Allele = -1
	// NullMutation is the sentinel "no parent mutation" value used in
	// the dump/restore mutation array layout (§6).
	NullMutation MutationID = -1
)

// IsSample reports whether flags has the IS_SAMPLE bit set. flags is the
// only recognized node bitfield (§3).
func IsSample(flags uint32) bool {
	return flags&NodeFlagSample != 0
}

// NodeFlagSample is the single recognized bit in a node's flags field.
const NodeFlagSample uint32 = 1 << 0
