package tsinfer

// DumpedNode is the flat array layout for a node, field-for-field per §6:
// (flags: uint32, time: f64).
type DumpedNode struct {
	Flags uint32
	Time  float64
}

// DumpedEdge is the flat array layout for an edge, field-for-field per
// §6: (left: i32, right: i32, parent: i32, child: i32).
type DumpedEdge struct {
	Left   SiteID
	Right  SiteID
	Parent NodeID
	Child  NodeID
}

// DumpedMutation is the flat array layout for a mutation, field-for-field
// per §6: (site: i32, node: i32, derived_state: i8, parent: i32).
type DumpedMutation struct {
	Site         SiteID
	Node         NodeID
	DerivedState Allele
	Parent       MutationID
}
