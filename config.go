package tsinfer

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// BuilderConfig parameterizes a treeseq.Builder. It is loaded the way the
// teacher loads SingleHostConfig/EvoEpiConfig: a tagged struct decoded
// from TOML, validated once before use.
type BuilderConfig struct {
	// EdgesChunkSize sets how many slots the builder's edge and mutation
	// object heaps grow by on each expansion (tsinfer.h
	// edges_chunk_size), amortizing allocation cost instead of growing
	// to the exact fit on every add_path/add_mutations call.
	// NodesChunkSize (tsinfer.h nodes_chunk_size) is validated but not
	// used: the node table is a plain growable slice.
	NodesChunkSize int `toml:"nodes_chunk_size"`
	EdgesChunkSize int `toml:"edges_chunk_size"`

	// ResolveSharedRecombs mirrors the TSI_RESOLVE_SHARED_RECOMBS flag:
	// when true, identical recombination breakpoints across multiple
	// children referring to the same parent pair are coalesced by
	// inserting a synthetic intermediate node.
	ResolveSharedRecombs bool `toml:"resolve_shared_recombs"`

	validated bool
}

// Validate checks the validity of the configuration. It must be called,
// and must return nil, before the config is handed to treeseq.NewBuilder.
func (c *BuilderConfig) Validate() error {
	if c.NodesChunkSize <= 0 {
		return newOpError("BuilderConfig.Validate", ErrArgument,
			"nodes_chunk_size must be positive, got %d", c.NodesChunkSize)
	}
	if c.EdgesChunkSize <= 0 {
		return newOpError("BuilderConfig.Validate", ErrArgument,
			"edges_chunk_size must be positive, got %d", c.EdgesChunkSize)
	}
	c.validated = true
	return nil
}

// DefaultBuilderConfig returns the configuration the teacher's CLI
// defaults to when no TOML file overrides it.
func DefaultBuilderConfig() *BuilderConfig {
	c := &BuilderConfig{
		NodesChunkSize:       1024,
		EdgesChunkSize:       1024,
		ResolveSharedRecombs: true,
	}
	c.validated = true
	return c
}

// LoadBuilderConfig parses a TOML config file into a BuilderConfig and
// validates it, following LoadSingleHostConfig's shape.
func LoadBuilderConfig(path string) (*BuilderConfig, error) {
	spec := new(BuilderConfig)
	if _, err := toml.DecodeFile(path, spec); err != nil {
		return nil, errors.Wrapf(err, "decoding builder config %q", path)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// MatcherConfig parameterizes an AncestorMatcher: the observation error
// rate(s) and traceback arena sizing.
type MatcherConfig struct {
	// ObservationError is theta, the probability mass assigned to a
	// mismatch at emission time. Exactly one value broadcasts to every
	// site (the spec's scalar theta); a value per site overrides the
	// §9 "observation error as a single scalar" limitation.
	ObservationError []float64 `toml:"observation_error"`

	// TracebackChunkBytes sizes the traceback arena's growth
	// increments.
	TracebackChunkBytes int `toml:"traceback_chunk_bytes"`

	validated bool
}

// Validate checks the validity of the configuration.
func (c *MatcherConfig) Validate() error {
	if len(c.ObservationError) == 0 {
		return newOpError("MatcherConfig.Validate", ErrArgument,
			"observation_error must have at least one entry")
	}
	for i, theta := range c.ObservationError {
		if theta < 0 || theta > 1 {
			return newOpError("MatcherConfig.Validate", ErrArgument,
				"observation_error[%d] = %g out of range [0, 1]", i, theta)
		}
	}
	if c.TracebackChunkBytes <= 0 {
		return newOpError("MatcherConfig.Validate", ErrArgument,
			"traceback_chunk_bytes must be positive, got %d", c.TracebackChunkBytes)
	}
	c.validated = true
	return nil
}

// UniformMatcherConfig returns a MatcherConfig with a single observation
// error rate that the matcher broadcasts across every site.
func UniformMatcherConfig(theta float64) *MatcherConfig {
	c := &MatcherConfig{
		ObservationError:    []float64{theta},
		TracebackChunkBytes: 64 * 1024,
	}
	c.validated = true
	return c
}

// LoadMatcherConfig parses a TOML config file into a MatcherConfig and
// validates it.
func LoadMatcherConfig(path string) (*MatcherConfig, error) {
	spec := new(MatcherConfig)
	if _, err := toml.DecodeFile(path, spec); err != nil {
		return nil, errors.Wrapf(err, "decoding matcher config %q", path)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// ThetaAt returns the per-site observation error, broadcasting the sole
// entry when only one was configured.
func (c *MatcherConfig) ThetaAt(site int) float64 {
	if len(c.ObservationError) == 1 {
		return c.ObservationError[0]
	}
	return c.ObservationError[site]
}
