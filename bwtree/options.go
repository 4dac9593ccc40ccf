package bwtree

// Options configures the tree engine's structural-modification thresholds
// and which external page store backs it.
type Options struct {
	// DataDeltaLength is the chain length at which a node triggers
	// consolidation. Per the external interfaces' u8 chain-length field,
	// this must stay comfortably below 255; Open clamps values above
	// maxDataDeltaLength down to it.
	DataDeltaLength uint8
	// DataNodeSize is the leaf base-page byte threshold triggering split.
	DataNodeSize int
	// IndexNodeSize is the index base-page byte threshold triggering split.
	IndexNodeSize int
}

// maxDataDeltaLength bounds DataDeltaLength well under the 255 a u8 chain
// length field can represent, per this module's resolution of the open
// question about chain-length saturation: consolidation is forced long
// before the field could overflow.
const maxDataDeltaLength = 64

// DefaultOptions returns sane defaults for a freshly opened tree.
func DefaultOptions() Options {
	return Options{
		DataDeltaLength: 8,
		DataNodeSize:    4096,
		IndexNodeSize:   4096,
	}
}

func (o Options) normalized() Options {
	if o.DataDeltaLength == 0 {
		o.DataDeltaLength = DefaultOptions().DataDeltaLength
	}
	if o.DataDeltaLength > maxDataDeltaLength {
		o.DataDeltaLength = maxDataDeltaLength
	}
	if o.DataNodeSize <= 0 {
		o.DataNodeSize = DefaultOptions().DataNodeSize
	}
	if o.IndexNodeSize <= 0 {
		o.IndexNodeSize = DefaultOptions().IndexNodeSize
	}
	return o
}
