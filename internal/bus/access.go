package bus

// Access tags a bus transaction's shape so wait-state tables and the DMA/
// CPU can share one cycle-accounting path (spec.md §3 "Bus state").
type Access int

const (
	NonSeq Access = iota
	Seq
)

// Width is the transfer size in bytes.
type Width int

const (
	Width8  Width = 1
	Width16 Width = 2
	Width32 Width = 4
)
