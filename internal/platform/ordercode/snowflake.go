// Package ordercode issues numeric order codes that stay below 2^53 so every JSON client and the
// payment provider can carry them without precision loss.
package ordercode

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

const (
	nodeBits = 4
	stepBits = 8
	// MaxNode is the highest node id supported by the layout.
	MaxNode = 1<<nodeBits - 1
	// epochMillis is 2024-01-01T00:00:00Z; 41 bits of milliseconds last until ~2093.
	epochMillis = 1704067200000
)

var configure sync.Once

// Generator produces time-ordered codes unique per node.
type Generator struct {
	node *snowflake.Node
}

// New returns a generator for node in [0, MaxNode].
func New(node int64) (*Generator, error) {
	if node < 0 || node > MaxNode {
		return nil, fmt.Errorf("order code node must be between 0 and %d, got %d", MaxNode, node)
	}
	configure.Do(func() {
		snowflake.NodeBits = nodeBits
		snowflake.StepBits = stepBits
		snowflake.Epoch = epochMillis
	})
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, err
	}
	return &Generator{node: n}, nil
}

// Next returns a fresh positive code.
func (g *Generator) Next() int64 {
	return g.node.Generate().Int64()
}
