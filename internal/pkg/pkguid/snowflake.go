package pkguid

import (
	"crypto/rand"
	"encoding/binary"
	"sync"

	"github.com/bwmarrin/snowflake"
)

// epoch is Mon Dec 01 2025 00:00:00.000 WIB. The snowflake package keeps it in
// a package variable, so it is assigned once before the first node is built.
const epoch = 1764522000000

//nolint:gochecknoglobals // guards the package-level snowflake.Epoch
var setEpoch sync.Once

// Snowflake generates numeric IDs using the Snowflake algorithm. Upload
// records use them as compact, time-sortable file identifiers.
type Snowflake struct {
	node *snowflake.Node
}

func generateRandomNodeID() (int64, error) {
	var nodeID int64
	err := binary.Read(rand.Reader, binary.BigEndian, &nodeID)
	if err != nil {
		return 0, err
	}

	return nodeID & (1<<10 - 1), nil // Limiting to 10 bits for node ID
}

// NewSnowflake constructs a Snowflake generator with a random node ID.
func NewSnowflake() (*Snowflake, error) {
	nodeID, err := generateRandomNodeID()
	if err != nil {
		return nil, err
	}

	setEpoch.Do(func() {
		snowflake.Epoch = epoch
	})

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}

	return &Snowflake{node: node}, nil
}

// Generate returns a new unique numeric ID.
func (s *Snowflake) Generate() int64 {
	return s.node.Generate().Int64()
}
