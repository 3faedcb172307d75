package utilities

import (
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

var (
	nodeOnce sync.Once
	node     *snowflake.Node
	nodeID   int64 = 1
)

// SetSnowflakeNode sets the node id used for request ids. It must be called
// before the first NewRequestID call to take effect.
func SetSnowflakeNode(id int64) {
	nodeID = id
}

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// NewShortToken returns n lower-case alphanumeric characters taken from a
// fresh KSUID payload. Used where a short random url-safe suffix is needed.
func NewShortToken(n int) string {
	s := strings.ToLower(ksuid.New().String())
	if n <= 0 || n > len(s) {
		return s
	}
	return s[len(s)-n:]
}

// NewRequestID generates a snowflake id string. If the node cannot be
// initialized it falls back to a KSUID.
func NewRequestID() string {
	nodeOnce.Do(func() {
		n, err := snowflake.NewNode(nodeID)
		if err == nil {
			node = n
		}
	})
	if node == nil {
		return NewKSUID()
	}
	return node.Generate().String()
}
