package utilities

import (
	"testing"

	"github.com/bwmarrin/snowflake"
)

func TestRequestIDUsesConfiguredNode(t *testing.T) {
	SetSnowflakeNode(42)
	id, err := snowflake.ParseString(NewRequestID())
	if err != nil {
		t.Fatalf("request id is not a snowflake: %v", err)
	}
	if id.Node() != 42 {
		t.Fatalf("expected node 42, got %d", id.Node())
	}
	if NewRequestID() == NewRequestID() {
		t.Fatalf("request ids repeat")
	}
}
