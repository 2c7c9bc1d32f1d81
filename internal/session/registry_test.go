package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndSnapshot(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	reg.Register("a", "Alice")
	reg.Register("b", "Bob")

	req.Equal(2, reg.Len())
	req.True(reg.Contains("a"))
	req.Equal([]RosterEntry{
		{ID: "a", Name: "Alice"},
		{ID: "b", Name: "Bob"},
	}, reg.Snapshot())
}

func TestRegistryRenameKeepsPosition(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	reg.Register("a", "Alice")
	reg.Register("b", "Bob")
	reg.Register("a", "Alicia")

	req.Equal(2, reg.Len())
	req.Equal([]RosterEntry{
		{ID: "a", Name: "Alicia"},
		{ID: "b", Name: "Bob"},
	}, reg.Snapshot())
}

func TestRegistryRemove(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	reg.Register("a", "Alice")
	reg.Register("b", "Bob")

	req.True(reg.Remove("a"))
	req.False(reg.Contains("a"))
	req.Equal([]RosterEntry{{ID: "b", Name: "Bob"}}, reg.Snapshot())

	// Removing twice is a no-op, not an error.
	req.False(reg.Remove("a"))
	req.Equal(1, reg.Len())

	req.False(reg.Remove("never-registered"))
}

func TestRegistrySnapshotIsPointInTime(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	reg.Register("a", "Alice")
	snap := reg.Snapshot()
	reg.Register("b", "Bob")

	req.Equal([]RosterEntry{{ID: "a", Name: "Alice"}}, snap)
}

func TestRegistryDuplicateNamesAllowed(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	reg.Register("a", "DJ")
	reg.Register("b", "DJ")

	req.Equal([]RosterEntry{
		{ID: "a", Name: "DJ"},
		{ID: "b", Name: "DJ"},
	}, reg.Snapshot())
}
