package server

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistryIndexesAllThreeKeys(t *testing.T) {
	h := newHarness(nil)
	session := h.factory.CreatePvPGame("w", "b", "alice", "bob")
	h.registry.Add(session)

	require.Equal(t, session, h.registry.ByID(session.ID))
	require.Equal(t, session, h.registry.ByConn("w"))
	require.Equal(t, session, h.registry.ByConn("b"))
	require.Equal(t, session.ID, h.registry.GameIDByUsername("alice"))
	require.Equal(t, session.ID, h.registry.GameIDByUsername("bob"))
}

func TestRegistryRemoveByIDClearsEverything(t *testing.T) {
	h := newHarness(nil)
	session := h.factory.CreatePvPGame("w", "b", "alice", "bob")
	h.registry.Add(session)

	h.registry.RemoveByID(session.ID)

	require.Nil(t, h.registry.ByID(session.ID))
	require.Nil(t, h.registry.ByConn("w"))
	require.Nil(t, h.registry.ByConn("b"))
	require.Empty(t, h.registry.GameIDByUsername("alice"))
	require.Empty(t, h.registry.GameIDByUsername("bob"))
}

func TestRegistryAssociateConnForRejoin(t *testing.T) {
	h := newHarness(nil)
	session := h.factory.CreatePvPGame("w", "b", "alice", "bob")
	h.registry.Add(session)

	h.registry.DisassociateConn("w")
	require.Nil(t, h.registry.ByConn("w"))

	// The username index keeps pointing at the game so auto-rejoin works.
	require.Equal(t, session.ID, h.registry.GameIDByUsername("alice"))

	h.registry.AssociateConn("w2", session.ID)
	require.Equal(t, session, h.registry.ByConn("w2"))
}

func TestRegistryDisassociateUnknownConn(t *testing.T) {
	h := newHarness(nil)
	require.Empty(t, h.registry.DisassociateConn("ghost"))
}

func TestRegistryDoubleAddIgnored(t *testing.T) {
	h := newHarness(nil)
	session := h.factory.CreatePvPGame("w", "b", "alice", "bob")
	h.registry.Add(session)
	h.registry.Add(session)
	require.Equal(t, session, h.registry.ByID(session.ID))
}
