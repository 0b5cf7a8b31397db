package client

import (
	"testing"
	"time"

	"PChat/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func serverMsg(id, from, to, text string, at int) Message {
	return Message{ID: id, SenderID: from, ReceiverID: to, Text: text, CreatedAt: t0.Add(time.Duration(at) * time.Second)}
}

func ids(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func newAliceBob() *Store {
	s := NewStore()
	s.Select("alice", "bob")
	return s
}

func TestBeginSendAppendsPlaceholder(t *testing.T) {
	s := newAliceBob()
	s.Load([]Message{serverMsg("1", "bob", "alice", "yo", 1)})

	tmp, err := s.BeginSend("hi", "")
	require.NoError(t, err)
	assert.True(t, IsOptimistic(tmp.ID))
	assert.True(t, tmp.Optimistic)
	assert.Equal(t, "alice", tmp.SenderID)
	assert.Equal(t, "bob", tmp.ReceiverID)

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, tmp.ID, msgs[1].ID)
}

func TestBeginSendRejects(t *testing.T) {
	s := NewStore()
	_, err := s.BeginSend("hi", "")
	assert.ErrorIs(t, err, ErrNoPeer)

	s.Select("alice", "bob")
	_, err = s.BeginSend("  ", "")
	assert.True(t, errs.ErrArgs.Is(err))
	assert.Zero(t, s.Len())
}

func TestConfirmReplacesInPlace(t *testing.T) {
	s := newAliceBob()
	first, err := s.BeginSend("one", "")
	require.NoError(t, err)
	second, err := s.BeginSend("two", "")
	require.NoError(t, err)

	s.ConfirmSend(first.ID, serverMsg("10", "alice", "bob", "one", 1))

	msgs := s.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, []string{"10", second.ID}, ids(msgs))
	assert.False(t, msgs[0].Optimistic)
	assert.True(t, msgs[1].Optimistic)
}

func TestPushBeforeConfirmKeepsOneEntry(t *testing.T) {
	s := newAliceBob()
	tmp, err := s.BeginSend("hi", "")
	require.NoError(t, err)

	confirmed := serverMsg("10", "alice", "bob", "hi", 1)
	assert.False(t, s.ApplyNewMessage(confirmed), "own message is not a notification")
	s.ConfirmSend(tmp.ID, confirmed)

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "10", msgs[0].ID)
	assert.False(t, msgs[0].Optimistic)
}

func TestIdenticalSendsConfirmedOutOfOrder(t *testing.T) {
	s := newAliceBob()
	a, _ := s.BeginSend("same", "")
	b, _ := s.BeginSend("same", "")

	second := serverMsg("11", "alice", "bob", "same", 2)
	first := serverMsg("10", "alice", "bob", "same", 1)

	s.ApplyNewMessage(second)
	s.ConfirmSend(a.ID, first)
	s.ConfirmSend(b.ID, second)

	assert.ElementsMatch(t, []string{"10", "11"}, ids(s.Messages()))
}

func TestConfirmAfterReloadDoesNotDuplicate(t *testing.T) {
	s := newAliceBob()
	tmp, _ := s.BeginSend("hi", "")
	confirmed := serverMsg("10", "alice", "bob", "hi", 1)

	s.Load([]Message{confirmed})
	s.ConfirmSend(tmp.ID, confirmed)

	assert.Equal(t, []string{"10"}, ids(s.Messages()))
}

func TestFailSendReverts(t *testing.T) {
	s := newAliceBob()
	s.Load([]Message{serverMsg("1", "bob", "alice", "yo", 1)})
	before := s.Messages()

	tmp, _ := s.BeginSend("hi", "")
	assert.True(t, s.FailSend(tmp.ID))
	assert.Equal(t, before, s.Messages())
	assert.False(t, s.FailSend(tmp.ID))
}

func TestApplyNewMessageFilters(t *testing.T) {
	s := newAliceBob()

	assert.True(t, s.ApplyNewMessage(serverMsg("1", "bob", "alice", "hi", 1)))
	assert.False(t, s.ApplyNewMessage(serverMsg("1", "bob", "alice", "hi", 1)), "duplicate")
	assert.False(t, s.ApplyNewMessage(serverMsg("2", "carol", "alice", "psst", 2)), "other conversation")
	assert.False(t, s.ApplyNewMessage(serverMsg(TempIDPrefix+"x", "bob", "alice", "??", 3)))

	assert.Equal(t, []string{"1"}, ids(s.Messages()))
}

func TestApplyNewMessageWithoutPeer(t *testing.T) {
	s := NewStore()
	assert.False(t, s.ApplyNewMessage(serverMsg("1", "bob", "alice", "hi", 1)))
	assert.Zero(t, s.Len())
}

func TestPushedMessagesKeepArrivalOrder(t *testing.T) {
	s := newAliceBob()
	s.ApplyNewMessage(serverMsg("2", "bob", "alice", "b", 5))
	s.ApplyNewMessage(serverMsg("1", "bob", "alice", "a", 1))
	assert.Equal(t, []string{"2", "1"}, ids(s.Messages()))
}

func TestDeletion(t *testing.T) {
	s := newAliceBob()
	s.Load([]Message{
		serverMsg("1", "alice", "bob", "a", 1),
		serverMsg("2", "bob", "alice", "b", 2),
		serverMsg("3", "alice", "bob", "c", 3),
	})

	assert.True(t, s.ApplyDeleted("2"))
	assert.False(t, s.ApplyDeleted("2"), "absent id is fine")
	assert.False(t, s.ApplyDeleted("404"))

	removed, ok := s.Remove("1")
	require.True(t, ok)
	assert.Equal(t, "a", removed.Text)
	_, ok = s.Remove("1")
	assert.False(t, ok)

	assert.Equal(t, []string{"3"}, ids(s.Messages()))
}

func TestLoadOrdersAndFilters(t *testing.T) {
	s := newAliceBob()
	s.Load([]Message{
		serverMsg("3", "alice", "bob", "c", 3),
		serverMsg("1", "bob", "alice", "a", 1),
		serverMsg("x", "carol", "alice", "nope", 2),
		serverMsg("1", "bob", "alice", "a", 1),
	})
	assert.Equal(t, []string{"1", "3"}, ids(s.Messages()))
}

func TestLoadKeepsPendingAndNewerPushes(t *testing.T) {
	s := newAliceBob()
	s.Load([]Message{serverMsg("1", "bob", "alice", "a", 1)})
	tmp, _ := s.BeginSend("pending", "")
	s.ApplyNewMessage(serverMsg("9", "bob", "alice", "late", 100))

	s.Load([]Message{serverMsg("1", "bob", "alice", "a", 1)})

	assert.Equal(t, []string{"1", tmp.ID, "9"}, ids(s.Messages()))
}

func TestLoadIsAuthoritativeForOlderEntries(t *testing.T) {
	s := newAliceBob()
	s.Load([]Message{serverMsg("1", "bob", "alice", "a", 1), serverMsg("5", "bob", "alice", "gone", 5)})

	s.Load([]Message{serverMsg("1", "bob", "alice", "a", 1), serverMsg("6", "alice", "bob", "b", 6)})

	assert.Equal(t, []string{"1", "6"}, ids(s.Messages()))
}

func TestSelectClearsView(t *testing.T) {
	s := newAliceBob()
	s.ApplyNewMessage(serverMsg("1", "bob", "alice", "a", 1))
	tmp, _ := s.BeginSend("hi", "")

	s.Select("alice", "carol")
	assert.Zero(t, s.Len())
	assert.Equal(t, "carol", s.Peer())

	// a confirmation for the old conversation must not leak into this one
	s.ConfirmSend(tmp.ID, serverMsg("10", "alice", "bob", "hi", 1))
	assert.Zero(t, s.Len())

	s.Reset()
	assert.Empty(t, s.Peer())
}
