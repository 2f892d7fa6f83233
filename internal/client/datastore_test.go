package client

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/xurwy/tgserver/internal/logutil"
	"github.com/xurwy/tgserver/mtproto"
)

func observedStore() (*DataStore, *observer.ObservedLogs) {
	core, logs := observer.New(zap.WarnLevel)
	logutil.SetRoot(zap.New(core))
	return NewDataStore(), logs
}

func tlUser(id int64, self bool, accessHash int64) *mtproto.TLUser {
	return &mtproto.TLUser{
		Id:         id,
		Self:       self,
		AccessHash: &wrapperspb.Int64Value{Value: accessHash},
		FirstName:  &wrapperspb.StringValue{Value: "u"},
	}
}

func TestChannelMessageKeyNamespacing(t *testing.T) {
	if got, want := ChannelMessageKey(1, 7), uint64(1)<<32|7; got != want {
		t.Errorf("key: got 0x%x want 0x%x", got, want)
	}
	// Channel keys never collide with plain-chat ids, which are used
	// alone: any channel key has a non-zero high word.
	if ChannelMessageKey(1, 7) == 7 {
		t.Error("channel key collided with plain message id")
	}
	if ChannelMessageKey(1, 7) == ChannelMessageKey(2, 7) {
		t.Error("distinct channels share a key")
	}
}

func TestMessageStorageKeySpaces(t *testing.T) {
	s := NewDataStore()
	plain := &mtproto.TLMessage{
		Id:      7,
		PeerId:  &mtproto.TLPeer{Kind: mtproto.PeerUser, Id: 42},
		Message: "plain",
	}
	channel := &mtproto.TLMessage{
		Id:      7,
		PeerId:  &mtproto.TLPeer{Kind: mtproto.PeerChannel, Id: 1},
		Message: "channel",
	}
	s.ProcessMessage(plain)
	s.ProcessMessage(channel)

	got, ok := s.GetMessage(&mtproto.TLPeer{Kind: mtproto.PeerUser, Id: 42}, 7)
	if !ok || got.Message != "plain" {
		t.Errorf("plain lookup: %+v ok=%v", got, ok)
	}
	got, ok = s.GetMessage(&mtproto.TLPeer{Kind: mtproto.PeerChannel, Id: 1}, 7)
	if !ok || got.Message != "channel" {
		t.Errorf("channel lookup: %+v ok=%v", got, ok)
	}
	if _, ok := s.GetMessage(&mtproto.TLPeer{Kind: mtproto.PeerChannel, Id: 2}, 7); ok {
		t.Error("message leaked across channels")
	}
}

func TestIngestIsUpsert(t *testing.T) {
	s := NewDataStore()
	s.ProcessUser(tlUser(5, false, 1))
	updated := tlUser(5, false, 1)
	updated.FirstName = &wrapperspb.StringValue{Value: "renamed"}
	s.ProcessUser(updated)
	got, ok := s.GetUser(5)
	if !ok || got.FirstName.GetValue() != "renamed" {
		t.Errorf("upsert lost update: %+v", got)
	}
}

func TestDuplicateSelfUserWarns(t *testing.T) {
	s, logs := observedStore()
	s.ProcessUser(tlUser(100, true, 1))
	s.ProcessUser(tlUser(200, true, 2))
	found := false
	for _, entry := range logs.All() {
		if strings.Contains(entry.Message, "self user with different id") {
			found = true
		}
	}
	if !found {
		t.Fatal("duplicate self id warning not logged")
	}
	// Non-fatal: the newer value wins.
	if s.SelfUserId() != 200 {
		t.Errorf("self id: got %d", s.SelfUserId())
	}
}

func TestToInputPeerSelfShortcut(t *testing.T) {
	s := NewDataStore()
	s.ProcessUser(tlUser(100, true, 11))
	s.ProcessUser(tlUser(200, false, 22))

	self := s.ToInputPeer(&mtproto.TLPeer{Kind: mtproto.PeerUser, Id: 100})
	if self.Kind != mtproto.InputPeerSelf {
		t.Errorf("self peer: %+v", self)
	}
	other := s.ToInputPeer(&mtproto.TLPeer{Kind: mtproto.PeerUser, Id: 200})
	if other.Kind != mtproto.InputPeerUser || other.AccessHash != 22 {
		t.Errorf("user peer: %+v", other)
	}
	// Idempotent: same input, same resolution.
	again := s.ToInputPeer(&mtproto.TLPeer{Kind: mtproto.PeerUser, Id: 200})
	if *again != *other {
		t.Errorf("resolution not stable: %+v vs %+v", again, other)
	}
}

func TestToInputPeerChannelRequiresAccessHash(t *testing.T) {
	s, logs := observedStore()
	s.ProcessChat(&mtproto.TLChat{
		Channel:    true,
		Id:         300,
		Title:      "ch",
		AccessHash: &wrapperspb.Int64Value{Value: 33},
	})
	ch := s.ToInputPeer(&mtproto.TLPeer{Kind: mtproto.PeerChannel, Id: 300})
	if ch.Kind != mtproto.InputPeerChannel || ch.AccessHash != 33 {
		t.Errorf("channel peer: %+v", ch)
	}
	unknown := s.ToInputPeer(&mtproto.TLPeer{Kind: mtproto.PeerChannel, Id: 999})
	if unknown.Kind != mtproto.InputPeerEmpty {
		t.Errorf("unknown channel resolved: %+v", unknown)
	}
	found := false
	for _, entry := range logs.All() {
		if strings.Contains(entry.Message, "unknown channel") {
			found = true
		}
	}
	if !found {
		t.Error("unknown channel warning not logged")
	}
}

func TestForwardHeaderFromIDPopulated(t *testing.T) {
	s := NewDataStore()
	s.ProcessMessage(&mtproto.TLMessage{
		Id:     9,
		PeerId: &mtproto.TLPeer{Kind: mtproto.PeerUser, Id: 42},
		FwdFrom: &mtproto.TLMessageFwdHeader{
			FromId: &mtproto.TLPeer{Kind: mtproto.PeerUser, Id: 777},
			Date:   1700000000,
		},
		Message: "fwd",
	})
	// When the header carries FromId, the origin peer is exposed.
	from, ok := s.ForwardFromPeer(&mtproto.TLPeer{Kind: mtproto.PeerUser, Id: 42}, 9)
	if !ok || from.Id != 777 || from.Kind != mtproto.PeerUser {
		t.Fatalf("forward origin: %+v ok=%v", from, ok)
	}
	// Without the flag there is no origin to expose.
	s.ProcessMessage(&mtproto.TLMessage{
		Id:      10,
		PeerId:  &mtproto.TLPeer{Kind: mtproto.PeerUser, Id: 42},
		FwdFrom: &mtproto.TLMessageFwdHeader{Date: 1700000000},
		Message: "anon fwd",
	})
	if _, ok := s.ForwardFromPeer(&mtproto.TLPeer{Kind: mtproto.PeerUser, Id: 42}, 10); ok {
		t.Fatal("anonymous forward grew an origin")
	}
}

func TestDialogIngest(t *testing.T) {
	s := NewDataStore()
	s.ProcessDialogs(&mtproto.TLMessagesDialogs{
		Dialogs: []*mtproto.TLDialog{
			{Peer: &mtproto.TLPeer{Kind: mtproto.PeerUser, Id: 5}, TopMessage: 3},
		},
		Messages: []*mtproto.TLMessage{
			{Id: 3, PeerId: &mtproto.TLPeer{Kind: mtproto.PeerUser, Id: 5}, Message: "top"},
		},
		Users: []*mtproto.TLUser{tlUser(5, false, 55)},
	})
	dialogs := s.Dialogs()
	if len(dialogs) != 1 || dialogs[0].Peer.Id != 5 {
		t.Fatalf("dialogs: %+v", dialogs)
	}
	if _, ok := s.GetUser(5); !ok {
		t.Error("dialog user not ingested")
	}
	if m, ok := s.GetMessage(&mtproto.TLPeer{Kind: mtproto.PeerUser, Id: 5}, 3); !ok || m.Message != "top" {
		t.Error("dialog top message not ingested")
	}
}
