package server

import (
	"testing"
	"time"

	"github.com/xurwy/tgserver/mtproto"
)

func TestSeqNoParity(t *testing.T) {
	s := NewSession(1, 2)
	if got := s.NextOutSeqNo(false); got != 0 {
		t.Errorf("first service seqno: %d", got)
	}
	if got := s.NextOutSeqNo(true); got != 1 {
		t.Errorf("first content seqno: %d", got)
	}
	if got := s.NextOutSeqNo(false); got != 2 {
		t.Errorf("service after content: %d", got)
	}
	if got := s.NextOutSeqNo(true); got != 3 {
		t.Errorf("second content seqno: %d", got)
	}
	prev := int32(-1)
	for i := 0; i < 100; i++ {
		seq := s.NextOutSeqNo(i%2 == 0)
		if seq < prev {
			t.Fatalf("seqno regressed: %d after %d", seq, prev)
		}
		prev = seq
	}
}

func TestCheckInboundMsgId(t *testing.T) {
	s := NewSession(1, 2)
	now := time.Now()
	first := mtproto.GenerateMessageId()
	if got := s.CheckInboundMsgId(first, now); got != MsgIdOk {
		t.Fatalf("fresh id verdict %d", got)
	}
	if got := s.CheckInboundMsgId(first, now); got != MsgIdReplay {
		t.Errorf("replay verdict %d", got)
	}
	if got := s.CheckInboundMsgId(first-4, now); got != MsgIdRegression {
		t.Errorf("regression verdict %d", got)
	}
	second := mtproto.GenerateMessageId()
	if got := s.CheckInboundMsgId(second, now); got != MsgIdOk {
		t.Errorf("monotonic id verdict %d", got)
	}
	if got := s.CheckInboundMsgId(second+8, now.Add(10*time.Minute)); got != MsgIdTooOld {
		t.Errorf("stale id verdict %d", got)
	}
	tooNew := (now.Add(10 * time.Minute).Unix()) << 32
	if got := s.CheckInboundMsgId(tooNew, now); got != MsgIdTooNew {
		t.Errorf("future id verdict %d", got)
	}
}

func TestPendingAcks(t *testing.T) {
	s := NewSession(1, 2)
	s.AddPendingAck(10)
	s.AddPendingAck(14)
	acks := s.TakePendingAcks()
	if len(acks) != 2 || acks[0] != 10 || acks[1] != 14 {
		t.Fatalf("acks: %v", acks)
	}
	if got := s.TakePendingAcks(); got != nil {
		t.Fatalf("drained twice: %v", got)
	}
}

func TestMarkAnnounced(t *testing.T) {
	s := NewSession(1, 2)
	if s.MarkAnnounced() {
		t.Error("first call must report not yet announced")
	}
	if !s.MarkAnnounced() {
		t.Error("second call must report announced")
	}
}
