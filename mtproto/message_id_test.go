package mtproto

import (
	"testing"
	"time"
)

func TestMessageIdsStrictlyIncreasing(t *testing.T) {
	prev := GenerateMessageId()
	for i := 0; i < 10000; i++ {
		id := GenerateMessageId()
		if id <= prev {
			t.Fatalf("id %d not above %d", id, prev)
		}
		prev = id
	}
}

func TestMessageIdOriginBits(t *testing.T) {
	if got := GenerateMessageId() % 4; got != MsgIDModClient {
		t.Errorf("client id mod 4 = %d", got)
	}
	if got := GenerateServerMessageId(MsgIDModServerReply) % 4; got != MsgIDModServerReply {
		t.Errorf("reply id mod 4 = %d", got)
	}
	if got := GenerateServerMessageId(MsgIDModServerUpdate) % 4; got != MsgIDModServerUpdate {
		t.Errorf("update id mod 4 = %d", got)
	}
}

func TestMessageIdCarriesTime(t *testing.T) {
	before := time.Now().Add(-2 * time.Second)
	id := GenerateMessageId()
	after := time.Now().Add(2 * time.Second)
	ts := MsgIDTime(id)
	if ts.Before(before) || ts.After(after) {
		t.Errorf("id time %v outside [%v, %v]", ts, before, after)
	}
}
