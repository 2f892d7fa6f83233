package mtproto

import (
	"bytes"
	"testing"

	"github.com/xurwy/tgserver/mtproto/crypto"
)

func testAuthKey() *crypto.AuthKey {
	key := make([]byte, 256)
	for i := range key {
		key[i] = byte(i * 7)
	}
	return crypto.NewAuthKeyFromBytes(key)
}

func TestPlainMessageRoundtrip(t *testing.T) {
	h := NewSendHelper(crypto.DirectionClientToServer)
	body := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	packet := h.PackPlainMessage(0x5555, body)
	msgId, got, err := UnpackPlainMessage(packet)
	if err != nil {
		t.Fatal(err)
	}
	if msgId != 0x5555 || !bytes.Equal(got, body) {
		t.Errorf("got msgId %d body %v", msgId, got)
	}
}

func TestUnpackPlainRejectsAuthKeyId(t *testing.T) {
	x := NewEncodeBuf(32)
	x.Long(1)
	x.Long(2)
	x.Int(0)
	if _, _, err := UnpackPlainMessage(x.GetBuf()); err == nil {
		t.Fatal("expected non-zero auth_key_id error")
	}
}

func TestEncryptedMessageRoundtrip(t *testing.T) {
	key := testAuthKey()
	sender := NewSendHelper(crypto.DirectionClientToServer)
	receiver := NewSendHelper(crypto.DirectionServerToClient)
	if err := sender.SetAuthKey(key); err != nil {
		t.Fatal(err)
	}
	if err := receiver.SetAuthKey(key); err != nil {
		t.Fatal(err)
	}
	sender.SetServerSalt(0x1234)

	body := []byte("the quick brown fox.")
	packet, err := sender.EncryptMessage(0x77, 0x1000, 1, body)
	if err != nil {
		t.Fatal(err)
	}
	keyId, err := EnvelopeAuthKeyId(packet)
	if err != nil || keyId != key.AuthKeyId() {
		t.Fatalf("envelope key id 0x%x, err %v", keyId, err)
	}
	m, err := receiver.DecryptMessage(packet)
	if err != nil {
		t.Fatal(err)
	}
	if m.Salt != 0x1234 || m.SessionId != 0x77 || m.MsgId != 0x1000 || m.Seqno != 1 {
		t.Errorf("header: %+v", m)
	}
	if !bytes.Equal(m.Body, body) {
		t.Errorf("body mismatch: %q", m.Body)
	}
}

func TestTamperedEnvelopeFails(t *testing.T) {
	key := testAuthKey()
	sender := NewSendHelper(crypto.DirectionServerToClient)
	receiver := NewSendHelper(crypto.DirectionClientToServer)
	_ = sender.SetAuthKey(key)
	_ = receiver.SetAuthKey(key)

	packet, err := sender.EncryptMessage(1, 2, 0, []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	// Flip one ciphertext bit per position and expect msg_key
	// verification to reject every variant.
	for _, pos := range []int{24, 40, len(packet) - 1} {
		tampered := append([]byte{}, packet...)
		tampered[pos] ^= 0x01
		if _, err := receiver.DecryptMessage(tampered); err == nil {
			t.Errorf("tampering byte %d went unnoticed", pos)
		}
	}
	// Flipping a msg_key bit must fail too.
	tampered := append([]byte{}, packet...)
	tampered[8] ^= 0x80
	if _, err := receiver.DecryptMessage(tampered); err == nil {
		t.Error("tampered msg_key went unnoticed")
	}
}

func TestAuthKeyImmutable(t *testing.T) {
	h := NewSendHelper(crypto.DirectionServerToClient)
	if err := h.SetAuthKey(testAuthKey()); err != nil {
		t.Fatal(err)
	}
	other := make([]byte, 256)
	other[0] = 0xff
	if err := h.SetAuthKey(crypto.NewAuthKeyFromBytes(other)); err == nil {
		t.Fatal("expected rebinding to fail")
	}
	// Rebinding the same key id is allowed.
	if err := h.SetAuthKey(testAuthKey()); err != nil {
		t.Fatalf("same-key rebind: %v", err)
	}
}

func TestDecryptRejectsForeignKeyId(t *testing.T) {
	sender := NewSendHelper(crypto.DirectionClientToServer)
	_ = sender.SetAuthKey(testAuthKey())
	packet, err := sender.EncryptMessage(1, 2, 0, []byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	other := make([]byte, 256)
	other[3] = 9
	receiver := NewSendHelper(crypto.DirectionServerToClient)
	_ = receiver.SetAuthKey(crypto.NewAuthKeyFromBytes(other))
	if _, err := receiver.DecryptMessage(packet); err == nil {
		t.Fatal("expected auth_key_id mismatch")
	}
}
