package mtproto

import (
	"encoding/binary"

	"github.com/go-faster/errors"

	"github.com/xurwy/tgserver/mtproto/crypto"
)

// SendHelper owns the auth key and server salt for one connection and
// builds/opens the MTProto envelopes. Before the handshake completes it
// only frames plaintext messages (auth_key_id = 0).
type SendHelper struct {
	dir     crypto.Direction // direction of messages this side sends
	authKey *crypto.AuthKey
	salt    int64
}

// EncryptedMessage is the decrypted inner layout of an authenticated
// packet.
type EncryptedMessage struct {
	Salt      int64
	SessionId int64
	MsgId     int64
	Seqno     int32
	Body      []byte
}

func NewSendHelper(dir crypto.Direction) *SendHelper {
	return &SendHelper{dir: dir}
}

// SetAuthKey binds the key; an established key is immutable, rebinding
// a different key is an error.
func (h *SendHelper) SetAuthKey(k *crypto.AuthKey) error {
	if h.authKey != nil && h.authKey.AuthKeyId() != k.AuthKeyId() {
		return errors.New("send helper: auth key already bound")
	}
	h.authKey = k
	return nil
}

func (h *SendHelper) HasAuthKey() bool {
	return h.authKey != nil
}

func (h *SendHelper) AuthKey() *crypto.AuthKey {
	return h.authKey
}

func (h *SendHelper) AuthKeyId() int64 {
	if h.authKey == nil {
		return 0
	}
	return h.authKey.AuthKeyId()
}

func (h *SendHelper) SetServerSalt(salt int64) {
	h.salt = salt
}

func (h *SendHelper) ServerSalt() int64 {
	return h.salt
}

// PackPlainMessage frames an unencrypted handshake message:
// auth_key_id=0, message_id, length, body.
func (h *SendHelper) PackPlainMessage(msgId int64, body []byte) []byte {
	x := NewEncodeBuf(20 + len(body))
	x.Long(0)
	x.Long(msgId)
	x.Int(int32(len(body)))
	x.Bytes(body)
	return x.GetBuf()
}

// UnpackPlainMessage opens an unencrypted frame, checking the zero
// auth_key_id.
func UnpackPlainMessage(packet []byte) (msgId int64, body []byte, err error) {
	d := NewDecodeBuf(packet)
	if d.Long() != 0 {
		return 0, nil, errors.New("plain message: non-zero auth_key_id")
	}
	msgId = d.Long()
	n := d.Int()
	body = d.Bytes(int(n))
	if err = d.GetError(); err != nil {
		return 0, nil, errors.Wrap(err, "plain message")
	}
	return msgId, body, nil
}

// EncryptMessage seals a message body into the full envelope
// auth_key_id ‖ msg_key ‖ ciphertext.
func (h *SendHelper) EncryptMessage(sessionId, msgId int64, seqno int32, body []byte) ([]byte, error) {
	if h.authKey == nil {
		return nil, errors.New("send helper: no auth key")
	}
	inner := NewEncodeBuf(32 + len(body))
	inner.Long(h.salt)
	inner.Long(sessionId)
	inner.Long(msgId)
	inner.Int(seqno)
	inner.Int(int32(len(body)))
	inner.Bytes(body)
	msgKey, ciphertext, err := h.authKey.AesIgeEncrypt(inner.GetBuf(), h.dir)
	if err != nil {
		return nil, err
	}
	x := NewEncodeBuf(24 + len(ciphertext))
	x.Long(h.authKey.AuthKeyId())
	x.Bytes(msgKey)
	x.Bytes(ciphertext)
	return x.GetBuf(), nil
}

// DecryptMessage opens a received envelope, verifying the auth_key_id
// and the recomputed msg_key.
func (h *SendHelper) DecryptMessage(packet []byte) (*EncryptedMessage, error) {
	if h.authKey == nil {
		return nil, errors.New("send helper: no auth key")
	}
	if len(packet) < 24 {
		return nil, errors.New("envelope too short")
	}
	keyId := int64(binary.LittleEndian.Uint64(packet[:8]))
	if keyId != h.authKey.AuthKeyId() {
		return nil, errors.Errorf("envelope auth_key_id 0x%016x does not match bound key", uint64(keyId))
	}
	msgKey := packet[8:24]
	padded, err := h.authKey.AesIgeDecrypt(msgKey, packet[24:], h.peerDirection())
	if err != nil {
		return nil, err
	}
	d := NewDecodeBuf(padded)
	m := &EncryptedMessage{
		Salt:      d.Long(),
		SessionId: d.Long(),
		MsgId:     d.Long(),
		Seqno:     d.Int(),
	}
	n := d.Int()
	if err := d.GetError(); err != nil {
		return nil, err
	}
	if int(n) < 0 || int(n) > d.Len() {
		return nil, errors.New("envelope: bad message_data_length")
	}
	if pad := d.Len() - int(n); pad < 12 || pad > 1024 {
		return nil, errors.Errorf("envelope: bad padding length %d", pad)
	}
	m.Body = d.Bytes(int(n))
	return m, d.GetError()
}

func (h *SendHelper) peerDirection() crypto.Direction {
	if h.dir == crypto.DirectionClientToServer {
		return crypto.DirectionServerToClient
	}
	return crypto.DirectionClientToServer
}

// EnvelopeAuthKeyId peeks the routing id of any packet (zero while the
// handshake is running).
func EnvelopeAuthKeyId(packet []byte) (int64, error) {
	if len(packet) < 8 {
		return 0, errors.New("packet too short")
	}
	return int64(binary.LittleEndian.Uint64(packet[:8])), nil
}
