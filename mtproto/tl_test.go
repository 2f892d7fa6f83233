package mtproto

import (
	"bytes"
	"reflect"
	"testing"

	"google.golang.org/protobuf/types/known/wrapperspb"
)

// roundtrip encodes a boxed object and decodes it back through the
// registry dispatcher.
func roundtrip(t *testing.T, obj TLObject) TLObject {
	t.Helper()
	x := NewEncodeBuf(512)
	if err := obj.Encode(x, Layer); err != nil {
		t.Fatalf("encode: %v", err)
	}
	d := NewDecodeBuf(x.GetBuf())
	decoded := d.Object()
	if decoded == nil {
		t.Fatalf("decode: %v", d.GetError())
	}
	if d.Len() != 0 {
		t.Fatalf("decode left %d trailing bytes", d.Len())
	}
	return decoded
}

func TestHandshakeObjectsRoundtrip(t *testing.T) {
	nonce := bytes.Repeat([]byte{0x11}, 16)
	serverNonce := bytes.Repeat([]byte{0x22}, 16)
	newNonce := bytes.Repeat([]byte{0x33}, 32)

	cases := []TLObject{
		&TLReqPqMulti{Nonce: nonce},
		&TLResPQ{
			Nonce:                       nonce,
			ServerNonce:                 serverNonce,
			Pq:                          []byte{0x17, 0xed, 0x48, 0x94, 0x1a, 0x08, 0xf9, 0x81},
			ServerPublicKeyFingerprints: []int64{-6205835210776354611},
		},
		&TLReqDHParams{
			Nonce: nonce, ServerNonce: serverNonce,
			P: []byte{0x49, 0x4c, 0x55, 0x3b}, Q: []byte{0x53, 0x91, 0x10, 0x73},
			PublicKeyFingerprint: -6205835210776354611,
			EncryptedData:        bytes.Repeat([]byte{0x7f}, 256),
		},
		&TLPQInnerData{
			Pq: []byte{1, 2}, P: []byte{3}, Q: []byte{4},
			Nonce: nonce, ServerNonce: serverNonce, NewNonce: newNonce,
		},
		&TLServerDHParamsOk{Nonce: nonce, ServerNonce: serverNonce, EncryptedAnswer: bytes.Repeat([]byte{9}, 64)},
		&TLServerDHInnerData{
			Nonce: nonce, ServerNonce: serverNonce, G: 3,
			DhPrime: bytes.Repeat([]byte{0xc7}, 256), GA: bytes.Repeat([]byte{5}, 256), ServerTime: 1700000000,
		},
		&TLSetClientDHParams{Nonce: nonce, ServerNonce: serverNonce, EncryptedData: bytes.Repeat([]byte{6}, 64)},
		&TLClientDHInnerData{Nonce: nonce, ServerNonce: serverNonce, RetryId: 0, GB: bytes.Repeat([]byte{7}, 256)},
		&TLDhGenAnswer{Kind: DhGenOk, Nonce: nonce, ServerNonce: serverNonce, NewNonceHash: bytes.Repeat([]byte{8}, 16)},
	}
	for _, obj := range cases {
		decoded := roundtrip(t, obj)
		if !reflect.DeepEqual(obj, decoded) {
			t.Errorf("%T: roundtrip mismatch\n got %#v\nwant %#v", obj, decoded, obj)
		}
	}
}

func TestServiceObjectsRoundtrip(t *testing.T) {
	cases := []TLObject{
		&TLMsgsAck{MsgIds: []int64{1, 2, 3}},
		&TLPing{PingId: 99},
		&TLPingDelayDisconnect{PingId: 7, DisconnectDelay: 75},
		&TLPong{MsgId: 11, PingId: 12},
		&TLNewSessionCreated{FirstMsgId: 1, UniqueId: 2, ServerSalt: 3},
		&TLBadMsgNotification{BadMsgId: 4, BadMsgSeqno: 5, ErrorCode: BadMsgIDTooLow},
		&TLBadServerSalt{BadMsgId: 6, BadMsgSeqno: 7, ErrorCode: BadMsgBadServerSalt, NewServerSalt: 8},
		&TLRpcError{ErrorCode: 400, ErrorMessage: "USER_ID_INVALID"},
		&TLDestroySession{SessionId: 77},
		&TLDestroySessionOk{SessionId: 77},
	}
	for _, obj := range cases {
		decoded := roundtrip(t, obj)
		if !reflect.DeepEqual(obj, decoded) {
			t.Errorf("%T: roundtrip mismatch", obj)
		}
	}
}

func TestUserRoundtripWithOptionalFields(t *testing.T) {
	user := &TLUser{
		Id:         1001,
		Self:       true,
		Contact:    true,
		AccessHash: &wrapperspb.Int64Value{Value: -42},
		FirstName:  &wrapperspb.StringValue{Value: "Dave"},
		Phone:      &wrapperspb.StringValue{Value: "15550100"},
	}
	decoded := roundtrip(t, user).(*TLUser)
	if decoded.Id != user.Id || !decoded.Self || !decoded.Contact {
		t.Errorf("flags lost: %+v", decoded)
	}
	if decoded.AccessHash.GetValue() != -42 || decoded.FirstName.GetValue() != "Dave" {
		t.Errorf("optional fields lost: %+v", decoded)
	}
	if decoded.LastName != nil || decoded.Username != nil {
		t.Errorf("absent optionals materialised: %+v", decoded)
	}

	bare := &TLUser{Id: 5}
	decodedBare := roundtrip(t, bare).(*TLUser)
	if decodedBare.AccessHash != nil || decodedBare.Self {
		t.Errorf("bare user grew fields: %+v", decodedBare)
	}
}

func TestMessageWithForwardHeader(t *testing.T) {
	msg := &TLMessage{
		Out:    true,
		Id:     10,
		FromId: 1001,
		PeerId: &TLPeer{Kind: PeerUser, Id: 1002},
		FwdFrom: &TLMessageFwdHeader{
			FromId: &TLPeer{Kind: PeerUser, Id: 555},
			Date:   1700000000,
		},
		Date:    1700000001,
		Message: "fwd",
	}
	decoded := roundtrip(t, msg).(*TLMessage)
	if decoded.FwdFrom == nil || decoded.FwdFrom.FromId == nil {
		t.Fatal("forward header lost")
	}
	if decoded.FwdFrom.FromId.Id != 555 {
		t.Errorf("forward origin: got %d", decoded.FwdFrom.FromId.Id)
	}
}

func TestContainerRoundtrip(t *testing.T) {
	container := &TLMsgContainer{
		Messages: []*TLMessage2{
			{MsgId: 100, Seqno: 2, Object: &TLMsgsAck{MsgIds: []int64{5}}},
			{MsgId: 104, Seqno: 3, Object: &TLPing{PingId: 6}},
		},
	}
	decoded := roundtrip(t, container).(*TLMsgContainer)
	if len(decoded.Messages) != 2 {
		t.Fatalf("got %d messages", len(decoded.Messages))
	}
	if _, ok := decoded.Messages[0].Object.(*TLMsgsAck); !ok {
		t.Errorf("first message: %T", decoded.Messages[0].Object)
	}
	ping, ok := decoded.Messages[1].Object.(*TLPing)
	if !ok || ping.PingId != 6 {
		t.Errorf("second message: %#v", decoded.Messages[1].Object)
	}
}

func TestRpcResultRoundtrip(t *testing.T) {
	result := &TLRpcResult{
		ReqMsgId: 12345,
		Result:   &TLRpcError{ErrorCode: 400, ErrorMessage: "USER_ID_INVALID"},
	}
	decoded := roundtrip(t, result).(*TLRpcResult)
	if decoded.ReqMsgId != 12345 {
		t.Errorf("req_msg_id: got %d", decoded.ReqMsgId)
	}
	rpcErr, ok := decoded.Result.(*TLRpcError)
	if !ok || rpcErr.ErrorMessage != "USER_ID_INVALID" {
		t.Errorf("result: %#v", decoded.Result)
	}
}

func TestGzipPackedTransparentDecode(t *testing.T) {
	inner := &TLRpcError{ErrorCode: 500, ErrorMessage: "INTERNAL_SERVER_ERROR"}
	x := NewEncodeBuf(64)
	if err := inner.Encode(x, Layer); err != nil {
		t.Fatal(err)
	}
	packed := GzipPacked(x.GetBuf())
	d := NewDecodeBuf(packed)
	decoded, ok := d.Object().(*TLRpcError)
	if !ok {
		t.Fatalf("decode: %v", d.GetError())
	}
	if decoded.ErrorCode != 500 {
		t.Errorf("got %d", decoded.ErrorCode)
	}
}

func TestConfigRoundtrip(t *testing.T) {
	config := &TLConfig{
		Date:    1700000000,
		Expires: 1700003600,
		ThisDc:  1,
		DcOptions: []*TLDcOption{
			{Id: 1, IpAddress: "10.0.0.1", Port: 443},
			{Id: 2, IpAddress: "fd00::2", Port: 443, Ipv6: true, MediaOnly: true},
		},
		ChatSizeMax:      200,
		MegagroupSizeMax: 200000,
	}
	decoded := roundtrip(t, config).(*TLConfig)
	if !reflect.DeepEqual(config, decoded) {
		t.Errorf("roundtrip mismatch:\n got %#v\nwant %#v", decoded, config)
	}
}

func TestHelpGetConfigTag(t *testing.T) {
	x := NewEncodeBuf(8)
	if err := (&TLHelpGetConfig{}).Encode(x, Layer); err != nil {
		t.Fatal(err)
	}
	d := NewDecodeBuf(x.GetBuf())
	if got := d.UInt(); got != 0xc4f9186b {
		t.Errorf("help.getConfig tag: got 0x%08x", got)
	}
}

func TestUnknownConstructorLatchesError(t *testing.T) {
	x := NewEncodeBuf(8)
	x.UInt(0x0bad0bad)
	d := NewDecodeBuf(x.GetBuf())
	if d.Object() != nil || d.GetError() == nil {
		t.Fatal("expected unknown constructor error")
	}
}
