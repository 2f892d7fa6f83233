package server

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xurwy/tgserver/internal/client"
	"github.com/xurwy/tgserver/internal/dcconfig"
	"github.com/xurwy/tgserver/internal/logutil"
	"github.com/xurwy/tgserver/mtproto"
	"github.com/xurwy/tgserver/mtproto/crypto"
)

func observeWarnings() *observer.ObservedLogs {
	core, logs := observer.New(zap.WarnLevel)
	logutil.SetRoot(zap.New(core))
	return logs
}

func newTestApi(t *testing.T) *ServerApi {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	conf := dcconfig.New([]dcconfig.Option{
		{DcId: 1, Ip: "10.0.0.1", Port: 443},
		{DcId: 2, Ip: "10.0.0.2", Port: 443},
	})
	api := NewServerApi(conf, 1, crypto.NewRSAKey(priv), nil)
	RegisterDefaultFactories(api)
	return api
}

func connect(t *testing.T, api *ServerApi) (*client.Client, *pipeTransport) {
	t.Helper()
	clientEnd, serverEnd := newTransportPair()
	go NewConnection(api, serverEnd).Run()
	return client.NewClient(clientEnd), clientEnd
}

func handshake(t *testing.T, api *ServerApi, c *client.Client) {
	t.Helper()
	if err := c.Handshake([]*rsa.PublicKey{api.RSAKey().Public()}); err != nil {
		t.Fatalf("handshake: %v", err)
	}
}

func signIn(t *testing.T, c *client.Client, phone string) {
	t.Helper()
	sent, err := c.SendCode(phone)
	if err != nil {
		t.Fatalf("sendCode: %v", err)
	}
	if _, err := c.SignIn(phone, sent.PhoneCodeHash, "12345"); err != nil {
		t.Fatalf("signIn: %v", err)
	}
}

func TestFullHandshake(t *testing.T) {
	api := newTestApi(t)
	c, _ := connect(t, api)
	handshake(t, api, c)

	keyId := c.Helper().AuthKeyId()
	if keyId == 0 {
		t.Fatal("no auth key bound")
	}
	serverKey := api.GetAuthKeyById(keyId)
	if serverKey == nil {
		t.Fatal("auth key not registered server-side")
	}
	if !bytes.Equal(serverKey.AuthKey(), c.Helper().AuthKey().AuthKey()) {
		t.Fatal("client and server derived different keys")
	}
	if keyId != crypto.DeriveAuthKeyId(serverKey.AuthKey()) {
		t.Fatal("auth key id is not low64(SHA1(key))")
	}
}

func TestHandshakeFixtureNonce(t *testing.T) {
	api := newTestApi(t)
	clientEnd, serverEnd := newTransportPair()
	go NewConnection(api, serverEnd).Run()

	nonce := []byte{
		0x3E, 0x05, 0x49, 0x82, 0x8C, 0xCA, 0x27, 0xE9,
		0x66, 0xB3, 0x01, 0xA4, 0x8F, 0xEC, 0xE2, 0xFC,
	}
	helper := mtproto.NewSendHelper(crypto.DirectionClientToServer)
	x := mtproto.NewEncodeBuf(32)
	if err := (&mtproto.TLReqPqMulti{Nonce: nonce}).Encode(x, mtproto.Layer); err != nil {
		t.Fatal(err)
	}
	packet := helper.PackPlainMessage(mtproto.GenerateMessageId(), x.GetBuf())
	if err := clientEnd.WritePacket(packet); err != nil {
		t.Fatal(err)
	}
	reply := clientEnd.readTimeout(time.Second)
	if reply == nil {
		t.Fatal("no resPQ reply")
	}
	_, body, err := mtproto.UnpackPlainMessage(reply)
	if err != nil {
		t.Fatal(err)
	}
	d := mtproto.NewDecodeBuf(body)
	res, ok := d.Object().(*mtproto.TLResPQ)
	if !ok {
		t.Fatalf("expected resPQ: %v", d.GetError())
	}
	if !bytes.Equal(res.Nonce, nonce) {
		t.Error("client nonce not echoed")
	}
	if !bytes.Equal(res.Pq, PqFixture) {
		t.Errorf("pq: got %x", res.Pq)
	}
	p, q := crypto.FactorizePQ(res.Pq)
	if !bytes.Equal(p, []byte{0x49, 0x4c, 0x55, 0x3b}) || !bytes.Equal(q, []byte{0x53, 0x91, 0x10, 0x73}) {
		t.Errorf("pq factors: %x * %x", p, q)
	}
	if len(res.ServerPublicKeyFingerprints) != 1 ||
		res.ServerPublicKeyFingerprints[0] != api.RSAKey().Fingerprint() {
		t.Errorf("fingerprints: %v", res.ServerPublicKeyFingerprints)
	}
}

func TestUnknownAuthKeySendsKeyError(t *testing.T) {
	api := newTestApi(t)
	clientEnd, serverEnd := newTransportPair()
	go NewConnection(api, serverEnd).Run()

	x := mtproto.NewEncodeBuf(64)
	x.Long(int64(-2401053088876216593)) // 0xDEADBEEFDEADBEEF
	x.Bytes(bytes.Repeat([]byte{0}, 40))
	if err := clientEnd.WritePacket(x.GetBuf()); err != nil {
		t.Fatal(err)
	}
	reply := clientEnd.readTimeout(time.Second)
	if !bytes.Equal(reply, []byte{0x6c, 0xfe, 0xff, 0xff}) {
		t.Fatalf("expected key error frame, got %x", reply)
	}
	// The connection closes after the frame.
	if _, err := clientEnd.ReadPacket(); err == nil {
		t.Fatal("expected closed pipe")
	}
}

func TestRpcGetConfig(t *testing.T) {
	api := newTestApi(t)
	c, _ := connect(t, api)
	handshake(t, api, c)

	config, err := c.GetConfig()
	if err != nil {
		t.Fatalf("getConfig: %v", err)
	}
	if config.ThisDc != 1 {
		t.Errorf("this_dc: got %d", config.ThisDc)
	}
	if len(config.DcOptions) != 2 {
		t.Fatalf("dc options: got %d", len(config.DcOptions))
	}
	if config.DcOptions[0].IpAddress != "10.0.0.1" || config.DcOptions[1].Id != 2 {
		t.Errorf("dc options: %+v", config.DcOptions)
	}
	// The client's salt converges on the server's current one.
	if c.Helper().ServerSalt() != api.CurrentServerSalt() {
		t.Error("client salt not corrected")
	}
}

func TestUserLookupMiss(t *testing.T) {
	api := newTestApi(t)
	c, _ := connect(t, api)
	handshake(t, api, c)

	_, err := c.GetFullUser(&mtproto.TLInputUser{Kind: mtproto.InputUserUser, UserId: 999})
	rpcErr, ok := err.(*client.RpcRemoteError)
	if !ok {
		t.Fatalf("expected rpc error, got %v", err)
	}
	if rpcErr.Code != 400 || rpcErr.Message != "USER_ID_INVALID" {
		t.Errorf("got %d %q", rpcErr.Code, rpcErr.Message)
	}
}

func TestSessionRebindToExistingAuthKey(t *testing.T) {
	api := newTestApi(t)
	a, _ := connect(t, api)
	handshake(t, api, a)
	if _, err := a.GetConfig(); err != nil {
		t.Fatal(err)
	}
	keyId := a.Helper().AuthKeyId()

	// Connection B presents the existing auth key id with a fresh
	// session id; the server looks the key up and binds.
	b, _ := connect(t, api)
	if err := b.Helper().SetAuthKey(api.GetAuthKeyById(keyId)); err != nil {
		t.Fatal(err)
	}
	b.Helper().SetServerSalt(api.CurrentServerSalt())
	if _, err := b.GetConfig(); err != nil {
		t.Fatalf("rebind invoke: %v", err)
	}
	if _, created := api.FindOrCreateSession(keyId, b.SessionId()); created {
		t.Error("session B was not registered")
	}
	if b.SessionId() == a.SessionId() {
		t.Error("test expects distinct session ids")
	}
}

func TestSessionTakeoverDetachesOldConnection(t *testing.T) {
	api := newTestApi(t)
	a, aEnd := connect(t, api)
	handshake(t, api, a)
	if _, err := a.GetConfig(); err != nil {
		t.Fatal(err)
	}
	keyId := a.Helper().AuthKeyId()

	b, _ := connect(t, api)
	if err := b.Helper().SetAuthKey(api.GetAuthKeyById(keyId)); err != nil {
		t.Fatal(err)
	}
	b.Helper().SetServerSalt(api.CurrentServerSalt())
	b.SetSession(a.SessionId())
	if _, err := b.GetConfig(); err != nil {
		t.Fatalf("takeover invoke: %v", err)
	}
	// Exactly one live connection per session: A's transport closes.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-aEnd.done:
			return
		case <-deadline:
			t.Fatal("old connection not detached")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestMessageIdReplayDropped(t *testing.T) {
	logs := observeWarnings()
	api := newTestApi(t)
	c, clientEnd := connect(t, api)
	handshake(t, api, c)
	if _, err := c.GetConfig(); err != nil {
		t.Fatal(err)
	}

	x := mtproto.NewEncodeBuf(16)
	if err := (&mtproto.TLPing{PingId: 1}).Encode(x, mtproto.Layer); err != nil {
		t.Fatal(err)
	}
	msgId := mtproto.GenerateMessageId()
	packet, err := c.Helper().EncryptMessage(c.SessionId(), msgId, 0, x.GetBuf())
	if err != nil {
		t.Fatal(err)
	}
	if err := clientEnd.WritePacket(packet); err != nil {
		t.Fatal(err)
	}
	if pong := clientEnd.readTimeout(time.Second); pong == nil {
		t.Fatal("no pong for first ping")
	}
	// Replaying the identical packet must be silently dropped.
	if err := clientEnd.WritePacket(packet); err != nil {
		t.Fatal(err)
	}
	if extra := clientEnd.readTimeout(300 * time.Millisecond); extra != nil {
		t.Fatal("replayed message answered")
	}
	found := false
	for _, entry := range logs.All() {
		if strings.Contains(entry.Message, "replayed message id dropped") {
			found = true
		}
	}
	if !found {
		t.Error("replay warning not logged")
	}
	// The session keeps working afterwards.
	if err := c.Ping(2); err != nil {
		t.Fatalf("ping after replay: %v", err)
	}
}

func TestSignInAndMessaging(t *testing.T) {
	api := newTestApi(t)
	alice, _ := connect(t, api)
	handshake(t, api, alice)
	signIn(t, alice, "15550001")

	bob, _ := connect(t, api)
	handshake(t, api, bob)
	signIn(t, bob, "15550002")

	aliceUser := api.GetUserByPhone("15550001")
	bobUser := api.GetUserByPhone("15550002")
	if aliceUser == nil || bobUser == nil {
		t.Fatal("users not registered")
	}
	if alice.Store().SelfUserId() != aliceUser.Id {
		t.Error("alice self id not ingested")
	}

	sent, err := alice.Invoke(&mtproto.TLMessagesSendMessage{
		Peer: &mtproto.TLInputPeer{
			Kind:       mtproto.InputPeerUser,
			Id:         bobUser.Id,
			AccessHash: bobUser.AccessHash,
		},
		Message:  "hi bob",
		RandomId: 7,
	})
	if err != nil {
		t.Fatalf("sendMessage: %v", err)
	}
	shortSent, ok := sent.(*mtproto.TLUpdateShortSentMessage)
	if !ok || !shortSent.Out || shortSent.Id == 0 {
		t.Fatalf("sendMessage result: %#v", sent)
	}

	dialogs, err := alice.GetDialogs()
	if err != nil {
		t.Fatalf("getDialogs: %v", err)
	}
	if len(dialogs.Dialogs) != 1 || dialogs.Dialogs[0].Peer.Id != bobUser.Id {
		t.Fatalf("alice dialogs: %+v", dialogs.Dialogs)
	}

	history, err := alice.GetHistory(&mtproto.TLPeer{Kind: mtproto.PeerUser, Id: bobUser.Id}, 10)
	if err != nil {
		t.Fatalf("getHistory: %v", err)
	}
	if len(history.Messages) != 1 || history.Messages[0].Message != "hi bob" {
		t.Fatalf("alice history: %+v", history.Messages)
	}

	bobDialogs, err := bob.GetDialogs()
	if err != nil {
		t.Fatalf("bob getDialogs: %v", err)
	}
	if len(bobDialogs.Dialogs) != 1 || bobDialogs.Dialogs[0].UnreadCount != 1 {
		t.Fatalf("bob dialogs: %+v", bobDialogs.Dialogs)
	}

	// The stored copy is looked up through the client cache by id.
	msg, ok := alice.Store().GetMessage(&mtproto.TLPeer{Kind: mtproto.PeerUser, Id: bobUser.Id}, shortSent.Id)
	if !ok || msg.Message != "hi bob" {
		t.Fatalf("cached message: %+v ok=%v", msg, ok)
	}
}

func TestContacts(t *testing.T) {
	api := newTestApi(t)
	alice, _ := connect(t, api)
	handshake(t, api, alice)
	signIn(t, alice, "15550001")
	bobUser := api.CreateUser("15550002", "Bob", "")
	api.SetContact(api.GetUserByPhone("15550001"), bobUser.Id)

	contacts, err := alice.GetContacts()
	if err != nil {
		t.Fatalf("getContacts: %v", err)
	}
	if len(contacts.Contacts) != 1 || contacts.Contacts[0].UserId != bobUser.Id {
		t.Fatalf("contacts: %+v", contacts.Contacts)
	}
	list := alice.Store().ContactList()
	if len(list) != 1 || list[0] != bobUser.Id {
		t.Fatalf("contact list: %v", list)
	}
}

func TestSendCodeWhileSignedIn(t *testing.T) {
	api := newTestApi(t)
	c, _ := connect(t, api)
	handshake(t, api, c)
	signIn(t, c, "15550003")

	_, err := c.SendCode("15550004")
	rpcErr, ok := err.(*client.RpcRemoteError)
	if !ok || rpcErr.Message != "SESSION_PASSWORD_NEEDED" {
		t.Fatalf("expected SESSION_PASSWORD_NEEDED, got %v", err)
	}
}

func TestUnauthenticatedCallRejected(t *testing.T) {
	api := newTestApi(t)
	c, _ := connect(t, api)
	handshake(t, api, c)

	_, err := c.Invoke(&mtproto.TLHelpGetNearestDc{})
	if err != nil {
		t.Fatalf("getNearestDc should be served: %v", err)
	}
	_, err = c.Invoke(&mtproto.TLMessagesGetHistory{
		Peer: &mtproto.TLInputPeer{Kind: mtproto.InputPeerEmpty},
	})
	rpcErr, ok := err.(*client.RpcRemoteError)
	if !ok {
		t.Fatalf("expected rpc error, got %v", err)
	}
	if rpcErr.Code != 401 {
		t.Errorf("unauthenticated history: got %d %s", rpcErr.Code, rpcErr.Message)
	}
}

func TestUnroutableFunctionGetsMethodInvalid(t *testing.T) {
	api := newTestApi(t)
	c, _ := connect(t, api)
	handshake(t, api, c)

	// A decodable object with no factory behind it is answered with
	// METHOD_INVALID and the session continues.
	_, err := c.Invoke(&mtproto.TLNearestDc{Country: "US", ThisDc: 1, NearestDc: 1})
	rpcErr, ok := err.(*client.RpcRemoteError)
	if !ok || rpcErr.Message != "METHOD_INVALID" {
		t.Fatalf("expected METHOD_INVALID, got %v", err)
	}
	if _, err := c.GetConfig(); err != nil {
		t.Fatalf("session should continue: %v", err)
	}
}

func TestPing(t *testing.T) {
	api := newTestApi(t)
	c, _ := connect(t, api)
	handshake(t, api, c)
	if _, err := c.GetConfig(); err != nil {
		t.Fatal(err)
	}
	if err := c.Ping(42); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
