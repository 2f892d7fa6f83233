package client

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/binary"
	"fmt"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xurwy/tgserver/internal/logutil"
	"github.com/xurwy/tgserver/internal/transport"
	"github.com/xurwy/tgserver/mtproto"
	"github.com/xurwy/tgserver/mtproto/crypto"
)

// RpcRemoteError is an rpc_error received for a call.
type RpcRemoteError struct {
	Code    int32
	Message string
}

func (e *RpcRemoteError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Client is one MTProto client connection: a transport, a send helper
// holding the auth key, and the data store fed by results.
type Client struct {
	transport transport.Transport
	helper    *mtproto.SendHelper
	store     *DataStore
	logger    *zap.Logger

	sessionId   int64
	contentSeq  int32
	lastInMsgId int64
	pendingAcks []int64
}

func NewClient(t transport.Transport) *Client {
	var sid [8]byte
	_, _ = rand.Read(sid[:])
	return &Client{
		transport: t,
		helper:    mtproto.NewSendHelper(crypto.DirectionClientToServer),
		store:     NewDataStore(),
		logger:    logutil.L("remote.connection"),
		sessionId: int64(binary.LittleEndian.Uint64(sid[:])),
	}
}

func (c *Client) Store() *DataStore {
	return c.store
}

func (c *Client) Helper() *mtproto.SendHelper {
	return c.helper
}

func (c *Client) SessionId() int64 {
	return c.sessionId
}

// SetSession rebinds this client to an explicit session id (used when
// reattaching an auth key from another connection).
func (c *Client) SetSession(sessionId int64) {
	c.sessionId = sessionId
}

func (c *Client) Close() error {
	return c.transport.Close()
}

// Handshake establishes the auth key unless one is already bound.
func (c *Client) Handshake(pubKeys []*rsa.PublicKey) error {
	if c.helper.HasAuthKey() {
		return nil
	}
	return NewDhLayer(c.transport, c.helper, pubKeys).Run()
}

func (c *Client) nextSeqNo(contentRelated bool) int32 {
	if contentRelated {
		seq := c.contentSeq*2 + 1
		c.contentSeq++
		return seq
	}
	return c.contentSeq * 2
}

func (c *Client) send(msgId int64, seqno int32, body []byte) error {
	packet, err := c.helper.EncryptMessage(c.sessionId, msgId, seqno, body)
	if err != nil {
		return err
	}
	return c.transport.WritePacket(packet)
}

// Invoke sends one call and blocks until its rpc_result arrives.
// Service messages received in between are handled in place; a
// bad_server_salt triggers a single transparent resend under the
// asserted salt.
func (c *Client) Invoke(req mtproto.TLObject) (mtproto.TLObject, error) {
	if !c.helper.HasAuthKey() {
		return nil, errors.New("invoke before handshake")
	}
	x := mtproto.NewEncodeBuf(512)
	if err := req.Encode(x, mtproto.Layer); err != nil {
		return nil, err
	}
	body := x.GetBuf()
	c.flushAcks()
	reqMsgId := mtproto.GenerateMessageId()
	if err := c.send(reqMsgId, c.nextSeqNo(true), body); err != nil {
		return nil, err
	}
	resent := false
	for {
		packet, err := c.transport.ReadPacket()
		if err != nil {
			return nil, err
		}
		m, err := c.helper.DecryptMessage(packet)
		if err != nil {
			return nil, err
		}
		result, retry, err := c.processInbound(m.MsgId, m.Body, reqMsgId)
		if err != nil {
			return nil, err
		}
		if retry {
			if resent {
				return nil, errors.New("server keeps rejecting the salt")
			}
			resent = true
			reqMsgId = mtproto.GenerateMessageId()
			if err := c.send(reqMsgId, c.nextSeqNo(true), body); err != nil {
				return nil, err
			}
			continue
		}
		if result != nil {
			if rpcErr, isErr := result.(*mtproto.TLRpcError); isErr {
				return nil, &RpcRemoteError{Code: rpcErr.ErrorCode, Message: rpcErr.ErrorMessage}
			}
			return result, nil
		}
	}
}

// processInbound walks one decrypted message (recursing containers) and
// returns the result for wantMsgId when found.
func (c *Client) processInbound(msgId int64, body []byte, wantMsgId int64) (result mtproto.TLObject, retry bool, err error) {
	if msgId <= c.lastInMsgId {
		c.logger.Warn("non-monotonic server message id dropped", zap.Int64("msg_id", msgId))
		return nil, false, nil
	}
	// Recorded on return: a container's inner messages carry lower ids
	// than the container itself.
	defer func() {
		if msgId > c.lastInMsgId {
			c.lastInMsgId = msgId
		}
	}()
	d := mtproto.NewDecodeBuf(body)
	obj := d.Object()
	if obj == nil {
		c.logger.Warn("inbound decode failed", zap.Error(d.GetError()))
		return nil, false, nil
	}
	switch o := obj.(type) {
	case *mtproto.TLMsgContainer:
		for _, inner := range o.Messages {
			r, rt, e := c.processInbound(inner.MsgId, inner.Raw, wantMsgId)
			if e != nil {
				return nil, false, e
			}
			if rt {
				retry = true
			}
			if r != nil {
				result = r
			}
		}
		return result, retry, nil
	case *mtproto.TLNewSessionCreated:
		c.helper.SetServerSalt(o.ServerSalt)
		c.pendingAcks = append(c.pendingAcks, msgId)
		return nil, false, nil
	case *mtproto.TLBadServerSalt:
		c.helper.SetServerSalt(o.NewServerSalt)
		return nil, o.BadMsgId == wantMsgId, nil
	case *mtproto.TLBadMsgNotification:
		return nil, false, errors.Errorf("bad_msg_notification code %d for 0x%x", o.ErrorCode, o.BadMsgId)
	case *mtproto.TLMsgsAck:
		return nil, false, nil
	case *mtproto.TLPong:
		return nil, false, nil
	case *mtproto.TLRpcResult:
		c.pendingAcks = append(c.pendingAcks, msgId)
		if o.ReqMsgId != wantMsgId {
			c.logger.Debug("result for another request", zap.Int64("req_msg_id", o.ReqMsgId))
			return nil, false, nil
		}
		return o.Result, false, nil
	default:
		c.logger.Debug("unhandled inbound object", zap.String("type", fmt.Sprintf("%T", obj)))
		return nil, false, nil
	}
}

// flushAcks ships accumulated acks ahead of the next call.
func (c *Client) flushAcks() {
	if len(c.pendingAcks) == 0 {
		return
	}
	acks := c.pendingAcks
	c.pendingAcks = nil
	x := mtproto.NewEncodeBuf(32 + 8*len(acks))
	if err := (&mtproto.TLMsgsAck{MsgIds: acks}).Encode(x, mtproto.Layer); err != nil {
		return
	}
	if err := c.send(mtproto.GenerateMessageId(), c.nextSeqNo(false), x.GetBuf()); err != nil {
		c.logger.Warn("ack send failed", zap.Error(err))
	}
}

// Ping round-trips a ping and checks the pong id.
func (c *Client) Ping(pingId int64) error {
	x := mtproto.NewEncodeBuf(16)
	if err := (&mtproto.TLPing{PingId: pingId}).Encode(x, mtproto.Layer); err != nil {
		return err
	}
	msgId := mtproto.GenerateMessageId()
	if err := c.send(msgId, c.nextSeqNo(false), x.GetBuf()); err != nil {
		return err
	}
	for {
		packet, err := c.transport.ReadPacket()
		if err != nil {
			return err
		}
		m, err := c.helper.DecryptMessage(packet)
		if err != nil {
			return err
		}
		pong, ok := c.findPong(m.MsgId, m.Body)
		if !ok {
			continue
		}
		if pong.PingId != pingId {
			return errors.New("pong id mismatch")
		}
		return nil
	}
}

func (c *Client) findPong(msgId int64, body []byte) (*mtproto.TLPong, bool) {
	if msgId <= c.lastInMsgId {
		return nil, false
	}
	c.lastInMsgId = msgId
	d := mtproto.NewDecodeBuf(body)
	switch o := d.Object().(type) {
	case *mtproto.TLPong:
		return o, true
	case *mtproto.TLMsgContainer:
		for _, inner := range o.Messages {
			if pong, ok := inner.Object.(*mtproto.TLPong); ok {
				return pong, true
			}
		}
	}
	return nil, false
}

// GetConfig fetches the server configuration.
func (c *Client) GetConfig() (*mtproto.TLConfig, error) {
	result, err := c.Invoke(&mtproto.TLHelpGetConfig{})
	if err != nil {
		return nil, err
	}
	conf, ok := result.(*mtproto.TLConfig)
	if !ok {
		return nil, errors.Errorf("expected config, got %T", result)
	}
	return conf, nil
}

// SendCode starts the sign-in flow for a phone number.
func (c *Client) SendCode(phone string) (*mtproto.TLAuthSentCode, error) {
	result, err := c.Invoke(&mtproto.TLAuthSendCode2{PhoneNumber: phone, ApiId: 1, ApiHash: "dev"})
	if err != nil {
		return nil, err
	}
	sent, ok := result.(*mtproto.TLAuthSentCode)
	if !ok {
		return nil, errors.Errorf("expected auth.sentCode, got %T", result)
	}
	return sent, nil
}

// SignIn completes the sign-in flow and ingests the authorization.
func (c *Client) SignIn(phone, codeHash, code string) (*mtproto.TLAuthAuthorization, error) {
	result, err := c.Invoke(&mtproto.TLAuthSignIn{
		PhoneNumber:   phone,
		PhoneCodeHash: codeHash,
		PhoneCode:     code,
	})
	if err != nil {
		return nil, err
	}
	auth, ok := result.(*mtproto.TLAuthAuthorization)
	if !ok {
		return nil, errors.Errorf("expected auth.authorization, got %T", result)
	}
	c.store.ProcessAuthorization(auth)
	return auth, nil
}

// GetUsers resolves input users and ingests the result.
func (c *Client) GetUsers(ids []*mtproto.TLInputUser) ([]*mtproto.TLUser, error) {
	result, err := c.Invoke(&mtproto.TLUsersGetUsers{Id: ids})
	if err != nil {
		return nil, err
	}
	vec, ok := result.(*mtproto.TLVector)
	if !ok {
		return nil, errors.Errorf("expected vector, got %T", result)
	}
	users := make([]*mtproto.TLUser, 0, len(vec.Objects))
	for _, o := range vec.Objects {
		if u, ok := o.(*mtproto.TLUser); ok {
			users = append(users, u)
		}
	}
	c.store.ProcessUsers(users)
	return users, nil
}

// GetFullUser resolves one input user and ingests the profile.
func (c *Client) GetFullUser(id *mtproto.TLInputUser) (*mtproto.TLUsersUserFull, error) {
	result, err := c.Invoke(&mtproto.TLUsersGetFullUser{Id: id})
	if err != nil {
		return nil, err
	}
	full, ok := result.(*mtproto.TLUsersUserFull)
	if !ok {
		return nil, errors.Errorf("expected users.userFull, got %T", result)
	}
	c.store.ProcessUsers(full.Users)
	return full, nil
}

// GetDialogs fetches and ingests the dialog list.
func (c *Client) GetDialogs() (*mtproto.TLMessagesDialogs, error) {
	result, err := c.Invoke(&mtproto.TLMessagesGetDialogs{
		OffsetPeer: &mtproto.TLInputPeer{Kind: mtproto.InputPeerEmpty},
		Limit:      100,
	})
	if err != nil {
		return nil, err
	}
	dialogs, ok := result.(*mtproto.TLMessagesDialogs)
	if !ok {
		return nil, errors.Errorf("expected messages.dialogs, got %T", result)
	}
	c.store.ProcessDialogs(dialogs)
	return dialogs, nil
}

// GetHistory fetches and ingests one dialog's history.
func (c *Client) GetHistory(peer *mtproto.TLPeer, limit int32) (*mtproto.TLMessagesMessages, error) {
	result, err := c.Invoke(&mtproto.TLMessagesGetHistory{
		Peer:  c.store.ToInputPeer(peer),
		Limit: limit,
	})
	if err != nil {
		return nil, err
	}
	history, ok := result.(*mtproto.TLMessagesMessages)
	if !ok {
		return nil, errors.Errorf("expected messages.messages, got %T", result)
	}
	c.store.ProcessMessages(history)
	return history, nil
}

// SendMessageText sends a text message to a peer.
func (c *Client) SendMessageText(peer *mtproto.TLPeer, text string) (*mtproto.TLUpdateShortSentMessage, error) {
	var randomId [8]byte
	_, _ = rand.Read(randomId[:])
	result, err := c.Invoke(&mtproto.TLMessagesSendMessage{
		Peer:     c.store.ToInputPeer(peer),
		Message:  text,
		RandomId: int64(binary.LittleEndian.Uint64(randomId[:])),
	})
	if err != nil {
		return nil, err
	}
	sent, ok := result.(*mtproto.TLUpdateShortSentMessage)
	if !ok {
		return nil, errors.Errorf("expected updateShortSentMessage, got %T", result)
	}
	return sent, nil
}

// GetContacts fetches and ingests the contact list.
func (c *Client) GetContacts() (*mtproto.TLContactsContacts, error) {
	result, err := c.Invoke(&mtproto.TLContactsGetContacts{})
	if err != nil {
		return nil, err
	}
	contacts, ok := result.(*mtproto.TLContactsContacts)
	if !ok {
		return nil, errors.Errorf("expected contacts.contacts, got %T", result)
	}
	c.store.ProcessUsers(contacts.Users)
	c.store.SetContactList(contacts.Contacts)
	return contacts, nil
}
