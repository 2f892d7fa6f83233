package server

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/kr/pretty"
	"go.uber.org/zap"

	"github.com/xurwy/tgserver/internal/logutil"
	"github.com/xurwy/tgserver/mtproto"
)

// RpcLayer drives the authenticated phase of a connection: envelope
// decryption, message-id validation, container recursion, service
// messages, and dispatch into the operation factories.
type RpcLayer struct {
	api    *ServerApi
	helper *mtproto.SendHelper
	conn   *Connection
	logger *zap.Logger

	sendMu sync.Mutex

	mu      sync.Mutex // guards session; the ack timer reads it off-loop
	session *Session
	layer   int32 // negotiated via invokeWithLayer
}

func NewRpcLayer(api *ServerApi, helper *mtproto.SendHelper, conn *Connection) *RpcLayer {
	return &RpcLayer{
		api:    api,
		helper: helper,
		conn:   conn,
		logger: logutil.L("rpc.layer"),
		layer:  mtproto.Layer,
	}
}

func (rpc *RpcLayer) Api() *ServerApi {
	return rpc.api
}

func (rpc *RpcLayer) Session() *Session {
	rpc.mu.Lock()
	defer rpc.mu.Unlock()
	return rpc.session
}

// User returns the user bound to the current session, nil before
// sign-in.
func (rpc *RpcLayer) User() *User {
	s := rpc.Session()
	if s == nil {
		return nil
	}
	return s.User()
}

// Detach unbinds the session on connection teardown. The session and
// its auth key survive for a later rebind.
func (rpc *RpcLayer) Detach() {
	rpc.mu.Lock()
	s := rpc.session
	rpc.session = nil
	rpc.mu.Unlock()
	if s != nil {
		s.DetachConnection(rpc.conn)
	}
}

// ProcessPacket handles one inbound encrypted packet. A returned error
// is fatal for the connection (crypto failure); per-message problems
// are resolved in-layer.
func (rpc *RpcLayer) ProcessPacket(packet []byte) error {
	m, err := rpc.helper.DecryptMessage(packet)
	if err != nil {
		metricCryptoFailures.Inc()
		return errors.Wrap(err, "decrypt")
	}
	if err := rpc.bindSession(m); err != nil {
		return err
	}
	if m.Salt != rpc.api.CurrentServerSalt() {
		rpc.logger.Debug("bad server salt", zap.Int64("got", m.Salt))
		rpc.sendService(&mtproto.TLBadServerSalt{
			BadMsgId:      m.MsgId,
			BadMsgSeqno:   m.Seqno,
			ErrorCode:     mtproto.BadMsgBadServerSalt,
			NewServerSalt: rpc.api.CurrentServerSalt(),
		}, mtproto.MsgIDModServerReply)
		return nil
	}
	rpc.processMessage(m.MsgId, m.Seqno, m.Body, false)
	return nil
}

// bindSession resolves the inner session id, creating and announcing a
// fresh session when needed and rebinding this connection otherwise.
func (rpc *RpcLayer) bindSession(m *mtproto.EncryptedMessage) error {
	if cur := rpc.Session(); cur != nil && cur.SessionId() == m.SessionId {
		return nil
	}
	s, created := rpc.api.FindOrCreateSession(rpc.helper.AuthKeyId(), m.SessionId)
	if s.AuthKeyId() != rpc.helper.AuthKeyId() {
		return errors.Errorf("session 0x%016x belongs to another auth key", uint64(m.SessionId))
	}
	s.BindConnection(rpc.conn)
	rpc.mu.Lock()
	rpc.session = s
	rpc.mu.Unlock()
	if created {
		rpc.logger.Info("session created",
			zap.Int64("session_id", m.SessionId),
			zap.Int64("auth_key_id", rpc.helper.AuthKeyId()))
	} else {
		rpc.logger.Info("session rebound",
			zap.Int64("session_id", m.SessionId),
			zap.String("remote", rpc.conn.RemoteAddr()))
	}
	if !s.MarkAnnounced() {
		var unique [8]byte
		_, _ = rand.Read(unique[:])
		rpc.sendService(&mtproto.TLNewSessionCreated{
			FirstMsgId: m.MsgId,
			UniqueId:   int64(binary.LittleEndian.Uint64(unique[:])),
			ServerSalt: rpc.api.CurrentServerSalt(),
		}, mtproto.MsgIDModServerUpdate)
	}
	return nil
}

// processMessage validates one message's id and hands its body on.
// Problems here abort only the message itself.
func (rpc *RpcLayer) processMessage(msgId int64, seqno int32, body []byte, inContainer bool) {
	if !inContainer && len(body) >= 4 && binary.LittleEndian.Uint32(body[:4]) == mtproto.CRC32MsgContainer {
		// Carried messages have ids below the container's own, so they
		// are checked before the container id is recorded.
		container := new(mtproto.TLMsgContainer)
		if err := container.Decode(mtproto.NewDecodeBuf(body[4:])); err != nil {
			rpc.logger.Warn("container decode failed", zap.Error(err))
			return
		}
		for _, inner := range container.Messages {
			rpc.processMessage(inner.MsgId, inner.Seqno, inner.Raw, true)
		}
		rpc.Session().CheckInboundMsgId(msgId, time.Now())
		return
	}
	switch rpc.Session().CheckInboundMsgId(msgId, time.Now()) {
	case MsgIdReplay:
		metricDroppedMessages.Inc()
		rpc.logger.Warn("replayed message id dropped", zap.Int64("msg_id", msgId))
		return
	case MsgIdRegression:
		metricDroppedMessages.Inc()
		rpc.logger.Warn("non-monotonic message id dropped", zap.Int64("msg_id", msgId))
		return
	case MsgIdTooOld:
		metricDroppedMessages.Inc()
		rpc.sendService(&mtproto.TLBadMsgNotification{
			BadMsgId: msgId, BadMsgSeqno: seqno, ErrorCode: mtproto.BadMsgIDTooLow,
		}, mtproto.MsgIDModServerReply)
		return
	case MsgIdTooNew:
		metricDroppedMessages.Inc()
		rpc.sendService(&mtproto.TLBadMsgNotification{
			BadMsgId: msgId, BadMsgSeqno: seqno, ErrorCode: mtproto.BadMsgIDTooHigh,
		}, mtproto.MsgIDModServerReply)
		return
	}
	if seqno%2 == 1 {
		rpc.Session().AddPendingAck(msgId)
	}
	if len(body) < 4 {
		rpc.logger.Warn("truncated message body", zap.Int64("msg_id", msgId))
		return
	}
	crc := binary.LittleEndian.Uint32(body[:4])
	if crc == mtproto.CRC32MsgContainer {
		if inContainer {
			rpc.logger.Warn("nested msg_container skipped", zap.Int64("msg_id", msgId))
			return
		}
		container := new(mtproto.TLMsgContainer)
		d := mtproto.NewDecodeBuf(body[4:])
		if err := container.Decode(d); err != nil {
			rpc.logger.Warn("container decode failed", zap.Error(err))
			return
		}
		for _, inner := range container.Messages {
			rpc.processMessage(inner.MsgId, inner.Seqno, inner.Raw, true)
		}
		return
	}
	rpc.processBody(msgId, crc, body)
}

// processBody decodes one non-container message and either handles it
// as a service message or dispatches it as an RPC call.
func (rpc *RpcLayer) processBody(msgId int64, crc uint32, body []byte) {
	d := mtproto.NewDecodeBuf(body)
	obj := d.Object()
	if obj == nil {
		// Abort this message only; an enclosing container continues.
		rpc.logger.Warn("message decode failed",
			zap.Int64("msg_id", msgId), zap.Error(d.GetError()))
		return
	}
	if ce := rpc.logger.Check(zap.DebugLevel, "rpc message"); ce != nil {
		ce.Write(zap.Int64("msg_id", msgId), zap.String("object", pretty.Sprint(obj)))
	}
	switch o := obj.(type) {
	case *mtproto.TLMsgsAck:
		rpc.logger.Debug("acks received", zap.Int("count", len(o.MsgIds)))
	case *mtproto.TLPing:
		rpc.sendService(&mtproto.TLPong{MsgId: msgId, PingId: o.PingId}, mtproto.MsgIDModServerReply)
	case *mtproto.TLPingDelayDisconnect:
		rpc.sendService(&mtproto.TLPong{MsgId: msgId, PingId: o.PingId}, mtproto.MsgIDModServerReply)
	case *mtproto.TLDestroySession:
		rpc.api.DestroySession(o.SessionId)
		rpc.sendService(&mtproto.TLDestroySessionOk{SessionId: o.SessionId}, mtproto.MsgIDModServerReply)
	case *mtproto.TLInvokeWithLayer:
		rpc.layer = o.Layer
		rpc.dispatchRaw(msgId, o.Query)
	case *mtproto.TLInitConnection:
		rpc.dispatchRaw(msgId, o.Query)
	default:
		rpc.dispatchCall(msgId, crc, obj)
	}
}

// dispatchRaw re-dispatches the inner query of a wrapper function.
func (rpc *RpcLayer) dispatchRaw(msgId int64, query []byte) {
	if len(query) < 4 {
		rpc.logger.Warn("empty wrapped query", zap.Int64("msg_id", msgId))
		return
	}
	rpc.processBody(msgId, binary.LittleEndian.Uint32(query[:4]), query)
}

// dispatchCall routes a decoded function through the static factory
// table and sends the operation's result.
func (rpc *RpcLayer) dispatchCall(reqMsgId int64, crc uint32, obj mtproto.TLObject) {
	factory := rpc.api.FactoryFor(crc)
	if factory == nil {
		rpc.logger.Debug("unhandled function", zap.Uint32("crc", crc))
		rpc.SendRpcError(reqMsgId, ErrMethodInvalid)
		return
	}
	metricRpcCalls.Inc()
	op, err := factory.Process(rpc, &ProcessingContext{ReqMsgId: reqMsgId, Object: obj})
	if err != nil {
		rpc.logger.Warn("operation parse failed", zap.Error(err))
		rpc.SendRpcError(reqMsgId, ErrMethodInvalid)
		return
	}
	result, rpcErr := op.Run()
	if rpcErr != nil {
		rpc.SendRpcError(reqMsgId, rpcErr)
		return
	}
	rpc.SendRpcResult(reqMsgId, result)
}

// SendRpcResult wraps a completed call and ships it, piggybacking any
// pending acks in a container.
func (rpc *RpcLayer) SendRpcResult(reqMsgId int64, result mtproto.TLObject) {
	rpc.sendReply(&mtproto.TLRpcResult{ReqMsgId: reqMsgId, Result: result})
}

func (rpc *RpcLayer) SendRpcError(reqMsgId int64, rpcErr *RpcError) {
	metricRpcErrors.Inc()
	rpc.sendReply(&mtproto.TLRpcResult{ReqMsgId: reqMsgId, Result: rpcErr.ToTL()})
}

func (rpc *RpcLayer) sendReply(result *mtproto.TLRpcResult) {
	s := rpc.Session()
	if s == nil {
		return
	}
	acks := s.TakePendingAcks()
	if len(acks) == 0 {
		rpc.sendObject(result, true, mtproto.MsgIDModServerReply)
		return
	}
	container := &mtproto.TLMsgContainer{
		Messages: []*mtproto.TLMessage2{
			{
				MsgId:  mtproto.GenerateServerMessageId(mtproto.MsgIDModServerUpdate),
				Seqno:  s.NextOutSeqNo(false),
				Object: &mtproto.TLMsgsAck{MsgIds: acks},
			},
			{
				MsgId:  mtproto.GenerateServerMessageId(mtproto.MsgIDModServerReply),
				Seqno:  s.NextOutSeqNo(true),
				Object: result,
			},
		},
	}
	rpc.sendObject(container, false, mtproto.MsgIDModServerUpdate)
}

// FlushAcks ships accumulated acks in a standalone msgs_ack; called on
// a timer by the connection.
func (rpc *RpcLayer) FlushAcks() {
	s := rpc.Session()
	if s == nil {
		return
	}
	acks := s.TakePendingAcks()
	if len(acks) == 0 {
		return
	}
	rpc.sendService(&mtproto.TLMsgsAck{MsgIds: acks}, mtproto.MsgIDModServerUpdate)
}

func (rpc *RpcLayer) sendService(obj mtproto.TLObject, mod int64) {
	rpc.sendObject(obj, false, mod)
}

func (rpc *RpcLayer) sendObject(obj mtproto.TLObject, contentRelated bool, mod int64) {
	s := rpc.Session()
	if s == nil {
		return
	}
	x := mtproto.NewEncodeBuf(512)
	if err := obj.Encode(x, rpc.layer); err != nil {
		rpc.logger.Error("encode failed", zap.Error(err))
		return
	}
	rpc.sendMu.Lock()
	defer rpc.sendMu.Unlock()
	msgId := mtproto.GenerateServerMessageId(mod)
	seqno := s.NextOutSeqNo(contentRelated)
	packet, err := rpc.helper.EncryptMessage(s.SessionId(), msgId, seqno, x.GetBuf())
	if err != nil {
		rpc.logger.Error("encrypt failed", zap.Error(err))
		return
	}
	if err := rpc.conn.WritePacket(packet); err != nil {
		rpc.logger.Warn("write failed", zap.Error(err))
	}
}
