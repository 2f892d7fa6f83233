package mtproto

// Service-level schema: containers, acks, pings, session notifications
// and the rpc_result / rpc_error envelopes.

const (
	CRC32MsgsAck             = uint32(0x62d6b459)
	CRC32Ping                = uint32(0x7abe77ec)
	CRC32PingDelayDisconnect = uint32(0xf3427b8c)
	CRC32Pong                = uint32(0x347773c5)
	CRC32NewSessionCreated   = uint32(0x9ec20908)
	CRC32BadMsgNotification  = uint32(0xa7eff811)
	CRC32BadServerSalt       = uint32(0xedab447b)
	CRC32DestroySession      = uint32(0xe7512126)
	CRC32DestroySessionOk    = uint32(0xe22045fc)
)

// bad_msg_notification error codes used by the RPC layer.
const (
	BadMsgIDTooLow     = int32(16)
	BadMsgIDTooHigh    = int32(17)
	BadMsgIDBadLowBits = int32(18)
	BadMsgSeqNoTooLow  = int32(32)
	BadMsgSeqNoTooHigh = int32(33)
	BadMsgBadServerSalt = int32(48)
)

func init() {
	Register(CRC32MsgContainer, func() TLObject { return new(TLMsgContainer) })
	Register(CRC32MsgsAck, func() TLObject { return new(TLMsgsAck) })
	Register(CRC32Ping, func() TLObject { return new(TLPing) })
	Register(CRC32PingDelayDisconnect, func() TLObject { return new(TLPingDelayDisconnect) })
	Register(CRC32Pong, func() TLObject { return new(TLPong) })
	Register(CRC32NewSessionCreated, func() TLObject { return new(TLNewSessionCreated) })
	Register(CRC32BadMsgNotification, func() TLObject { return new(TLBadMsgNotification) })
	Register(CRC32BadServerSalt, func() TLObject { return new(TLBadServerSalt) })
	Register(CRC32RpcResult, func() TLObject { return new(TLRpcResult) })
	Register(CRC32RpcError, func() TLObject { return new(TLRpcError) })
	Register(CRC32DestroySession, func() TLObject { return new(TLDestroySession) })
	Register(CRC32DestroySessionOk, func() TLObject { return new(TLDestroySessionOk) })
}

// TLMessage2 is one inner message of an authenticated payload: the
// header that follows salt/session_id plus the body object. Bytes keeps
// the declared body length so a decode failure can skip to the next
// container entry.
type TLMessage2 struct {
	MsgId  int64
	Seqno  int32
	Bytes  int32
	Raw    []byte // body bytes as received, kept for re-dispatch
	Object TLObject
}

func (m *TLMessage2) Encode(x *EncodeBuf, layer int32) error {
	x.Long(m.MsgId)
	x.Int(m.Seqno)
	offset := x.GetOffset()
	x.Int(0)
	if err := m.Object.Encode(x, layer); err != nil {
		return err
	}
	x.IntOffset(offset, int32(x.GetOffset()-offset-4))
	return nil
}

func (m *TLMessage2) Decode(d *DecodeBuf) error {
	m.MsgId = d.Long()
	m.Seqno = d.Int()
	m.Bytes = d.Int()
	m.Object = d.Object()
	return d.GetError()
}

type TLMsgContainer struct {
	Messages []*TLMessage2
}

func (m *TLMsgContainer) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32MsgContainer)
	x.Int(int32(len(m.Messages)))
	for _, msg := range m.Messages {
		if err := msg.Encode(x, layer); err != nil {
			return err
		}
	}
	return nil
}

func (m *TLMsgContainer) Decode(d *DecodeBuf) error {
	n := d.Int()
	if d.GetError() != nil {
		return d.GetError()
	}
	m.Messages = make([]*TLMessage2, 0, n)
	for i := int32(0); i < n; i++ {
		// Inner decode failures are recovered by the caller using the
		// declared byte length; latch only header-level failures here.
		msg := new(TLMessage2)
		msg.MsgId = d.Long()
		msg.Seqno = d.Int()
		msg.Bytes = d.Int()
		if d.GetError() != nil {
			return d.GetError()
		}
		body := d.Bytes(int(msg.Bytes))
		if d.GetError() != nil {
			return d.GetError()
		}
		msg.Raw = body
		inner := NewDecodeBuf(body)
		msg.Object = inner.Object()
		m.Messages = append(m.Messages, msg)
	}
	return nil
}

type TLMsgsAck struct {
	MsgIds []int64
}

func (m *TLMsgsAck) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32MsgsAck)
	x.VectorLong(m.MsgIds)
	return nil
}

func (m *TLMsgsAck) Decode(d *DecodeBuf) error {
	m.MsgIds = d.VectorLong()
	return d.GetError()
}

type TLPing struct {
	PingId int64
}

func (m *TLPing) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32Ping)
	x.Long(m.PingId)
	return nil
}

func (m *TLPing) Decode(d *DecodeBuf) error {
	m.PingId = d.Long()
	return d.GetError()
}

type TLPingDelayDisconnect struct {
	PingId       int64
	DisconnectDelay int32
}

func (m *TLPingDelayDisconnect) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32PingDelayDisconnect)
	x.Long(m.PingId)
	x.Int(m.DisconnectDelay)
	return nil
}

func (m *TLPingDelayDisconnect) Decode(d *DecodeBuf) error {
	m.PingId = d.Long()
	m.DisconnectDelay = d.Int()
	return d.GetError()
}

type TLPong struct {
	MsgId  int64
	PingId int64
}

func (m *TLPong) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32Pong)
	x.Long(m.MsgId)
	x.Long(m.PingId)
	return nil
}

func (m *TLPong) Decode(d *DecodeBuf) error {
	m.MsgId = d.Long()
	m.PingId = d.Long()
	return d.GetError()
}

type TLNewSessionCreated struct {
	FirstMsgId int64
	UniqueId   int64
	ServerSalt int64
}

func (m *TLNewSessionCreated) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32NewSessionCreated)
	x.Long(m.FirstMsgId)
	x.Long(m.UniqueId)
	x.Long(m.ServerSalt)
	return nil
}

func (m *TLNewSessionCreated) Decode(d *DecodeBuf) error {
	m.FirstMsgId = d.Long()
	m.UniqueId = d.Long()
	m.ServerSalt = d.Long()
	return d.GetError()
}

type TLBadMsgNotification struct {
	BadMsgId    int64
	BadMsgSeqno int32
	ErrorCode   int32
}

func (m *TLBadMsgNotification) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32BadMsgNotification)
	x.Long(m.BadMsgId)
	x.Int(m.BadMsgSeqno)
	x.Int(m.ErrorCode)
	return nil
}

func (m *TLBadMsgNotification) Decode(d *DecodeBuf) error {
	m.BadMsgId = d.Long()
	m.BadMsgSeqno = d.Int()
	m.ErrorCode = d.Int()
	return d.GetError()
}

type TLBadServerSalt struct {
	BadMsgId      int64
	BadMsgSeqno   int32
	ErrorCode     int32
	NewServerSalt int64
}

func (m *TLBadServerSalt) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32BadServerSalt)
	x.Long(m.BadMsgId)
	x.Int(m.BadMsgSeqno)
	x.Int(m.ErrorCode)
	x.Long(m.NewServerSalt)
	return nil
}

func (m *TLBadServerSalt) Decode(d *DecodeBuf) error {
	m.BadMsgId = d.Long()
	m.BadMsgSeqno = d.Int()
	m.ErrorCode = d.Int()
	m.NewServerSalt = d.Long()
	return d.GetError()
}

// TLRpcResult wraps a completed call. On the wire the result object
// follows req_msg_id directly.
type TLRpcResult struct {
	ReqMsgId int64
	Result   TLObject
}

func (m *TLRpcResult) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32RpcResult)
	x.Long(m.ReqMsgId)
	return m.Result.Encode(x, layer)
}

func (m *TLRpcResult) Decode(d *DecodeBuf) error {
	m.ReqMsgId = d.Long()
	m.Result = d.Object()
	return d.GetError()
}

type TLRpcError struct {
	ErrorCode    int32
	ErrorMessage string
}

func (m *TLRpcError) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32RpcError)
	x.Int(m.ErrorCode)
	x.String(m.ErrorMessage)
	return nil
}

func (m *TLRpcError) Decode(d *DecodeBuf) error {
	m.ErrorCode = d.Int()
	m.ErrorMessage = d.String()
	return d.GetError()
}

type TLDestroySession struct {
	SessionId int64
}

func (m *TLDestroySession) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32DestroySession)
	x.Long(m.SessionId)
	return nil
}

func (m *TLDestroySession) Decode(d *DecodeBuf) error {
	m.SessionId = d.Long()
	return d.GetError()
}

type TLDestroySessionOk struct {
	SessionId int64
}

func (m *TLDestroySessionOk) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32DestroySessionOk)
	x.Long(m.SessionId)
	return nil
}

func (m *TLDestroySessionOk) Decode(d *DecodeBuf) error {
	m.SessionId = d.Long()
	return d.GetError()
}
