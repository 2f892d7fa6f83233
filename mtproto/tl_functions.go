package mtproto

// TL functions understood by the server. The wrapper functions
// (invokeWithLayer, initConnection) keep their inner query as raw bytes
// so the dispatcher can unwrap and re-dispatch.

const (
	CRC32HelpGetConfig       = uint32(0xc4f9186b)
	CRC32HelpGetNearestDc    = uint32(0x1fb33026)
	CRC32UsersGetUsers       = uint32(0x0d91a548)
	CRC32UsersGetFullUser    = uint32(0xb60f5918)
	CRC32AuthSendCode        = uint32(0xa677244f)
	CRC32AuthSignIn          = uint32(0x8d52a951)
	CRC32CodeSettings        = uint32(0xad253d78)
	CRC32MessagesSendMessage = uint32(0x280d096f)
	CRC32MessagesGetHistory  = uint32(0x4423e6c5)
	CRC32MessagesGetDialogs  = uint32(0xa0f4cb4f)
	CRC32ContactsGetContacts = uint32(0x5dd69e12)
	CRC32InvokeWithLayer     = uint32(0xda9b0d0d)
	CRC32InitConnection      = uint32(0xc1cd5ea9)
)

func init() {
	Register(CRC32HelpGetConfig, func() TLObject { return new(TLHelpGetConfig) })
	Register(CRC32HelpGetNearestDc, func() TLObject { return new(TLHelpGetNearestDc) })
	Register(CRC32UsersGetUsers, func() TLObject { return new(TLUsersGetUsers) })
	Register(CRC32UsersGetFullUser, func() TLObject { return new(TLUsersGetFullUser) })
	Register(CRC32AuthSendCode, func() TLObject { return new(TLAuthSendCode2) })
	Register(CRC32AuthSignIn, func() TLObject { return new(TLAuthSignIn) })
	Register(CRC32MessagesSendMessage, func() TLObject { return new(TLMessagesSendMessage) })
	Register(CRC32MessagesGetHistory, func() TLObject { return new(TLMessagesGetHistory) })
	Register(CRC32MessagesGetDialogs, func() TLObject { return new(TLMessagesGetDialogs) })
	Register(CRC32ContactsGetContacts, func() TLObject { return new(TLContactsGetContacts) })
	Register(CRC32InvokeWithLayer, func() TLObject { return new(TLInvokeWithLayer) })
	Register(CRC32InitConnection, func() TLObject { return new(TLInitConnection) })
}

type TLHelpGetConfig struct{}

func (m *TLHelpGetConfig) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32HelpGetConfig)
	return nil
}

func (m *TLHelpGetConfig) Decode(d *DecodeBuf) error { return d.GetError() }

type TLHelpGetNearestDc struct{}

func (m *TLHelpGetNearestDc) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32HelpGetNearestDc)
	return nil
}

func (m *TLHelpGetNearestDc) Decode(d *DecodeBuf) error { return d.GetError() }

type TLUsersGetUsers struct {
	Id []*TLInputUser
}

func (m *TLUsersGetUsers) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32UsersGetUsers)
	return encodeObjectVector(x, layer, m.Id)
}

func (m *TLUsersGetUsers) Decode(d *DecodeBuf) error {
	m.Id = decodeObjectVector[*TLInputUser](d)
	return d.GetError()
}

type TLUsersGetFullUser struct {
	Id *TLInputUser
}

func (m *TLUsersGetFullUser) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32UsersGetFullUser)
	return m.Id.Encode(x, layer)
}

func (m *TLUsersGetFullUser) Decode(d *DecodeBuf) error {
	if o, ok := d.Object().(*TLInputUser); ok {
		m.Id = o
	} else {
		d.SetError(errBadElement(nil))
	}
	return d.GetError()
}

// TLAuthSendCode2 is the auth.sendCode function (the "2" keeps it apart
// from the auth.sentCode result type).
type TLAuthSendCode2 struct {
	PhoneNumber string
	ApiId       int32
	ApiHash     string
}

func (m *TLAuthSendCode2) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32AuthSendCode)
	x.String(m.PhoneNumber)
	x.Int(m.ApiId)
	x.String(m.ApiHash)
	x.UInt(CRC32CodeSettings)
	x.Int(0)
	return nil
}

func (m *TLAuthSendCode2) Decode(d *DecodeBuf) error {
	m.PhoneNumber = d.String()
	m.ApiId = d.Int()
	m.ApiHash = d.String()
	if c := d.UInt(); d.GetError() == nil && c != CRC32CodeSettings {
		d.SetError(errBadElement(nil))
	}
	_ = d.Int() // codeSettings flags
	return d.GetError()
}

type TLAuthSignIn struct {
	PhoneNumber   string
	PhoneCodeHash string
	PhoneCode     string
}

func (m *TLAuthSignIn) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32AuthSignIn)
	x.Int(1 << 0) // phone_code present
	x.String(m.PhoneNumber)
	x.String(m.PhoneCodeHash)
	x.String(m.PhoneCode)
	return nil
}

func (m *TLAuthSignIn) Decode(d *DecodeBuf) error {
	flags := d.Int()
	m.PhoneNumber = d.String()
	m.PhoneCodeHash = d.String()
	if flags&(1<<0) != 0 {
		m.PhoneCode = d.String()
	}
	return d.GetError()
}

type TLMessagesSendMessage struct {
	Peer     *TLInputPeer
	Message  string
	RandomId int64
}

func (m *TLMessagesSendMessage) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32MessagesSendMessage)
	x.Int(0)
	if err := m.Peer.Encode(x, layer); err != nil {
		return err
	}
	x.String(m.Message)
	x.Long(m.RandomId)
	return nil
}

func (m *TLMessagesSendMessage) Decode(d *DecodeBuf) error {
	_ = d.Int() // flags
	if o, ok := d.Object().(*TLInputPeer); ok {
		m.Peer = o
	} else {
		d.SetError(errBadElement(nil))
	}
	m.Message = d.String()
	m.RandomId = d.Long()
	return d.GetError()
}

type TLMessagesGetHistory struct {
	Peer       *TLInputPeer
	OffsetId   int32
	OffsetDate int32
	AddOffset  int32
	Limit      int32
	MaxId      int32
	MinId      int32
	Hash       int64
}

func (m *TLMessagesGetHistory) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32MessagesGetHistory)
	if err := m.Peer.Encode(x, layer); err != nil {
		return err
	}
	x.Int(m.OffsetId)
	x.Int(m.OffsetDate)
	x.Int(m.AddOffset)
	x.Int(m.Limit)
	x.Int(m.MaxId)
	x.Int(m.MinId)
	x.Long(m.Hash)
	return nil
}

func (m *TLMessagesGetHistory) Decode(d *DecodeBuf) error {
	if o, ok := d.Object().(*TLInputPeer); ok {
		m.Peer = o
	} else {
		d.SetError(errBadElement(nil))
	}
	m.OffsetId = d.Int()
	m.OffsetDate = d.Int()
	m.AddOffset = d.Int()
	m.Limit = d.Int()
	m.MaxId = d.Int()
	m.MinId = d.Int()
	m.Hash = d.Long()
	return d.GetError()
}

type TLMessagesGetDialogs struct {
	OffsetDate int32
	OffsetId   int32
	OffsetPeer *TLInputPeer
	Limit      int32
	Hash       int64
}

func (m *TLMessagesGetDialogs) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32MessagesGetDialogs)
	x.Int(0)
	x.Int(m.OffsetDate)
	x.Int(m.OffsetId)
	if err := m.OffsetPeer.Encode(x, layer); err != nil {
		return err
	}
	x.Int(m.Limit)
	x.Long(m.Hash)
	return nil
}

func (m *TLMessagesGetDialogs) Decode(d *DecodeBuf) error {
	_ = d.Int() // flags
	m.OffsetDate = d.Int()
	m.OffsetId = d.Int()
	if o, ok := d.Object().(*TLInputPeer); ok {
		m.OffsetPeer = o
	} else {
		d.SetError(errBadElement(nil))
	}
	m.Limit = d.Int()
	m.Hash = d.Long()
	return d.GetError()
}

type TLContactsGetContacts struct {
	Hash int64
}

func (m *TLContactsGetContacts) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32ContactsGetContacts)
	x.Long(m.Hash)
	return nil
}

func (m *TLContactsGetContacts) Decode(d *DecodeBuf) error {
	m.Hash = d.Long()
	return d.GetError()
}

type TLInvokeWithLayer struct {
	Layer int32
	Query []byte
}

func (m *TLInvokeWithLayer) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32InvokeWithLayer)
	x.Int(m.Layer)
	x.Bytes(m.Query)
	return nil
}

func (m *TLInvokeWithLayer) Decode(d *DecodeBuf) error {
	m.Layer = d.Int()
	m.Query = d.Bytes(d.Len())
	return d.GetError()
}

type TLInitConnection struct {
	ApiId          int32
	DeviceModel    string
	SystemVersion  string
	AppVersion     string
	SystemLangCode string
	LangPack       string
	LangCode       string
	Query          []byte
}

func (m *TLInitConnection) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32InitConnection)
	x.Int(0)
	x.Int(m.ApiId)
	x.String(m.DeviceModel)
	x.String(m.SystemVersion)
	x.String(m.AppVersion)
	x.String(m.SystemLangCode)
	x.String(m.LangPack)
	x.String(m.LangCode)
	x.Bytes(m.Query)
	return nil
}

func (m *TLInitConnection) Decode(d *DecodeBuf) error {
	_ = d.Int() // flags
	m.ApiId = d.Int()
	m.DeviceModel = d.String()
	m.SystemVersion = d.String()
	m.AppVersion = d.String()
	m.SystemLangCode = d.String()
	m.LangPack = d.String()
	m.LangCode = d.String()
	m.Query = d.Bytes(d.Len())
	return d.GetError()
}
