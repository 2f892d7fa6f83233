package mtproto

import (
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Domain schema subset. Optional (flag-gated) fields use wrapperspb
// pointers; a nil pointer clears the flag bit on encode.

const (
	CRC32PeerUser    = uint32(0x59511722)
	CRC32PeerChat    = uint32(0x36c6019a)
	CRC32PeerChannel = uint32(0xa2a5371e)

	CRC32InputPeerEmpty   = uint32(0x7f3b18ea)
	CRC32InputPeerSelf    = uint32(0x7da07ec9)
	CRC32InputPeerUser    = uint32(0xdde8a54c)
	CRC32InputPeerChat    = uint32(0x35a95cb9)
	CRC32InputPeerChannel = uint32(0x27bcbbfc)

	CRC32InputUserEmpty = uint32(0xb98886cf)
	CRC32InputUserSelf  = uint32(0xf7c1b13f)
	CRC32InputUser      = uint32(0xf21158c6)

	CRC32User             = uint32(0x8f97c628)
	CRC32UserEmpty        = uint32(0xd3bc4b7a)
	CRC32Chat             = uint32(0x41cbf256)
	CRC32Channel          = uint32(0x83259464)
	CRC32Dialog           = uint32(0x2c171f72)
	CRC32Message          = uint32(0x38116ee0)
	CRC32MessageFwdHeader = uint32(0x5f777dce)
	CRC32Contact          = uint32(0x145ade0b)

	CRC32Config           = uint32(0xcc1a241e)
	CRC32DcOption         = uint32(0x18b7a10d)
	CRC32NearestDc        = uint32(0x8e1a1775)
	CRC32AuthSentCode     = uint32(0x5e002502)
	CRC32AuthAuthorization = uint32(0x2ea2c0d4)
	CRC32UsersUserFull    = uint32(0x3b6d152e)
	CRC32MessagesDialogs  = uint32(0x15ba6c40)
	CRC32MessagesMessages = uint32(0x8c718e87)
	CRC32ContactsContacts = uint32(0xeae87e42)
	CRC32UpdateShortSentMessage = uint32(0x9015e101)
)

func init() {
	Register(CRC32PeerUser, func() TLObject { return &TLPeer{Kind: PeerUser} })
	Register(CRC32PeerChat, func() TLObject { return &TLPeer{Kind: PeerChat} })
	Register(CRC32PeerChannel, func() TLObject { return &TLPeer{Kind: PeerChannel} })
	Register(CRC32InputPeerEmpty, func() TLObject { return &TLInputPeer{Kind: InputPeerEmpty} })
	Register(CRC32InputPeerSelf, func() TLObject { return &TLInputPeer{Kind: InputPeerSelf} })
	Register(CRC32InputPeerUser, func() TLObject { return &TLInputPeer{Kind: InputPeerUser} })
	Register(CRC32InputPeerChat, func() TLObject { return &TLInputPeer{Kind: InputPeerChat} })
	Register(CRC32InputPeerChannel, func() TLObject { return &TLInputPeer{Kind: InputPeerChannel} })
	Register(CRC32InputUserEmpty, func() TLObject { return &TLInputUser{Kind: InputUserEmpty} })
	Register(CRC32InputUserSelf, func() TLObject { return &TLInputUser{Kind: InputUserSelf} })
	Register(CRC32InputUser, func() TLObject { return &TLInputUser{Kind: InputUserUser} })
	Register(CRC32User, func() TLObject { return new(TLUser) })
	Register(CRC32Chat, func() TLObject { return new(TLChat) })
	Register(CRC32Channel, func() TLObject { return &TLChat{Channel: true} })
	Register(CRC32Dialog, func() TLObject { return new(TLDialog) })
	Register(CRC32Message, func() TLObject { return new(TLMessage) })
	Register(CRC32MessageFwdHeader, func() TLObject { return new(TLMessageFwdHeader) })
	Register(CRC32Contact, func() TLObject { return new(TLContact) })
	Register(CRC32Config, func() TLObject { return new(TLConfig) })
	Register(CRC32DcOption, func() TLObject { return new(TLDcOption) })
	Register(CRC32NearestDc, func() TLObject { return new(TLNearestDc) })
	Register(CRC32AuthSentCode, func() TLObject { return new(TLAuthSentCode) })
	Register(CRC32AuthAuthorization, func() TLObject { return new(TLAuthAuthorization) })
	Register(CRC32UsersUserFull, func() TLObject { return new(TLUsersUserFull) })
	Register(CRC32MessagesDialogs, func() TLObject { return new(TLMessagesDialogs) })
	Register(CRC32MessagesMessages, func() TLObject { return new(TLMessagesMessages) })
	Register(CRC32ContactsContacts, func() TLObject { return new(TLContactsContacts) })
	Register(CRC32UpdateShortSentMessage, func() TLObject { return new(TLUpdateShortSentMessage) })
	Register(CRC32Vector, func() TLObject { return new(TLVector) })
}

// TLVector is a bare vector of boxed objects, used where a function
// result is a plain Vector<T>.
type TLVector struct {
	Objects []TLObject
}

func (m *TLVector) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32Vector)
	x.Int(int32(len(m.Objects)))
	for _, o := range m.Objects {
		if err := o.Encode(x, layer); err != nil {
			return err
		}
	}
	return nil
}

func (m *TLVector) Decode(d *DecodeBuf) error {
	n := d.Int()
	if d.GetError() != nil {
		return d.GetError()
	}
	m.Objects = make([]TLObject, 0, n)
	for i := int32(0); i < n; i++ {
		o := d.Object()
		if d.GetError() != nil {
			return d.GetError()
		}
		m.Objects = append(m.Objects, o)
	}
	return nil
}

func encodeObjectVector[T TLObject](x *EncodeBuf, layer int32, v []T) error {
	x.UInt(CRC32Vector)
	x.Int(int32(len(v)))
	for _, o := range v {
		if err := o.Encode(x, layer); err != nil {
			return err
		}
	}
	return nil
}

func decodeObjectVector[T TLObject](d *DecodeBuf) []T {
	if c := d.UInt(); d.err == nil && c != CRC32Vector {
		d.SetError(errNotVector(c))
		return nil
	}
	n := d.Int()
	if d.err != nil {
		return nil
	}
	v := make([]T, 0, n)
	for i := int32(0); i < n; i++ {
		o := d.Object()
		if d.err != nil {
			return nil
		}
		t, ok := o.(T)
		if !ok {
			d.SetError(errBadElement(o))
			return nil
		}
		v = append(v, t)
	}
	return v
}

type PeerKind int

const (
	PeerUser PeerKind = iota
	PeerChat
	PeerChannel
)

// TLPeer is the discriminated peer reference. Id is the user, chat or
// channel id depending on Kind.
type TLPeer struct {
	Kind PeerKind
	Id   int64
}

func (m *TLPeer) Encode(x *EncodeBuf, layer int32) error {
	switch m.Kind {
	case PeerUser:
		x.UInt(CRC32PeerUser)
	case PeerChat:
		x.UInt(CRC32PeerChat)
	default:
		x.UInt(CRC32PeerChannel)
	}
	x.Long(m.Id)
	return nil
}

func (m *TLPeer) Decode(d *DecodeBuf) error {
	m.Id = d.Long()
	return d.GetError()
}

type InputPeerKind int

const (
	InputPeerEmpty InputPeerKind = iota
	InputPeerSelf
	InputPeerUser
	InputPeerChat
	InputPeerChannel
)

type TLInputPeer struct {
	Kind       InputPeerKind
	Id         int64
	AccessHash int64
}

func (m *TLInputPeer) Encode(x *EncodeBuf, layer int32) error {
	switch m.Kind {
	case InputPeerEmpty:
		x.UInt(CRC32InputPeerEmpty)
	case InputPeerSelf:
		x.UInt(CRC32InputPeerSelf)
	case InputPeerUser:
		x.UInt(CRC32InputPeerUser)
		x.Long(m.Id)
		x.Long(m.AccessHash)
	case InputPeerChat:
		x.UInt(CRC32InputPeerChat)
		x.Long(m.Id)
	case InputPeerChannel:
		x.UInt(CRC32InputPeerChannel)
		x.Long(m.Id)
		x.Long(m.AccessHash)
	}
	return nil
}

func (m *TLInputPeer) Decode(d *DecodeBuf) error {
	switch m.Kind {
	case InputPeerEmpty, InputPeerSelf:
	case InputPeerUser, InputPeerChannel:
		m.Id = d.Long()
		m.AccessHash = d.Long()
	case InputPeerChat:
		m.Id = d.Long()
	}
	return d.GetError()
}

type InputUserKind int

const (
	InputUserEmpty InputUserKind = iota
	InputUserSelf
	InputUserUser
)

type TLInputUser struct {
	Kind       InputUserKind
	UserId     int64
	AccessHash int64
}

func (m *TLInputUser) Encode(x *EncodeBuf, layer int32) error {
	switch m.Kind {
	case InputUserEmpty:
		x.UInt(CRC32InputUserEmpty)
	case InputUserSelf:
		x.UInt(CRC32InputUserSelf)
	case InputUserUser:
		x.UInt(CRC32InputUser)
		x.Long(m.UserId)
		x.Long(m.AccessHash)
	}
	return nil
}

func (m *TLInputUser) Decode(d *DecodeBuf) error {
	if m.Kind == InputUserUser {
		m.UserId = d.Long()
		m.AccessHash = d.Long()
	}
	return d.GetError()
}

// User flag bits.
const (
	userFlagAccessHash = int32(1 << 0)
	userFlagFirstName  = int32(1 << 1)
	userFlagLastName   = int32(1 << 2)
	userFlagUsername   = int32(1 << 3)
	userFlagPhone      = int32(1 << 4)
	userFlagSelf       = int32(1 << 10)
	userFlagContact    = int32(1 << 11)
	userFlagMutual     = int32(1 << 12)
	userFlagDeleted    = int32(1 << 13)
	userFlagBot        = int32(1 << 14)
	userFlagVerified   = int32(1 << 17)
)

type TLUser struct {
	Id            int64
	Self          bool
	Contact       bool
	MutualContact bool
	Deleted       bool
	Bot           bool
	Verified      bool
	AccessHash    *wrapperspb.Int64Value
	FirstName     *wrapperspb.StringValue
	LastName      *wrapperspb.StringValue
	Username      *wrapperspb.StringValue
	Phone         *wrapperspb.StringValue
}

func (m *TLUser) userFlags() int32 {
	var flags int32
	if m.Self {
		flags |= userFlagSelf
	}
	if m.Contact {
		flags |= userFlagContact
	}
	if m.MutualContact {
		flags |= userFlagMutual
	}
	if m.Deleted {
		flags |= userFlagDeleted
	}
	if m.Bot {
		flags |= userFlagBot
	}
	if m.Verified {
		flags |= userFlagVerified
	}
	if m.AccessHash != nil {
		flags |= userFlagAccessHash
	}
	if m.FirstName != nil {
		flags |= userFlagFirstName
	}
	if m.LastName != nil {
		flags |= userFlagLastName
	}
	if m.Username != nil {
		flags |= userFlagUsername
	}
	if m.Phone != nil {
		flags |= userFlagPhone
	}
	return flags
}

func (m *TLUser) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32User)
	x.Int(m.userFlags())
	x.Long(m.Id)
	if m.AccessHash != nil {
		x.Long(m.AccessHash.Value)
	}
	if m.FirstName != nil {
		x.String(m.FirstName.Value)
	}
	if m.LastName != nil {
		x.String(m.LastName.Value)
	}
	if m.Username != nil {
		x.String(m.Username.Value)
	}
	if m.Phone != nil {
		x.String(m.Phone.Value)
	}
	return nil
}

func (m *TLUser) Decode(d *DecodeBuf) error {
	flags := d.Int()
	m.Id = d.Long()
	m.Self = flags&userFlagSelf != 0
	m.Contact = flags&userFlagContact != 0
	m.MutualContact = flags&userFlagMutual != 0
	m.Deleted = flags&userFlagDeleted != 0
	m.Bot = flags&userFlagBot != 0
	m.Verified = flags&userFlagVerified != 0
	if flags&userFlagAccessHash != 0 {
		m.AccessHash = &wrapperspb.Int64Value{Value: d.Long()}
	}
	if flags&userFlagFirstName != 0 {
		m.FirstName = &wrapperspb.StringValue{Value: d.String()}
	}
	if flags&userFlagLastName != 0 {
		m.LastName = &wrapperspb.StringValue{Value: d.String()}
	}
	if flags&userFlagUsername != 0 {
		m.Username = &wrapperspb.StringValue{Value: d.String()}
	}
	if flags&userFlagPhone != 0 {
		m.Phone = &wrapperspb.StringValue{Value: d.String()}
	}
	return d.GetError()
}

// TLChat covers both basic chats and channels; channels additionally
// carry an access hash.
type TLChat struct {
	Channel    bool
	Id         int64
	Title      string
	AccessHash *wrapperspb.Int64Value
	ParticipantsCount int32
	Date       int32
}

func (m *TLChat) Encode(x *EncodeBuf, layer int32) error {
	if m.Channel {
		x.UInt(CRC32Channel)
		var flags int32
		if m.AccessHash != nil {
			flags |= 1 << 13
		}
		x.Int(flags)
		x.Long(m.Id)
		if m.AccessHash != nil {
			x.Long(m.AccessHash.Value)
		}
		x.String(m.Title)
		x.Int(m.Date)
		return nil
	}
	x.UInt(CRC32Chat)
	x.Long(m.Id)
	x.String(m.Title)
	x.Int(m.ParticipantsCount)
	x.Int(m.Date)
	return nil
}

func (m *TLChat) Decode(d *DecodeBuf) error {
	if m.Channel {
		flags := d.Int()
		m.Id = d.Long()
		if flags&(1<<13) != 0 {
			m.AccessHash = &wrapperspb.Int64Value{Value: d.Long()}
		}
		m.Title = d.String()
		m.Date = d.Int()
		return d.GetError()
	}
	m.Id = d.Long()
	m.Title = d.String()
	m.ParticipantsCount = d.Int()
	m.Date = d.Int()
	return d.GetError()
}

const (
	dialogFlagPinned = int32(1 << 2)
)

type TLDialog struct {
	Pinned          bool
	Peer            *TLPeer
	TopMessage      int32
	ReadInboxMaxId  int32
	ReadOutboxMaxId int32
	UnreadCount     int32
}

func (m *TLDialog) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32Dialog)
	var flags int32
	if m.Pinned {
		flags |= dialogFlagPinned
	}
	x.Int(flags)
	if err := m.Peer.Encode(x, layer); err != nil {
		return err
	}
	x.Int(m.TopMessage)
	x.Int(m.ReadInboxMaxId)
	x.Int(m.ReadOutboxMaxId)
	x.Int(m.UnreadCount)
	return nil
}

func (m *TLDialog) Decode(d *DecodeBuf) error {
	flags := d.Int()
	m.Pinned = flags&dialogFlagPinned != 0
	if o, ok := d.Object().(*TLPeer); ok {
		m.Peer = o
	} else {
		d.SetError(errBadElement(nil))
	}
	m.TopMessage = d.Int()
	m.ReadInboxMaxId = d.Int()
	m.ReadOutboxMaxId = d.Int()
	m.UnreadCount = d.Int()
	return d.GetError()
}

const (
	messageFlagOut     = int32(1 << 1)
	messageFlagFwdFrom = int32(1 << 2)
	messageFlagMention = int32(1 << 4)
)

type TLMessage struct {
	Out       bool
	Mentioned bool
	Id        int32
	FromId    int64
	PeerId    *TLPeer
	FwdFrom   *TLMessageFwdHeader
	Date      int32
	Message   string
}

func (m *TLMessage) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32Message)
	var flags int32
	if m.Out {
		flags |= messageFlagOut
	}
	if m.Mentioned {
		flags |= messageFlagMention
	}
	if m.FwdFrom != nil {
		flags |= messageFlagFwdFrom
	}
	x.Int(flags)
	x.Int(m.Id)
	x.Long(m.FromId)
	if err := m.PeerId.Encode(x, layer); err != nil {
		return err
	}
	if m.FwdFrom != nil {
		if err := m.FwdFrom.Encode(x, layer); err != nil {
			return err
		}
	}
	x.Int(m.Date)
	x.String(m.Message)
	return nil
}

func (m *TLMessage) Decode(d *DecodeBuf) error {
	flags := d.Int()
	m.Out = flags&messageFlagOut != 0
	m.Mentioned = flags&messageFlagMention != 0
	m.Id = d.Int()
	m.FromId = d.Long()
	if o, ok := d.Object().(*TLPeer); ok {
		m.PeerId = o
	} else {
		d.SetError(errBadElement(nil))
	}
	if flags&messageFlagFwdFrom != 0 {
		if o, ok := d.Object().(*TLMessageFwdHeader); ok {
			m.FwdFrom = o
		} else {
			d.SetError(errBadElement(nil))
		}
	}
	m.Date = d.Int()
	m.Message = d.String()
	return d.GetError()
}

const (
	fwdFlagFromId   = int32(1 << 0)
	fwdFlagFromName = int32(1 << 5)
)

type TLMessageFwdHeader struct {
	FromId   *TLPeer
	FromName *wrapperspb.StringValue
	Date     int32
}

func (m *TLMessageFwdHeader) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32MessageFwdHeader)
	var flags int32
	if m.FromId != nil {
		flags |= fwdFlagFromId
	}
	if m.FromName != nil {
		flags |= fwdFlagFromName
	}
	x.Int(flags)
	if m.FromId != nil {
		if err := m.FromId.Encode(x, layer); err != nil {
			return err
		}
	}
	if m.FromName != nil {
		x.String(m.FromName.Value)
	}
	x.Int(m.Date)
	return nil
}

func (m *TLMessageFwdHeader) Decode(d *DecodeBuf) error {
	flags := d.Int()
	if flags&fwdFlagFromId != 0 {
		if o, ok := d.Object().(*TLPeer); ok {
			m.FromId = o
		} else {
			d.SetError(errBadElement(nil))
		}
	}
	if flags&fwdFlagFromName != 0 {
		m.FromName = &wrapperspb.StringValue{Value: d.String()}
	}
	m.Date = d.Int()
	return d.GetError()
}

type TLContact struct {
	UserId int64
	Mutual bool
}

func (m *TLContact) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32Contact)
	x.Long(m.UserId)
	x.Bool(m.Mutual)
	return nil
}

func (m *TLContact) Decode(d *DecodeBuf) error {
	m.UserId = d.Long()
	m.Mutual = d.Bool()
	return d.GetError()
}

type TLDcOption struct {
	Ipv6      bool
	MediaOnly bool
	Id        int32
	IpAddress string
	Port      int32
}

const (
	dcOptionFlagIpv6      = int32(1 << 0)
	dcOptionFlagMediaOnly = int32(1 << 1)
)

func (m *TLDcOption) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32DcOption)
	var flags int32
	if m.Ipv6 {
		flags |= dcOptionFlagIpv6
	}
	if m.MediaOnly {
		flags |= dcOptionFlagMediaOnly
	}
	x.Int(flags)
	x.Int(m.Id)
	x.String(m.IpAddress)
	x.Int(m.Port)
	return nil
}

func (m *TLDcOption) Decode(d *DecodeBuf) error {
	flags := d.Int()
	m.Ipv6 = flags&dcOptionFlagIpv6 != 0
	m.MediaOnly = flags&dcOptionFlagMediaOnly != 0
	m.Id = d.Int()
	m.IpAddress = d.String()
	m.Port = d.Int()
	return d.GetError()
}

type TLConfig struct {
	Date             int32
	Expires          int32
	TestMode         bool
	ThisDc           int32
	DcOptions        []*TLDcOption
	ChatSizeMax      int32
	MegagroupSizeMax int32
	OfflineBlurTimeoutMs int32
}

func (m *TLConfig) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32Config)
	x.Int(m.Date)
	x.Int(m.Expires)
	x.Bool(m.TestMode)
	x.Int(m.ThisDc)
	if err := encodeObjectVector(x, layer, m.DcOptions); err != nil {
		return err
	}
	x.Int(m.ChatSizeMax)
	x.Int(m.MegagroupSizeMax)
	x.Int(m.OfflineBlurTimeoutMs)
	return nil
}

func (m *TLConfig) Decode(d *DecodeBuf) error {
	m.Date = d.Int()
	m.Expires = d.Int()
	m.TestMode = d.Bool()
	m.ThisDc = d.Int()
	m.DcOptions = decodeObjectVector[*TLDcOption](d)
	m.ChatSizeMax = d.Int()
	m.MegagroupSizeMax = d.Int()
	m.OfflineBlurTimeoutMs = d.Int()
	return d.GetError()
}

type TLNearestDc struct {
	Country   string
	ThisDc    int32
	NearestDc int32
}

func (m *TLNearestDc) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32NearestDc)
	x.String(m.Country)
	x.Int(m.ThisDc)
	x.Int(m.NearestDc)
	return nil
}

func (m *TLNearestDc) Decode(d *DecodeBuf) error {
	m.Country = d.String()
	m.ThisDc = d.Int()
	m.NearestDc = d.Int()
	return d.GetError()
}

type TLAuthSentCode struct {
	PhoneCodeHash string
	CodeLength    int32
	Timeout       *wrapperspb.Int32Value
}

func (m *TLAuthSentCode) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32AuthSentCode)
	var flags int32
	if m.Timeout != nil {
		flags |= 1 << 2
	}
	x.Int(flags)
	x.String(m.PhoneCodeHash)
	x.Int(m.CodeLength)
	if m.Timeout != nil {
		x.Int(m.Timeout.Value)
	}
	return nil
}

func (m *TLAuthSentCode) Decode(d *DecodeBuf) error {
	flags := d.Int()
	m.PhoneCodeHash = d.String()
	m.CodeLength = d.Int()
	if flags&(1<<2) != 0 {
		m.Timeout = &wrapperspb.Int32Value{Value: d.Int()}
	}
	return d.GetError()
}

type TLAuthAuthorization struct {
	User *TLUser
}

func (m *TLAuthAuthorization) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32AuthAuthorization)
	return m.User.Encode(x, layer)
}

func (m *TLAuthAuthorization) Decode(d *DecodeBuf) error {
	if o, ok := d.Object().(*TLUser); ok {
		m.User = o
	} else {
		d.SetError(errBadElement(nil))
	}
	return d.GetError()
}

type TLUsersUserFull struct {
	User  *TLUser
	About string
	Users []*TLUser
}

func (m *TLUsersUserFull) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32UsersUserFull)
	if err := m.User.Encode(x, layer); err != nil {
		return err
	}
	x.String(m.About)
	return encodeObjectVector(x, layer, m.Users)
}

func (m *TLUsersUserFull) Decode(d *DecodeBuf) error {
	if o, ok := d.Object().(*TLUser); ok {
		m.User = o
	} else {
		d.SetError(errBadElement(nil))
	}
	m.About = d.String()
	m.Users = decodeObjectVector[*TLUser](d)
	return d.GetError()
}

type TLMessagesDialogs struct {
	Dialogs  []*TLDialog
	Messages []*TLMessage
	Chats    []*TLChat
	Users    []*TLUser
}

func (m *TLMessagesDialogs) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32MessagesDialogs)
	if err := encodeObjectVector(x, layer, m.Dialogs); err != nil {
		return err
	}
	if err := encodeObjectVector(x, layer, m.Messages); err != nil {
		return err
	}
	if err := encodeObjectVector(x, layer, m.Chats); err != nil {
		return err
	}
	return encodeObjectVector(x, layer, m.Users)
}

func (m *TLMessagesDialogs) Decode(d *DecodeBuf) error {
	m.Dialogs = decodeObjectVector[*TLDialog](d)
	m.Messages = decodeObjectVector[*TLMessage](d)
	m.Chats = decodeObjectVector[*TLChat](d)
	m.Users = decodeObjectVector[*TLUser](d)
	return d.GetError()
}

type TLMessagesMessages struct {
	Messages []*TLMessage
	Chats    []*TLChat
	Users    []*TLUser
}

func (m *TLMessagesMessages) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32MessagesMessages)
	if err := encodeObjectVector(x, layer, m.Messages); err != nil {
		return err
	}
	if err := encodeObjectVector(x, layer, m.Chats); err != nil {
		return err
	}
	return encodeObjectVector(x, layer, m.Users)
}

func (m *TLMessagesMessages) Decode(d *DecodeBuf) error {
	m.Messages = decodeObjectVector[*TLMessage](d)
	m.Chats = decodeObjectVector[*TLChat](d)
	m.Users = decodeObjectVector[*TLUser](d)
	return d.GetError()
}

type TLContactsContacts struct {
	Contacts   []*TLContact
	SavedCount int32
	Users      []*TLUser
}

func (m *TLContactsContacts) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32ContactsContacts)
	if err := encodeObjectVector(x, layer, m.Contacts); err != nil {
		return err
	}
	x.Int(m.SavedCount)
	return encodeObjectVector(x, layer, m.Users)
}

func (m *TLContactsContacts) Decode(d *DecodeBuf) error {
	m.Contacts = decodeObjectVector[*TLContact](d)
	m.SavedCount = d.Int()
	m.Users = decodeObjectVector[*TLUser](d)
	return d.GetError()
}

type TLUpdateShortSentMessage struct {
	Out      bool
	Id       int32
	Pts      int32
	PtsCount int32
	Date     int32
}

func (m *TLUpdateShortSentMessage) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32UpdateShortSentMessage)
	var flags int32
	if m.Out {
		flags |= 1 << 1
	}
	x.Int(flags)
	x.Int(m.Id)
	x.Int(m.Pts)
	x.Int(m.PtsCount)
	x.Int(m.Date)
	return nil
}

func (m *TLUpdateShortSentMessage) Decode(d *DecodeBuf) error {
	flags := d.Int()
	m.Out = flags&(1<<1) != 0
	m.Id = d.Int()
	m.Pts = d.Int()
	m.PtsCount = d.Int()
	m.Date = d.Int()
	return d.GetError()
}
