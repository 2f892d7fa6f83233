package server

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"math/big"
	"sync"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xurwy/tgserver/internal/dcconfig"
	"github.com/xurwy/tgserver/internal/logutil"
	"github.com/xurwy/tgserver/internal/server/storage"
	"github.com/xurwy/tgserver/mtproto"
	"github.com/xurwy/tgserver/mtproto/crypto"
)

const authKeyCacheSize = 32 << 20

// ServerApi is the shared registry behind every connection: users,
// auth keys, sessions, message boxes and the RPC routing table. All
// public methods are atomic under the internal lock; the operation
// factory table is frozen at startup and read without it.
type ServerApi struct {
	mu sync.Mutex

	users        map[int64]*User
	usersByPhone map[string]*User
	nextUserId   int64

	authKeys map[int64]*crypto.AuthKey
	keyCache *fastcache.Cache
	store    storage.Store // optional persistence, may be nil

	sessions map[int64]*Session

	phoneCodes map[string]*phoneCode

	boxes map[int64]*messageBox

	salt int64

	dcConf *dcconfig.Configuration
	thisDc int32
	rsaKey *crypto.RSAKey

	factories map[uint32]OperationFactory
	frozen    bool

	logger *zap.Logger
}

type phoneCode struct {
	Phone     string
	Code      string
	Hash      string
	AuthKeyId int64
	ExpiresAt time.Time
}

// storedMessage is one owner's copy of a message.
type storedMessage struct {
	Id     int32
	FromId int64
	PeerId int64 // the dialog partner from the owner's point of view
	Out    bool
	Date   int32
	Text   string
}

type dialogState struct {
	PeerId          int64
	TopMessage      int32
	ReadInboxMaxId  int32
	ReadOutboxMaxId int32
	UnreadCount     int32
}

type messageBox struct {
	nextMsgId int32
	pts       int32
	messages  []*storedMessage
	dialogs   map[int64]*dialogState
	order     []int64 // dialog peer ids, most recent first
}

func NewServerApi(dcConf *dcconfig.Configuration, thisDc int32, rsaKey *crypto.RSAKey, store storage.Store) *ServerApi {
	api := &ServerApi{
		users:        make(map[int64]*User),
		usersByPhone: make(map[string]*User),
		nextUserId:   1000,
		authKeys:     make(map[int64]*crypto.AuthKey),
		keyCache:     fastcache.New(authKeyCacheSize),
		store:        store,
		sessions:     make(map[int64]*Session),
		phoneCodes:   make(map[string]*phoneCode),
		boxes:        make(map[int64]*messageBox),
		dcConf:       dcConf,
		thisDc:       thisDc,
		rsaKey:       rsaKey,
		factories:    make(map[uint32]OperationFactory),
		logger:       logutil.L("server.api"),
	}
	api.RotateServerSalt()
	return api
}

// RegisterOperationFactory adds a factory's functions to the routing
// table. Must happen before Freeze; duplicate tags are a programming
// error.
func (api *ServerApi) RegisterOperationFactory(f OperationFactory) {
	api.mu.Lock()
	defer api.mu.Unlock()
	if api.frozen {
		panic("server api: factory registered after freeze")
	}
	for _, fn := range f.Functions() {
		if _, dup := api.factories[fn]; dup {
			panic(errors.Errorf("server api: duplicate function 0x%08x", fn))
		}
		api.factories[fn] = f
	}
}

// Freeze seals the routing table; lookups after this point are
// lock-free.
func (api *ServerApi) Freeze() {
	api.mu.Lock()
	api.frozen = true
	api.mu.Unlock()
}

func (api *ServerApi) FactoryFor(fn uint32) OperationFactory {
	if !api.frozen {
		panic("server api: routing table used before freeze")
	}
	return api.factories[fn]
}

func (api *ServerApi) RSAKey() *crypto.RSAKey {
	return api.rsaKey
}

func (api *ServerApi) DcConfig() (*dcconfig.Configuration, int32) {
	return api.dcConf, api.thisDc
}

// CurrentServerSalt returns the salt every authenticated message must
// carry.
func (api *ServerApi) CurrentServerSalt() int64 {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.salt
}

// RotateServerSalt draws a new salt and returns it.
func (api *ServerApi) RotateServerSalt() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	salt := int64(binary.LittleEndian.Uint64(b[:]))
	api.mu.Lock()
	api.salt = salt
	api.mu.Unlock()
	return salt
}

// RegisterAuthKey records a freshly established key in the registry,
// the lookup cache and, when configured, the persistent store.
func (api *ServerApi) RegisterAuthKey(key *crypto.AuthKey) {
	api.mu.Lock()
	api.authKeys[key.AuthKeyId()] = key
	api.mu.Unlock()
	api.keyCache.Set(authKeyCacheKey(key.AuthKeyId()), key.AuthKey())
	if api.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := api.store.SaveAuthKey(ctx, key.AuthKeyId(), key.AuthKey()); err != nil {
			api.logger.Warn("auth key not persisted", zap.Error(err))
		}
	}
}

// GetAuthKeyById resolves an auth key by id: registry, then cache, then
// the persistent store. Returns nil when unknown.
func (api *ServerApi) GetAuthKeyById(id int64) *crypto.AuthKey {
	api.mu.Lock()
	if key, ok := api.authKeys[id]; ok {
		api.mu.Unlock()
		return key
	}
	api.mu.Unlock()
	if raw := api.keyCache.Get(nil, authKeyCacheKey(id)); len(raw) == 256 {
		key := crypto.NewAuthKey(id, raw)
		api.mu.Lock()
		api.authKeys[id] = key
		api.mu.Unlock()
		return key
	}
	if api.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	raw, err := api.store.GetAuthKey(ctx, id)
	if err != nil {
		api.logger.Warn("auth key lookup failed", zap.Error(err))
		return nil
	}
	if len(raw) != 256 {
		return nil
	}
	key := crypto.NewAuthKey(id, raw)
	api.mu.Lock()
	api.authKeys[id] = key
	api.mu.Unlock()
	api.keyCache.Set(authKeyCacheKey(id), raw)
	return key
}

func authKeyCacheKey(id int64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(id))
	return b[:]
}

// FindOrCreateSession returns the session for (auth_key_id,
// session_id), creating it lazily on first sight.
func (api *ServerApi) FindOrCreateSession(authKeyId, sessionId int64) (*Session, bool) {
	api.mu.Lock()
	defer api.mu.Unlock()
	if s, ok := api.sessions[sessionId]; ok {
		return s, false
	}
	s := NewSession(sessionId, authKeyId)
	api.sessions[sessionId] = s
	return s, true
}

// DestroySession drops a session from the registry.
func (api *ServerApi) DestroySession(sessionId int64) bool {
	api.mu.Lock()
	defer api.mu.Unlock()
	if _, ok := api.sessions[sessionId]; !ok {
		return false
	}
	delete(api.sessions, sessionId)
	return true
}

// CreateUser registers a new user under the given phone number.
func (api *ServerApi) CreateUser(phone, firstName, lastName string) *User {
	api.mu.Lock()
	api.nextUserId++
	u := &User{
		Id:         api.nextUserId,
		AccessHash: GenerateAccessHash(),
		Phone:      phone,
		FirstName:  firstName,
		LastName:   lastName,
	}
	api.users[u.Id] = u
	api.usersByPhone[phone] = u
	api.mu.Unlock()
	if api.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		doc := &storage.UserDoc{
			ID:         u.Id,
			AccessHash: u.AccessHash,
			FirstName:  u.FirstName,
			LastName:   u.LastName,
			Phone:      u.Phone,
		}
		if err := api.store.SaveUser(ctx, doc); err != nil {
			api.logger.Warn("user not persisted", zap.Error(err))
		}
	}
	return u
}

func (api *ServerApi) GetUserById(id int64) *User {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.users[id]
}

func (api *ServerApi) GetUserByPhone(phone string) *User {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.usersByPhone[phone]
}

// GetUser resolves an InputUser for a requester. InputUserSelf needs a
// bound requester; a concrete id must exist and, when the requester is
// not the target, match the access hash.
func (api *ServerApi) GetUser(input *mtproto.TLInputUser, requester *User) *User {
	switch input.Kind {
	case mtproto.InputUserSelf:
		return requester
	case mtproto.InputUserUser:
		u := api.GetUserById(input.UserId)
		if u == nil {
			return nil
		}
		if requester != nil && requester.Id == u.Id {
			return u
		}
		if input.AccessHash != u.AccessHash {
			return nil
		}
		return u
	default:
		return nil
	}
}

// SetContact records peer in owner's contact list (idempotent).
func (api *ServerApi) SetContact(owner *User, peerId int64) {
	api.mu.Lock()
	defer api.mu.Unlock()
	for _, c := range owner.Contacts {
		if c == peerId {
			return
		}
	}
	owner.Contacts = append(owner.Contacts, peerId)
}

// CreatePhoneCode starts an auth.sendCode flow. The code itself would
// go out via SMS; here it is deterministic for the test harness.
func (api *ServerApi) CreatePhoneCode(authKeyId int64, phone string) (*phoneCode, int32) {
	pc := &phoneCode{
		Phone:     phone,
		Code:      "12345",
		Hash:      crypto.GenerateStringNonce(16),
		AuthKeyId: authKeyId,
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
	api.mu.Lock()
	api.phoneCodes[pc.Hash] = pc
	api.mu.Unlock()
	return pc, int32(len(pc.Code))
}

// SignIn validates a phone code and returns the signed-in user,
// creating the account on first sign-in.
func (api *ServerApi) SignIn(authKeyId int64, phone, hash, code string) (*User, *RpcError) {
	api.mu.Lock()
	pc, ok := api.phoneCodes[hash]
	api.mu.Unlock()
	if !ok {
		return nil, ErrPhoneCodeHashEmpty
	}
	if pc.AuthKeyId != authKeyId {
		return nil, ErrPhoneCodeHashEmpty
	}
	if pc.Phone != phone {
		return nil, ErrPhoneNumberInvalid
	}
	if time.Now().After(pc.ExpiresAt) {
		return nil, ErrPhoneCodeExpired
	}
	if pc.Code != code {
		return nil, ErrPhoneCodeInvalid
	}
	if u := api.GetUserByPhone(phone); u != nil {
		return u, nil
	}
	return api.CreateUser(phone, "", ""), nil
}

func (api *ServerApi) box(ownerId int64) *messageBox {
	b, ok := api.boxes[ownerId]
	if !ok {
		b = &messageBox{dialogs: make(map[int64]*dialogState)}
		api.boxes[ownerId] = b
	}
	return b
}

func (b *messageBox) append(m *storedMessage) {
	b.nextMsgId++
	b.pts++
	m.Id = b.nextMsgId
	b.messages = append(b.messages, m)
	d, ok := b.dialogs[m.PeerId]
	if !ok {
		d = &dialogState{PeerId: m.PeerId}
		b.dialogs[m.PeerId] = d
	}
	d.TopMessage = m.Id
	if m.Out {
		d.ReadOutboxMaxId = m.Id
	} else {
		d.UnreadCount++
	}
	for i, id := range b.order {
		if id == m.PeerId {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	b.order = append([]int64{m.PeerId}, b.order...)
}

// SendMessage stores the message in both parties' boxes and returns
// the sender-side copy plus the sender's new pts.
func (api *ServerApi) SendMessage(from, to *User, text string) (*storedMessage, int32) {
	now := int32(time.Now().Unix())
	api.mu.Lock()
	defer api.mu.Unlock()
	sent := &storedMessage{FromId: from.Id, PeerId: to.Id, Out: true, Date: now, Text: text}
	api.box(from.Id).append(sent)
	if to.Id != from.Id {
		received := &storedMessage{FromId: from.Id, PeerId: from.Id, Out: false, Date: now, Text: text}
		api.box(to.Id).append(received)
	}
	return sent, api.box(from.Id).pts
}

// GetHistory returns the owner's copies for one dialog, newest first.
func (api *ServerApi) GetHistory(owner *User, peerId int64, limit int32) []*storedMessage {
	api.mu.Lock()
	defer api.mu.Unlock()
	b := api.box(owner.Id)
	out := make([]*storedMessage, 0, limit)
	for i := len(b.messages) - 1; i >= 0 && int32(len(out)) < limit; i-- {
		if b.messages[i].PeerId == peerId {
			out = append(out, b.messages[i])
		}
	}
	return out
}

// GetDialogs enumerates the owner's dialogs, most recent first, with
// the top message of each.
func (api *ServerApi) GetDialogs(owner *User) ([]*dialogState, []*storedMessage) {
	api.mu.Lock()
	defer api.mu.Unlock()
	b := api.box(owner.Id)
	dialogs := make([]*dialogState, 0, len(b.order))
	tops := make([]*storedMessage, 0, len(b.order))
	for _, peerId := range b.order {
		d := b.dialogs[peerId]
		dialogs = append(dialogs, d)
		for i := len(b.messages) - 1; i >= 0; i-- {
			if b.messages[i].Id == d.TopMessage {
				tops = append(tops, b.messages[i])
				break
			}
		}
	}
	return dialogs, tops
}

// DhPrime is the 2048-bit safe prime used for the handshake; g = 3.
var (
	DhPrime = []byte{
		0xc7, 0x1c, 0xae, 0xb9, 0xc6, 0xb1, 0xc9, 0x04, 0x8e, 0x6c, 0x52, 0x2f, 0x70, 0xf1, 0x3f, 0x73,
		0x98, 0x0d, 0x40, 0x23, 0x8e, 0x3e, 0x21, 0xc1, 0x49, 0x34, 0xd0, 0x37, 0x56, 0x3d, 0x93, 0x0f,
		0x48, 0x19, 0x8a, 0x0a, 0xa7, 0xc1, 0x40, 0x58, 0x22, 0x94, 0x93, 0xd2, 0x25, 0x30, 0xf4, 0xdb,
		0xfa, 0x33, 0x6f, 0x6e, 0x0a, 0xc9, 0x25, 0x13, 0x95, 0x43, 0xae, 0xd4, 0x4c, 0xce, 0x7c, 0x37,
		0x20, 0xfd, 0x51, 0xf6, 0x94, 0x58, 0x70, 0x5a, 0xc6, 0x8c, 0xd4, 0xfe, 0x6b, 0x6b, 0x13, 0xab,
		0xdc, 0x97, 0x46, 0x51, 0x29, 0x69, 0x32, 0x84, 0x54, 0xf1, 0x8f, 0xaf, 0x8c, 0x59, 0x5f, 0x64,
		0x24, 0x77, 0xfe, 0x96, 0xbb, 0x2a, 0x94, 0x1d, 0x5b, 0xcd, 0x1d, 0x4a, 0xc8, 0xcc, 0x49, 0x88,
		0x07, 0x08, 0xfa, 0x9b, 0x37, 0x8e, 0x3c, 0x4f, 0x3a, 0x90, 0x60, 0xbe, 0xe6, 0x7c, 0xf9, 0xa4,
		0xa4, 0xa6, 0x95, 0x81, 0x10, 0x51, 0x90, 0x7e, 0x16, 0x27, 0x53, 0xb5, 0x6b, 0x0f, 0x6b, 0x41,
		0x0d, 0xba, 0x74, 0xd8, 0xa8, 0x4b, 0x2a, 0x14, 0xb3, 0x14, 0x4e, 0x0e, 0xf1, 0x28, 0x47, 0x54,
		0xfd, 0x17, 0xed, 0x95, 0x0d, 0x59, 0x65, 0xb4, 0xb9, 0xdd, 0x46, 0x58, 0x2d, 0xb1, 0x17, 0x8d,
		0x16, 0x9c, 0x6b, 0xc4, 0x65, 0xb0, 0xd6, 0xff, 0x9c, 0xa3, 0x92, 0x8f, 0xef, 0x5b, 0x9a, 0xe4,
		0xe4, 0x18, 0xfc, 0x15, 0xe8, 0x3e, 0xbe, 0xa0, 0xf8, 0x7f, 0xa9, 0xff, 0x5e, 0xed, 0x70, 0x05,
		0x0d, 0xed, 0x28, 0x49, 0xf4, 0x7b, 0xf9, 0x59, 0xd9, 0x56, 0x85, 0x0c, 0xe9, 0x29, 0x85, 0x1f,
		0x0d, 0x81, 0x15, 0xf6, 0x35, 0xb1, 0x05, 0xee, 0x2e, 0x4e, 0x15, 0xd0, 0x4b, 0x24, 0x54, 0xbf,
		0x6f, 0x4f, 0xad, 0xf0, 0x34, 0xb1, 0x04, 0x03, 0x11, 0x9c, 0xd8, 0xe3, 0xb9, 0x2f, 0xcc, 0x5b,
	}
	DhG        = int32(3)
	DhPrimeInt = new(big.Int).SetBytes(DhPrime)
)

// PqFixture is the composite the server hands out in resPQ
// (0x17ED48941A08F981 = 0x494C553B * 0x53911073).
var PqFixture = []byte{0x17, 0xed, 0x48, 0x94, 0x1a, 0x08, 0xf9, 0x81}
