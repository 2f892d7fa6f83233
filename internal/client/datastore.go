package client

import (
	"sync"

	"go.uber.org/zap"

	"github.com/xurwy/tgserver/internal/logutil"
	"github.com/xurwy/tgserver/mtproto"
)

// DataStore keeps the client-side write-through caches: users, chats,
// dialogs, messages and the contact list. Ingest is an idempotent
// upsert; lookups return the stored value and treat absence as a soft
// miss. Entries are never deleted here.
type DataStore struct {
	mu sync.Mutex

	users           map[int64]*mtproto.TLUser
	chats           map[int64]*mtproto.TLChat
	dialogs         []*mtproto.TLDialog
	clientMessages  map[int32]*mtproto.TLMessage
	channelMessages map[uint64]*mtproto.TLMessage
	contactList     []int64
	selfUserId      int64

	logger *zap.Logger
}

func NewDataStore() *DataStore {
	return &DataStore{
		users:           make(map[int64]*mtproto.TLUser),
		chats:           make(map[int64]*mtproto.TLChat),
		clientMessages:  make(map[int32]*mtproto.TLMessage),
		channelMessages: make(map[uint64]*mtproto.TLMessage),
		logger:          logutil.L("data.store"),
	}
}

// ChannelMessageKey namespaces channel message ids per channel so they
// never collide with plain-chat ids, which are used alone.
func ChannelMessageKey(channelId int64, messageId int32) uint64 {
	return uint64(channelId)<<32 | uint64(uint32(messageId))
}

func (s *DataStore) SelfUserId() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selfUserId
}

// ProcessUser upserts one user. A second self user with a different id
// violates the process-wide uniqueness invariant; the newer value wins
// with a warning.
func (s *DataStore) ProcessUser(user *mtproto.TLUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Id] = user
	if user.Self {
		if s.selfUserId != 0 && s.selfUserId != user.Id {
			s.logger.Warn("got self user with different id",
				zap.Int64("known", s.selfUserId), zap.Int64("got", user.Id))
		}
		s.selfUserId = user.Id
	}
}

func (s *DataStore) ProcessUsers(users []*mtproto.TLUser) {
	for _, u := range users {
		s.ProcessUser(u)
	}
}

func (s *DataStore) ProcessChat(chat *mtproto.TLChat) {
	s.mu.Lock()
	s.chats[chat.Id] = chat
	s.mu.Unlock()
}

func (s *DataStore) ProcessChats(chats []*mtproto.TLChat) {
	for _, c := range chats {
		s.ProcessChat(c)
	}
}

// ProcessMessage stores a message under the plain or channel key space
// depending on its peer.
func (s *DataStore) ProcessMessage(m *mtproto.TLMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.PeerId != nil && m.PeerId.Kind == mtproto.PeerChannel {
		s.channelMessages[ChannelMessageKey(m.PeerId.Id, m.Id)] = m
	} else {
		s.clientMessages[m.Id] = m
	}
}

// ProcessDialogs ingests a messages.dialogs result wholesale.
func (s *DataStore) ProcessDialogs(d *mtproto.TLMessagesDialogs) {
	s.mu.Lock()
	s.dialogs = d.Dialogs
	s.mu.Unlock()
	s.ProcessUsers(d.Users)
	s.ProcessChats(d.Chats)
	for _, m := range d.Messages {
		s.ProcessMessage(m)
	}
}

// ProcessMessages ingests a messages.messages result.
func (s *DataStore) ProcessMessages(m *mtproto.TLMessagesMessages) {
	s.ProcessUsers(m.Users)
	s.ProcessChats(m.Chats)
	for _, msg := range m.Messages {
		s.ProcessMessage(msg)
	}
}

// ProcessAuthorization ingests the signed-in user.
func (s *DataStore) ProcessAuthorization(a *mtproto.TLAuthAuthorization) {
	s.ProcessUser(a.User)
}

// SetContactList replaces the ordered contact list.
func (s *DataStore) SetContactList(contacts []*mtproto.TLContact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contactList = make([]int64, 0, len(contacts))
	for _, c := range contacts {
		s.contactList = append(s.contactList, c.UserId)
	}
}

func (s *DataStore) ContactList() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.contactList))
	copy(out, s.contactList)
	return out
}

// GetUser returns the cached user; absence is a soft miss.
func (s *DataStore) GetUser(id int64) (*mtproto.TLUser, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		s.logger.Debug("unknown user", zap.Int64("id", id))
	}
	return u, ok
}

func (s *DataStore) GetChat(id int64) (*mtproto.TLChat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok {
		s.logger.Debug("unknown chat", zap.Int64("id", id))
	}
	return c, ok
}

func (s *DataStore) Dialogs() []*mtproto.TLDialog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*mtproto.TLDialog, len(s.dialogs))
	copy(out, s.dialogs)
	return out
}

// GetMessage looks a message up by peer and id, using the channel key
// space for channel peers.
func (s *DataStore) GetMessage(peer *mtproto.TLPeer, messageId int32) (*mtproto.TLMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var m *mtproto.TLMessage
	var ok bool
	if peer.Kind == mtproto.PeerChannel {
		m, ok = s.channelMessages[ChannelMessageKey(peer.Id, messageId)]
	} else {
		m, ok = s.clientMessages[messageId]
	}
	if !ok {
		s.logger.Debug("unknown message",
			zap.Int64("peer", peer.Id), zap.Int32("message_id", messageId))
	}
	return m, ok
}

// ForwardFromPeer extracts the forward origin of a stored message when
// its header carries one.
func (s *DataStore) ForwardFromPeer(peer *mtproto.TLPeer, messageId int32) (*mtproto.TLPeer, bool) {
	m, ok := s.GetMessage(peer, messageId)
	if !ok || m.FwdFrom == nil || m.FwdFrom.FromId == nil {
		return nil, false
	}
	return m.FwdFrom.FromId, true
}

// ToInputPeer resolves a peer into its outbound form, substituting the
// self shortcut and attaching access hashes where the protocol wants
// them. Unknown peers degrade to InputPeerEmpty with a warning.
func (s *DataStore) ToInputPeer(peer *mtproto.TLPeer) *mtproto.TLInputPeer {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch peer.Kind {
	case mtproto.PeerChat:
		return &mtproto.TLInputPeer{Kind: mtproto.InputPeerChat, Id: peer.Id}
	case mtproto.PeerChannel:
		if chat, ok := s.chats[peer.Id]; ok && chat.AccessHash != nil {
			return &mtproto.TLInputPeer{
				Kind:       mtproto.InputPeerChannel,
				Id:         peer.Id,
				AccessHash: chat.AccessHash.Value,
			}
		}
		s.logger.Warn("unknown channel", zap.Int64("id", peer.Id))
		return &mtproto.TLInputPeer{Kind: mtproto.InputPeerEmpty}
	case mtproto.PeerUser:
		if peer.Id == s.selfUserId {
			return &mtproto.TLInputPeer{Kind: mtproto.InputPeerSelf}
		}
		if user, ok := s.users[peer.Id]; ok && user.AccessHash != nil {
			return &mtproto.TLInputPeer{
				Kind:       mtproto.InputPeerUser,
				Id:         peer.Id,
				AccessHash: user.AccessHash.Value,
			}
		}
		s.logger.Warn("unknown user", zap.Int64("id", peer.Id))
		return &mtproto.TLInputPeer{Kind: mtproto.InputPeerEmpty}
	default:
		s.logger.Warn("unknown peer kind", zap.Int("kind", int(peer.Kind)))
		return &mtproto.TLInputPeer{Kind: mtproto.InputPeerEmpty}
	}
}
