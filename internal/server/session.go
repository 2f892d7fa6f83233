package server

import (
	"sync"
	"time"

	"github.com/xurwy/tgserver/mtproto"
)

// MsgIdVerdict classifies an inbound message id against the session's
// replay and time-window rules.
type MsgIdVerdict int

const (
	MsgIdOk MsgIdVerdict = iota
	MsgIdReplay
	MsgIdRegression
	MsgIdTooOld
	MsgIdTooNew
)

// Session is one logical message stream under an auth key. It survives
// connection drops and may be reattached by a new connection presenting
// the same session id.
type Session struct {
	mu sync.Mutex

	sessionId int64
	authKeyId int64

	conn *Connection
	user *User

	lastInMsgId int64
	seenMsgIds  map[int64]struct{}

	outContentSeq int32

	pendingAcks []int64

	announced bool // new_session_created sent
}

func NewSession(sessionId, authKeyId int64) *Session {
	return &Session{
		sessionId:  sessionId,
		authKeyId:  authKeyId,
		seenMsgIds: make(map[int64]struct{}),
	}
}

func (s *Session) SessionId() int64 {
	return s.sessionId
}

func (s *Session) AuthKeyId() int64 {
	return s.authKeyId
}

// BindConnection attaches the session to a connection, detaching it
// from the previous one first so exactly one live connection exists.
func (s *Session) BindConnection(c *Connection) {
	s.mu.Lock()
	prev := s.conn
	s.conn = c
	s.mu.Unlock()
	if prev != nil && prev != c {
		prev.sessionDetached()
	}
}

// DetachConnection clears the binding if it still points at c.
func (s *Session) DetachConnection(c *Connection) {
	s.mu.Lock()
	if s.conn == c {
		s.conn = nil
	}
	s.mu.Unlock()
}

func (s *Session) Connection() *Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

func (s *Session) SetUser(u *User) {
	s.mu.Lock()
	s.user = u
	s.mu.Unlock()
}

func (s *Session) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// MarkAnnounced reports whether new_session_created was already sent,
// marking it sent on first call.
func (s *Session) MarkAnnounced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.announced {
		return true
	}
	s.announced = true
	return false
}

// CheckInboundMsgId enforces replay protection and the time window:
// the id must be unseen, strictly above the high-water mark, and its
// time part within ±300 s of now. A passing id becomes the new mark.
func (s *Session) CheckInboundMsgId(msgId int64, now time.Time) MsgIdVerdict {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.seenMsgIds[msgId]; seen {
		return MsgIdReplay
	}
	if msgId <= s.lastInMsgId {
		return MsgIdRegression
	}
	t := mtproto.MsgIDTime(msgId)
	if t.Before(now.Add(-mtproto.MsgIDValidityWindow)) {
		return MsgIdTooOld
	}
	if t.After(now.Add(mtproto.MsgIDValidityWindow)) {
		return MsgIdTooNew
	}
	s.seenMsgIds[msgId] = struct{}{}
	s.lastInMsgId = msgId
	return MsgIdOk
}

// NextOutSeqNo issues the next outbound seq_no: odd for content
// messages, even for pure service traffic.
func (s *Session) NextOutSeqNo(contentRelated bool) int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if contentRelated {
		seq := s.outContentSeq*2 + 1
		s.outContentSeq++
		return seq
	}
	return s.outContentSeq * 2
}

// AddPendingAck queues an inbound content message id for
// acknowledgement.
func (s *Session) AddPendingAck(msgId int64) {
	s.mu.Lock()
	s.pendingAcks = append(s.pendingAcks, msgId)
	s.mu.Unlock()
}

// TakePendingAcks drains the queued acks.
func (s *Session) TakePendingAcks() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	acks := s.pendingAcks
	s.pendingAcks = nil
	return acks
}
