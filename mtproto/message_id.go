package mtproto

import (
	"sync"
	"time"
)

// Message ids carry unix seconds in the high 32 bits and a sub-second
// counter in the low 32. The low two bits name the origin: client
// requests are ≡0 (mod 4), server replies ≡1, server-initiated
// messages ≡3.
const (
	MsgIDModClient       = 0
	MsgIDModServerReply  = 1
	MsgIDModServerUpdate = 3
)

// MsgIDValidityWindow bounds how far an inbound message id's time part
// may drift from server time before the message is dropped.
const MsgIDValidityWindow = 300 * time.Second

var msgIDState struct {
	sync.Mutex
	last   int64
	offset int64 // seconds added to the host clock, see SetClockOffset
}

// SetClockOffset corrects the message-id clock, e.g. from an NTP probe.
func SetClockOffset(d time.Duration) {
	msgIDState.Lock()
	msgIDState.offset = int64(d / time.Second)
	msgIDState.Unlock()
}

// GenerateMessageId returns a fresh client-origin message id, strictly
// greater than any id previously returned by this process.
func GenerateMessageId() int64 {
	return generateMessageID(MsgIDModClient)
}

// GenerateServerMessageId returns a fresh server-origin id; reply ids
// answer a specific request, update ids are server-initiated.
func GenerateServerMessageId(mod int64) int64 {
	return generateMessageID(mod)
}

func generateMessageID(mod int64) int64 {
	msgIDState.Lock()
	defer msgIDState.Unlock()
	now := time.Now()
	id := (now.Unix()+msgIDState.offset)<<32 | int64(now.Nanosecond())&^3 | mod
	if id <= msgIDState.last {
		id = (msgIDState.last&^3 + 4) | mod
	}
	msgIDState.last = id
	return id
}

// MsgIDTime extracts the unix-seconds part of a message id.
func MsgIDTime(msgID int64) time.Time {
	return time.Unix(msgID>>32, 0)
}
