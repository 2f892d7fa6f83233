package server

import (
	"crypto/rand"
	"encoding/binary"

	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/xurwy/tgserver/mtproto"
)

// User is the authoritative server-side user record.
type User struct {
	Id         int64
	AccessHash int64
	Phone      string
	FirstName  string
	LastName   string
	Username   string
	About      string
	Contacts   []int64 // ordered contact user ids
}

// ToTL renders the record for a given requester: self flag for the
// owner; phone for the owner and for users in the requester's contacts,
// the latter also flagged as contacts; access hash always (this server
// has no privacy layers).
func (u *User) ToTL(requester *User) *mtproto.TLUser {
	self := requester != nil && requester.Id == u.Id
	tl := &mtproto.TLUser{
		Id:         u.Id,
		Self:       self,
		AccessHash: &wrapperspb.Int64Value{Value: u.AccessHash},
		FirstName:  &wrapperspb.StringValue{Value: u.FirstName},
	}
	if u.LastName != "" {
		tl.LastName = &wrapperspb.StringValue{Value: u.LastName}
	}
	if u.Username != "" {
		tl.Username = &wrapperspb.StringValue{Value: u.Username}
	}
	if self || contains(requester, u.Id) {
		tl.Phone = &wrapperspb.StringValue{Value: u.Phone}
		tl.Contact = !self
	}
	return tl
}

func contains(requester *User, id int64) bool {
	if requester == nil {
		return false
	}
	for _, c := range requester.Contacts {
		if c == id {
			return true
		}
	}
	return false
}

// GenerateAccessHash draws a random non-zero 64-bit hash.
func GenerateAccessHash() int64 {
	var b [8]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			panic(err)
		}
		if v := int64(binary.LittleEndian.Uint64(b[:])); v != 0 {
			return v
		}
	}
}
