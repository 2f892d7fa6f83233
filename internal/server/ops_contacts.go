package server

import (
	"github.com/go-faster/errors"

	"github.com/xurwy/tgserver/mtproto"
)

type ContactsRpcOperation struct {
	layer *RpcLayer

	getContacts *mtproto.TLContactsGetContacts
}

type ContactsOperationFactory struct{}

func (ContactsOperationFactory) Functions() []uint32 {
	return []uint32{
		mtproto.CRC32ContactsGetContacts,
	}
}

func (ContactsOperationFactory) Process(layer *RpcLayer, ctx *ProcessingContext) (*Operation, error) {
	op := &ContactsRpcOperation{layer: layer}
	switch o := ctx.Object.(type) {
	case *mtproto.TLContactsGetContacts:
		op.getContacts = o
		return &Operation{Kind: mtproto.CRC32ContactsGetContacts, Run: op.runGetContacts}, nil
	default:
		return nil, errors.Errorf("contacts: unexpected object %T", ctx.Object)
	}
}

func (op *ContactsRpcOperation) runGetContacts() (mtproto.TLObject, *RpcError) {
	self := op.layer.User()
	if self == nil {
		return nil, ErrAuthKeyUnregistered
	}
	result := &mtproto.TLContactsContacts{
		Contacts:   make([]*mtproto.TLContact, 0, len(self.Contacts)),
		SavedCount: int32(len(self.Contacts)),
		Users:      make([]*mtproto.TLUser, 0, len(self.Contacts)),
	}
	for _, id := range self.Contacts {
		u := op.layer.Api().GetUserById(id)
		if u == nil {
			continue
		}
		result.Contacts = append(result.Contacts, &mtproto.TLContact{UserId: id, Mutual: contains(u, self.Id)})
		result.Users = append(result.Users, u.ToTL(self))
	}
	return result, nil
}
