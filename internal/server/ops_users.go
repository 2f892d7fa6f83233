package server

import (
	"github.com/go-faster/errors"

	"github.com/xurwy/tgserver/mtproto"
)

type UsersRpcOperation struct {
	layer *RpcLayer

	getUsers    *mtproto.TLUsersGetUsers
	getFullUser *mtproto.TLUsersGetFullUser
}

type UsersOperationFactory struct{}

func (UsersOperationFactory) Functions() []uint32 {
	return []uint32{
		mtproto.CRC32UsersGetUsers,
		mtproto.CRC32UsersGetFullUser,
	}
}

func (UsersOperationFactory) Process(layer *RpcLayer, ctx *ProcessingContext) (*Operation, error) {
	op := &UsersRpcOperation{layer: layer}
	switch o := ctx.Object.(type) {
	case *mtproto.TLUsersGetUsers:
		op.getUsers = o
		return &Operation{Kind: mtproto.CRC32UsersGetUsers, Run: op.runGetUsers}, nil
	case *mtproto.TLUsersGetFullUser:
		op.getFullUser = o
		return &Operation{Kind: mtproto.CRC32UsersGetFullUser, Run: op.runGetFullUser}, nil
	default:
		return nil, errors.Errorf("users: unexpected object %T", ctx.Object)
	}
}

func (op *UsersRpcOperation) runGetUsers() (mtproto.TLObject, *RpcError) {
	self := op.layer.User()
	result := &mtproto.TLVector{Objects: make([]mtproto.TLObject, 0, len(op.getUsers.Id))}
	for _, input := range op.getUsers.Id {
		user := op.layer.Api().GetUser(input, self)
		if user == nil {
			return nil, ErrUserIdInvalid
		}
		result.Objects = append(result.Objects, user.ToTL(self))
	}
	return result, nil
}

func (op *UsersRpcOperation) runGetFullUser() (mtproto.TLObject, *RpcError) {
	self := op.layer.User()
	user := op.layer.Api().GetUser(op.getFullUser.Id, self)
	if user == nil {
		return nil, ErrUserIdInvalid
	}
	return &mtproto.TLUsersUserFull{
		User:  user.ToTL(self),
		About: user.About,
		Users: []*mtproto.TLUser{user.ToTL(self)},
	}, nil
}
