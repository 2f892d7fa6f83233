package server

import (
	"github.com/go-faster/errors"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/xurwy/tgserver/mtproto"
)

type AuthRpcOperation struct {
	layer *RpcLayer

	sendCode *mtproto.TLAuthSendCode2
	signIn   *mtproto.TLAuthSignIn
}

type AuthOperationFactory struct{}

func (AuthOperationFactory) Functions() []uint32 {
	return []uint32{
		mtproto.CRC32AuthSendCode,
		mtproto.CRC32AuthSignIn,
	}
}

func (AuthOperationFactory) Process(layer *RpcLayer, ctx *ProcessingContext) (*Operation, error) {
	op := &AuthRpcOperation{layer: layer}
	switch o := ctx.Object.(type) {
	case *mtproto.TLAuthSendCode2:
		op.sendCode = o
		return &Operation{Kind: mtproto.CRC32AuthSendCode, Run: op.runSendCode}, nil
	case *mtproto.TLAuthSignIn:
		op.signIn = o
		return &Operation{Kind: mtproto.CRC32AuthSignIn, Run: op.runSignIn}, nil
	default:
		return nil, errors.Errorf("auth: unexpected object %T", ctx.Object)
	}
}

func (op *AuthRpcOperation) runSendCode() (mtproto.TLObject, *RpcError) {
	if op.layer.User() != nil {
		return nil, ErrSessionPasswordNeeded
	}
	if op.sendCode.PhoneNumber == "" {
		return nil, ErrPhoneNumberInvalid
	}
	pc, codeLen := op.layer.Api().CreatePhoneCode(op.layer.helper.AuthKeyId(), op.sendCode.PhoneNumber)
	return &mtproto.TLAuthSentCode{
		PhoneCodeHash: pc.Hash,
		CodeLength:    codeLen,
		Timeout:       &wrapperspb.Int32Value{Value: 60},
	}, nil
}

func (op *AuthRpcOperation) runSignIn() (mtproto.TLObject, *RpcError) {
	user, rpcErr := op.layer.Api().SignIn(
		op.layer.helper.AuthKeyId(),
		op.signIn.PhoneNumber,
		op.signIn.PhoneCodeHash,
		op.signIn.PhoneCode,
	)
	if rpcErr != nil {
		return nil, rpcErr
	}
	op.layer.Session().SetUser(user)
	return &mtproto.TLAuthAuthorization{User: user.ToTL(user)}, nil
}
