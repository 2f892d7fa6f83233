package server

import (
	"github.com/xurwy/tgserver/mtproto"
)

// RpcError is the application-level failure sent back as rpc_error.
// Messages are stable protocol strings.
type RpcError struct {
	Code    int32
	Message string
}

func (e *RpcError) Error() string {
	return e.Message
}

func (e *RpcError) ToTL() *mtproto.TLRpcError {
	return &mtproto.TLRpcError{ErrorCode: e.Code, ErrorMessage: e.Message}
}

var (
	ErrUserIdInvalid         = &RpcError{400, "USER_ID_INVALID"}
	ErrPeerIdInvalid         = &RpcError{400, "PEER_ID_INVALID"}
	ErrMethodInvalid         = &RpcError{400, "METHOD_INVALID"}
	ErrAuthKeyInvalid        = &RpcError{401, "AUTH_KEY_INVALID"}
	ErrAuthKeyUnregistered   = &RpcError{401, "AUTH_KEY_UNREGISTERED"}
	ErrSessionPasswordNeeded = &RpcError{401, "SESSION_PASSWORD_NEEDED"}
	ErrPhoneCodeInvalid      = &RpcError{400, "PHONE_CODE_INVALID"}
	ErrPhoneCodeExpired      = &RpcError{400, "PHONE_CODE_EXPIRED"}
	ErrPhoneCodeHashEmpty    = &RpcError{400, "PHONE_CODE_HASH_EMPTY"}
	ErrPhoneNumberInvalid    = &RpcError{400, "PHONE_NUMBER_INVALID"}
	ErrInternal              = &RpcError{500, "INTERNAL_SERVER_ERROR"}
)

// ProcessingContext carries one decoded RPC call into a factory.
type ProcessingContext struct {
	ReqMsgId int64
	Object   mtproto.TLObject
}

// Operation is a parsed call bound to its run step. Kind is the TL
// function tag; Run executes the selected step and returns either a
// result object or an RPC error.
type Operation struct {
	Kind uint32
	Run  func() (mtproto.TLObject, *RpcError)
}

// OperationFactory parses calls of one namespace. Functions lists the
// tags it serves; Process turns a decoded call into an Operation.
// The tag → factory table is assembled once at startup and immutable
// afterwards.
type OperationFactory interface {
	Functions() []uint32
	Process(layer *RpcLayer, ctx *ProcessingContext) (*Operation, error)
}
