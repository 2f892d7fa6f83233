package server

import (
	"github.com/go-faster/errors"

	"github.com/xurwy/tgserver/mtproto"
)

type MessagesRpcOperation struct {
	layer *RpcLayer

	sendMessage *mtproto.TLMessagesSendMessage
	getHistory  *mtproto.TLMessagesGetHistory
	getDialogs  *mtproto.TLMessagesGetDialogs
}

type MessagesOperationFactory struct{}

func (MessagesOperationFactory) Functions() []uint32 {
	return []uint32{
		mtproto.CRC32MessagesSendMessage,
		mtproto.CRC32MessagesGetHistory,
		mtproto.CRC32MessagesGetDialogs,
	}
}

func (MessagesOperationFactory) Process(layer *RpcLayer, ctx *ProcessingContext) (*Operation, error) {
	op := &MessagesRpcOperation{layer: layer}
	switch o := ctx.Object.(type) {
	case *mtproto.TLMessagesSendMessage:
		op.sendMessage = o
		return &Operation{Kind: mtproto.CRC32MessagesSendMessage, Run: op.runSendMessage}, nil
	case *mtproto.TLMessagesGetHistory:
		op.getHistory = o
		return &Operation{Kind: mtproto.CRC32MessagesGetHistory, Run: op.runGetHistory}, nil
	case *mtproto.TLMessagesGetDialogs:
		op.getDialogs = o
		return &Operation{Kind: mtproto.CRC32MessagesGetDialogs, Run: op.runGetDialogs}, nil
	default:
		return nil, errors.Errorf("messages: unexpected object %T", ctx.Object)
	}
}

// resolveInputPeerUser maps an InputPeer onto a concrete user. Chats
// and channels are not served by this deployment.
func (op *MessagesRpcOperation) resolveInputPeerUser(peer *mtproto.TLInputPeer, self *User) (*User, *RpcError) {
	switch peer.Kind {
	case mtproto.InputPeerSelf:
		return self, nil
	case mtproto.InputPeerUser:
		u := op.layer.Api().GetUserById(peer.Id)
		if u == nil || (u.Id != self.Id && u.AccessHash != peer.AccessHash) {
			return nil, ErrPeerIdInvalid
		}
		return u, nil
	default:
		return nil, ErrPeerIdInvalid
	}
}

func (op *MessagesRpcOperation) runSendMessage() (mtproto.TLObject, *RpcError) {
	self := op.layer.User()
	if self == nil {
		return nil, ErrAuthKeyUnregistered
	}
	peer, rpcErr := op.resolveInputPeerUser(op.sendMessage.Peer, self)
	if rpcErr != nil {
		return nil, rpcErr
	}
	sent, pts := op.layer.Api().SendMessage(self, peer, op.sendMessage.Message)
	return &mtproto.TLUpdateShortSentMessage{
		Out:      true,
		Id:       sent.Id,
		Pts:      pts,
		PtsCount: 1,
		Date:     sent.Date,
	}, nil
}

func (op *MessagesRpcOperation) runGetHistory() (mtproto.TLObject, *RpcError) {
	self := op.layer.User()
	if self == nil {
		return nil, ErrAuthKeyUnregistered
	}
	peer, rpcErr := op.resolveInputPeerUser(op.getHistory.Peer, self)
	if rpcErr != nil {
		return nil, rpcErr
	}
	limit := op.getHistory.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	history := op.layer.Api().GetHistory(self, peer.Id, limit)
	result := &mtproto.TLMessagesMessages{
		Messages: make([]*mtproto.TLMessage, 0, len(history)),
		Chats:    []*mtproto.TLChat{},
		Users:    op.usersFor(self, peer),
	}
	for _, m := range history {
		result.Messages = append(result.Messages, storedToTL(m))
	}
	return result, nil
}

func (op *MessagesRpcOperation) runGetDialogs() (mtproto.TLObject, *RpcError) {
	self := op.layer.User()
	if self == nil {
		return nil, ErrAuthKeyUnregistered
	}
	dialogs, tops := op.layer.Api().GetDialogs(self)
	result := &mtproto.TLMessagesDialogs{
		Dialogs:  make([]*mtproto.TLDialog, 0, len(dialogs)),
		Messages: make([]*mtproto.TLMessage, 0, len(tops)),
		Chats:    []*mtproto.TLChat{},
		Users:    []*mtproto.TLUser{self.ToTL(self)},
	}
	seen := map[int64]struct{}{self.Id: {}}
	for _, d := range dialogs {
		result.Dialogs = append(result.Dialogs, &mtproto.TLDialog{
			Peer:            &mtproto.TLPeer{Kind: mtproto.PeerUser, Id: d.PeerId},
			TopMessage:      d.TopMessage,
			ReadInboxMaxId:  d.ReadInboxMaxId,
			ReadOutboxMaxId: d.ReadOutboxMaxId,
			UnreadCount:     d.UnreadCount,
		})
		if _, dup := seen[d.PeerId]; !dup {
			seen[d.PeerId] = struct{}{}
			if u := op.layer.Api().GetUserById(d.PeerId); u != nil {
				result.Users = append(result.Users, u.ToTL(self))
			}
		}
	}
	for _, m := range tops {
		result.Messages = append(result.Messages, storedToTL(m))
	}
	return result, nil
}

func (op *MessagesRpcOperation) usersFor(self, peer *User) []*mtproto.TLUser {
	users := []*mtproto.TLUser{self.ToTL(self)}
	if peer.Id != self.Id {
		users = append(users, peer.ToTL(self))
	}
	return users
}

func storedToTL(m *storedMessage) *mtproto.TLMessage {
	return &mtproto.TLMessage{
		Out:     m.Out,
		Id:      m.Id,
		FromId:  m.FromId,
		PeerId:  &mtproto.TLPeer{Kind: mtproto.PeerUser, Id: m.PeerId},
		Date:    m.Date,
		Message: m.Text,
	}
}
