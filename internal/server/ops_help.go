package server

import (
	"time"

	"github.com/go-faster/errors"

	"github.com/xurwy/tgserver/mtproto"
)

type HelpRpcOperation struct {
	layer *RpcLayer

	getConfig    *mtproto.TLHelpGetConfig
	getNearestDc *mtproto.TLHelpGetNearestDc
}

type HelpOperationFactory struct{}

func (HelpOperationFactory) Functions() []uint32 {
	return []uint32{
		mtproto.CRC32HelpGetConfig,
		mtproto.CRC32HelpGetNearestDc,
	}
}

func (HelpOperationFactory) Process(layer *RpcLayer, ctx *ProcessingContext) (*Operation, error) {
	op := &HelpRpcOperation{layer: layer}
	switch o := ctx.Object.(type) {
	case *mtproto.TLHelpGetConfig:
		op.getConfig = o
		return &Operation{Kind: mtproto.CRC32HelpGetConfig, Run: op.runGetConfig}, nil
	case *mtproto.TLHelpGetNearestDc:
		op.getNearestDc = o
		return &Operation{Kind: mtproto.CRC32HelpGetNearestDc, Run: op.runGetNearestDc}, nil
	default:
		return nil, errors.Errorf("help: unexpected object %T", ctx.Object)
	}
}

func (op *HelpRpcOperation) runGetConfig() (mtproto.TLObject, *RpcError) {
	conf, thisDc := op.layer.Api().DcConfig()
	now := int32(time.Now().Unix())
	return &mtproto.TLConfig{
		Date:                 now,
		Expires:              now + 3600,
		ThisDc:               thisDc,
		DcOptions:            conf.ToTLDcOptions(),
		ChatSizeMax:          200,
		MegagroupSizeMax:     200000,
		OfflineBlurTimeoutMs: 5000,
	}, nil
}

func (op *HelpRpcOperation) runGetNearestDc() (mtproto.TLObject, *RpcError) {
	_, thisDc := op.layer.Api().DcConfig()
	return &mtproto.TLNearestDc{
		Country:   "US",
		ThisDc:    thisDc,
		NearestDc: thisDc,
	}, nil
}
