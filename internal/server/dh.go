package server

import (
	"bytes"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/go-faster/errors"
	"github.com/kr/pretty"
	"go.uber.org/zap"

	"github.com/xurwy/tgserver/internal/logutil"
	"github.com/xurwy/tgserver/mtproto"
	"github.com/xurwy/tgserver/mtproto/crypto"
)

// DhState tracks the handshake; each transition consumes exactly one
// plaintext packet.
type DhState int

const (
	DhStateIdle DhState = iota
	DhStatePqRequested
	DhStateDhParamsRequested
	DhStateDhParamsSet
	DhStateSucceeded
	DhStateFailed
)

// ServerDhLayer runs the server side of the key-establishment
// handshake for one connection.
type ServerDhLayer struct {
	api    *ServerApi
	helper *mtproto.SendHelper
	conn   *Connection
	logger *zap.Logger

	state DhState

	nonce       []byte
	serverNonce []byte
	newNonce    []byte
	a           *big.Int
}

func NewServerDhLayer(api *ServerApi, helper *mtproto.SendHelper, conn *Connection) *ServerDhLayer {
	return &ServerDhLayer{
		api:    api,
		helper: helper,
		conn:   conn,
		logger: logutil.L("dh.layer"),
	}
}

func (dh *ServerDhLayer) State() DhState {
	return dh.state
}

// ProcessPlainPacket advances the state machine with one unencrypted
// packet. Any validation failure moves the layer to Failed and is
// fatal for the connection.
func (dh *ServerDhLayer) ProcessPlainPacket(packet []byte) error {
	if err := dh.processPlainPacket(packet); err != nil {
		dh.state = DhStateFailed
		return err
	}
	return nil
}

func (dh *ServerDhLayer) processPlainPacket(packet []byte) error {
	_, body, err := mtproto.UnpackPlainMessage(packet)
	if err != nil {
		return err
	}
	d := mtproto.NewDecodeBuf(body)
	obj := d.Object()
	if obj == nil {
		return errors.Wrap(d.GetError(), "handshake decode")
	}
	if ce := dh.logger.Check(zap.DebugLevel, "handshake packet"); ce != nil {
		ce.Write(zap.String("object", pretty.Sprint(obj)))
	}
	switch o := obj.(type) {
	case *mtproto.TLReqPqMulti:
		if dh.state != DhStateIdle {
			return errors.New("req_pq_multi out of order")
		}
		return dh.onReqPqMulti(o)
	case *mtproto.TLReqDHParams:
		if dh.state != DhStatePqRequested {
			return errors.New("req_DH_params out of order")
		}
		return dh.onReqDHParams(o)
	case *mtproto.TLSetClientDHParams:
		if dh.state != DhStateDhParamsRequested {
			return errors.New("set_client_DH_params out of order")
		}
		return dh.onSetClientDHParams(o)
	default:
		return errors.Errorf("unexpected handshake object %T", obj)
	}
}

func (dh *ServerDhLayer) onReqPqMulti(req *mtproto.TLReqPqMulti) error {
	if len(req.Nonce) != 16 {
		return errors.New("req_pq_multi: bad nonce")
	}
	dh.nonce = req.Nonce
	dh.serverNonce = crypto.GenerateNonce(16)
	res := &mtproto.TLResPQ{
		Nonce:                       dh.nonce,
		ServerNonce:                 dh.serverNonce,
		Pq:                          PqFixture,
		ServerPublicKeyFingerprints: []int64{dh.api.RSAKey().Fingerprint()},
	}
	dh.state = DhStatePqRequested
	return dh.sendPlain(res)
}

func (dh *ServerDhLayer) onReqDHParams(req *mtproto.TLReqDHParams) error {
	if !bytes.Equal(req.Nonce, dh.nonce) || !bytes.Equal(req.ServerNonce, dh.serverNonce) {
		return errors.New("req_DH_params: nonce mismatch")
	}
	if req.PublicKeyFingerprint != dh.api.RSAKey().Fingerprint() {
		return errors.New("req_DH_params: unknown key fingerprint")
	}
	p := new(big.Int).SetBytes(req.P)
	q := new(big.Int).SetBytes(req.Q)
	if new(big.Int).Mul(p, q).Cmp(new(big.Int).SetBytes(PqFixture)) != 0 {
		return errors.New("req_DH_params: wrong factorisation")
	}
	dataWithPadding, err := dh.api.RSAKey().RSAPadDecrypt(req.EncryptedData)
	if err != nil {
		return err
	}
	inner := mtproto.NewDecodeBuf(dataWithPadding)
	obj := inner.Object()
	pqInner, ok := obj.(*mtproto.TLPQInnerData)
	if !ok {
		return errors.New("req_DH_params: not p_q_inner_data")
	}
	if !bytes.Equal(pqInner.Nonce, dh.nonce) || !bytes.Equal(pqInner.ServerNonce, dh.serverNonce) {
		return errors.New("p_q_inner_data: nonce mismatch")
	}
	if len(pqInner.NewNonce) != 32 {
		return errors.New("p_q_inner_data: bad new_nonce")
	}
	dh.newNonce = pqInner.NewNonce

	a := make([]byte, 256)
	if _, err := rand.Read(a); err != nil {
		return errors.Wrap(err, "dh random")
	}
	dh.a = new(big.Int).SetBytes(a)
	gA := new(big.Int).Exp(big.NewInt(int64(DhG)), dh.a, DhPrimeInt)

	innerData := &mtproto.TLServerDHInnerData{
		Nonce:       dh.nonce,
		ServerNonce: dh.serverNonce,
		G:           DhG,
		DhPrime:     DhPrime,
		GA:          gA.Bytes(),
		ServerTime:  int32(time.Now().Unix()),
	}
	x := mtproto.NewEncodeBuf(512)
	if err := innerData.Encode(x, mtproto.Layer); err != nil {
		return err
	}
	answer, err := encryptTempAnswer(x.GetBuf(), dh.newNonce, dh.serverNonce)
	if err != nil {
		return err
	}
	dh.state = DhStateDhParamsRequested
	return dh.sendPlain(&mtproto.TLServerDHParamsOk{
		Nonce:           dh.nonce,
		ServerNonce:     dh.serverNonce,
		EncryptedAnswer: answer,
	})
}

func (dh *ServerDhLayer) onSetClientDHParams(req *mtproto.TLSetClientDHParams) error {
	if !bytes.Equal(req.Nonce, dh.nonce) || !bytes.Equal(req.ServerNonce, dh.serverNonce) {
		return errors.New("set_client_DH_params: nonce mismatch")
	}
	key, iv := crypto.DeriveTempAESKeyIV(dh.newNonce, dh.serverNonce)
	decrypted, err := crypto.NewAES256IGECryptor(key, iv).Decrypt(req.EncryptedData)
	if err != nil {
		return err
	}
	if len(decrypted) < 20 {
		return errors.New("set_client_DH_params: answer too short")
	}
	d := mtproto.NewDecodeBuf(decrypted[20:])
	obj := d.Object()
	clientInner, ok := obj.(*mtproto.TLClientDHInnerData)
	if !ok {
		return errors.New("set_client_DH_params: not client_DH_inner_data")
	}
	if !bytes.Equal(clientInner.Nonce, dh.nonce) || !bytes.Equal(clientInner.ServerNonce, dh.serverNonce) {
		return errors.New("client_DH_inner_data: nonce mismatch")
	}
	if err := verifyTempAnswerHash(decrypted, clientInner); err != nil {
		return err
	}

	gB := new(big.Int).SetBytes(clientInner.GB)
	authKeyNum := new(big.Int).Exp(gB, dh.a, DhPrimeInt)
	authKey := make([]byte, 256)
	kb := authKeyNum.Bytes()
	copy(authKey[256-len(kb):], kb)

	key256 := crypto.NewAuthKeyFromBytes(authKey)
	if err := dh.helper.SetAuthKey(key256); err != nil {
		return err
	}
	dh.helper.SetServerSalt(dh.api.CurrentServerSalt())
	dh.api.RegisterAuthKey(key256)
	dh.state = DhStateSucceeded
	dh.logger.Info("handshake succeeded",
		zap.Int64("auth_key_id", key256.AuthKeyId()),
		zap.String("remote", dh.conn.RemoteAddr()))
	return dh.sendPlain(&mtproto.TLDhGenAnswer{
		Kind:         mtproto.DhGenOk,
		Nonce:        dh.nonce,
		ServerNonce:  dh.serverNonce,
		NewNonceHash: crypto.CalcNewNonceHash(dh.newNonce, authKey, 0x01),
	})
}

func (dh *ServerDhLayer) sendPlain(obj mtproto.TLObject) error {
	x := mtproto.NewEncodeBuf(512)
	if err := obj.Encode(x, mtproto.Layer); err != nil {
		return err
	}
	packet := dh.helper.PackPlainMessage(mtproto.GenerateServerMessageId(mtproto.MsgIDModServerReply), x.GetBuf())
	return dh.conn.WritePacket(packet)
}

// encryptTempAnswer seals a handshake inner payload: SHA1 prefix, the
// payload, zero padding to the block size, AES-IGE under the temp key.
func encryptTempAnswer(answer, newNonce, serverNonce []byte) ([]byte, error) {
	size := 20 + len(answer)
	if size%16 != 0 {
		size = (size/16 + 1) * 16
	}
	buf := make([]byte, size)
	copy(buf, crypto.Sha1Digest(answer))
	copy(buf[20:], answer)
	key, iv := crypto.DeriveTempAESKeyIV(newNonce, serverNonce)
	return crypto.NewAES256IGECryptor(key, iv).Encrypt(buf)
}

// verifyTempAnswerHash checks the SHA1 prefix of a decrypted handshake
// payload against the re-encoded inner object.
func verifyTempAnswerHash(decrypted []byte, obj mtproto.TLObject) error {
	x := mtproto.NewEncodeBuf(512)
	if err := obj.Encode(x, mtproto.Layer); err != nil {
		return err
	}
	encoded := x.GetBuf()
	if len(decrypted) < 20+len(encoded) {
		return errors.New("handshake payload shorter than its hash claims")
	}
	if !bytes.Equal(decrypted[:20], crypto.Sha1Digest(decrypted[20:20+len(encoded)])) {
		return errors.New("handshake payload hash mismatch")
	}
	return nil
}
