package client

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/binary"
	"math/big"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xurwy/tgserver/internal/logutil"
	"github.com/xurwy/tgserver/internal/transport"
	"github.com/xurwy/tgserver/mtproto"
	"github.com/xurwy/tgserver/mtproto/crypto"
)

// DhState mirrors the server-side handshake states from the
// requester's point of view.
type DhState int

const (
	DhStateIdle DhState = iota
	DhStatePqRequested
	DhStateDhParamsRequested
	DhStateDhParamsSet
	DhStateSucceeded
	DhStateFailed
)

// DhLayer drives the client side of the key-establishment handshake.
// One instance per connection; Run performs the three round-trips and
// leaves the auth key on the send helper.
type DhLayer struct {
	transport transport.Transport
	helper    *mtproto.SendHelper
	pubKeys   []*rsa.PublicKey
	logger    *zap.Logger

	state DhState

	nonce       []byte
	serverNonce []byte
	newNonce    []byte
}

func NewDhLayer(t transport.Transport, helper *mtproto.SendHelper, pubKeys []*rsa.PublicKey) *DhLayer {
	return &DhLayer{
		transport: t,
		helper:    helper,
		pubKeys:   pubKeys,
		logger:    logutil.L("dh.layer"),
	}
}

func (dh *DhLayer) State() DhState {
	return dh.state
}

// Run executes the handshake to completion or failure.
func (dh *DhLayer) Run() error {
	if err := dh.run(); err != nil {
		dh.state = DhStateFailed
		return err
	}
	return nil
}

func (dh *DhLayer) run() error {
	dh.nonce = crypto.GenerateNonce(16)
	resPQ, err := dh.requestPq()
	if err != nil {
		return err
	}
	dhParams, err := dh.requestDHParams(resPQ)
	if err != nil {
		return err
	}
	return dh.setClientDHParams(dhParams)
}

func (dh *DhLayer) requestPq() (*mtproto.TLResPQ, error) {
	obj, err := dh.roundTrip(&mtproto.TLReqPqMulti{Nonce: dh.nonce})
	if err != nil {
		return nil, err
	}
	dh.state = DhStatePqRequested
	res, ok := obj.(*mtproto.TLResPQ)
	if !ok {
		return nil, errors.Errorf("expected resPQ, got %T", obj)
	}
	if !bytes.Equal(res.Nonce, dh.nonce) {
		return nil, errors.New("resPQ: nonce mismatch")
	}
	if len(res.ServerNonce) != 16 {
		return nil, errors.New("resPQ: bad server_nonce")
	}
	dh.serverNonce = res.ServerNonce
	return res, nil
}

func (dh *DhLayer) requestDHParams(resPQ *mtproto.TLResPQ) (*mtproto.TLServerDHInnerData, error) {
	fingerprint, pubKey, err := dh.pickKey(resPQ.ServerPublicKeyFingerprints)
	if err != nil {
		return nil, err
	}
	p, q := crypto.FactorizePQ(resPQ.Pq)
	dh.newNonce = crypto.GenerateNonce(32)
	innerData := &mtproto.TLPQInnerData{
		Pq:          resPQ.Pq,
		P:           p,
		Q:           q,
		Nonce:       dh.nonce,
		ServerNonce: dh.serverNonce,
		NewNonce:    dh.newNonce,
	}
	x := mtproto.NewEncodeBuf(256)
	if err := innerData.Encode(x, mtproto.Layer); err != nil {
		return nil, err
	}
	encrypted, err := crypto.RSAPadEncrypt(x.GetBuf(), pubKey)
	if err != nil {
		return nil, err
	}
	obj, err := dh.roundTrip(&mtproto.TLReqDHParams{
		Nonce:                dh.nonce,
		ServerNonce:          dh.serverNonce,
		P:                    p,
		Q:                    q,
		PublicKeyFingerprint: fingerprint,
		EncryptedData:        encrypted,
	})
	if err != nil {
		return nil, err
	}
	dh.state = DhStateDhParamsRequested
	params, ok := obj.(*mtproto.TLServerDHParamsOk)
	if !ok {
		return nil, errors.Errorf("expected server_DH_params_ok, got %T", obj)
	}
	if !bytes.Equal(params.Nonce, dh.nonce) || !bytes.Equal(params.ServerNonce, dh.serverNonce) {
		return nil, errors.New("server_DH_params: nonce mismatch")
	}
	key, iv := crypto.DeriveTempAESKeyIV(dh.newNonce, dh.serverNonce)
	decrypted, err := crypto.NewAES256IGECryptor(key, iv).Decrypt(params.EncryptedAnswer)
	if err != nil {
		return nil, err
	}
	if len(decrypted) < 20 {
		return nil, errors.New("server_DH_params: answer too short")
	}
	d := mtproto.NewDecodeBuf(decrypted[20:])
	inner, ok := d.Object().(*mtproto.TLServerDHInnerData)
	if !ok {
		return nil, errors.Wrap(d.GetError(), "server_DH_inner_data decode")
	}
	if !bytes.Equal(inner.Nonce, dh.nonce) || !bytes.Equal(inner.ServerNonce, dh.serverNonce) {
		return nil, errors.New("server_DH_inner_data: nonce mismatch")
	}
	if err := verifyAnswerHash(decrypted, inner); err != nil {
		return nil, err
	}
	return inner, nil
}

func (dh *DhLayer) setClientDHParams(params *mtproto.TLServerDHInnerData) error {
	dhPrime := new(big.Int).SetBytes(params.DhPrime)
	gA := new(big.Int).SetBytes(params.GA)

	b := make([]byte, 256)
	if _, err := rand.Read(b); err != nil {
		return errors.Wrap(err, "dh random")
	}
	bInt := new(big.Int).SetBytes(b)
	gB := new(big.Int).Exp(big.NewInt(int64(params.G)), bInt, dhPrime)
	authKeyNum := new(big.Int).Exp(gA, bInt, dhPrime)
	authKey := make([]byte, 256)
	kb := authKeyNum.Bytes()
	copy(authKey[256-len(kb):], kb)

	innerData := &mtproto.TLClientDHInnerData{
		Nonce:       dh.nonce,
		ServerNonce: dh.serverNonce,
		RetryId:     0,
		GB:          gB.Bytes(),
	}
	x := mtproto.NewEncodeBuf(512)
	if err := innerData.Encode(x, mtproto.Layer); err != nil {
		return err
	}
	encrypted, err := encryptAnswer(x.GetBuf(), dh.newNonce, dh.serverNonce)
	if err != nil {
		return err
	}
	obj, err := dh.roundTrip(&mtproto.TLSetClientDHParams{
		Nonce:         dh.nonce,
		ServerNonce:   dh.serverNonce,
		EncryptedData: encrypted,
	})
	if err != nil {
		return err
	}
	dh.state = DhStateDhParamsSet
	answer, ok := obj.(*mtproto.TLDhGenAnswer)
	if !ok {
		return errors.Errorf("expected dh_gen answer, got %T", obj)
	}
	if answer.Kind != mtproto.DhGenOk {
		return errors.Errorf("dh_gen answer kind %d", answer.Kind)
	}
	if !bytes.Equal(answer.Nonce, dh.nonce) || !bytes.Equal(answer.ServerNonce, dh.serverNonce) {
		return errors.New("dh_gen_ok: nonce mismatch")
	}
	if !bytes.Equal(answer.NewNonceHash, crypto.CalcNewNonceHash(dh.newNonce, authKey, 0x01)) {
		return errors.New("dh_gen_ok: new_nonce_hash1 mismatch")
	}

	key := crypto.NewAuthKeyFromBytes(authKey)
	if err := dh.helper.SetAuthKey(key); err != nil {
		return err
	}
	// initial salt = substr(new_nonce, 0, 8) XOR substr(server_nonce, 0, 8)
	var salt [8]byte
	for i := range salt {
		salt[i] = dh.newNonce[i] ^ dh.serverNonce[i]
	}
	dh.helper.SetServerSalt(int64(binary.LittleEndian.Uint64(salt[:])))
	dh.state = DhStateSucceeded
	dh.logger.Info("handshake succeeded", zap.Int64("auth_key_id", key.AuthKeyId()))
	return nil
}

func (dh *DhLayer) pickKey(fingerprints []int64) (int64, *rsa.PublicKey, error) {
	for _, fp := range fingerprints {
		for _, pub := range dh.pubKeys {
			if crypto.PublicKeyFingerprint(pub.N, pub.E) == fp {
				return fp, pub, nil
			}
		}
	}
	return 0, nil, errors.New("no known server key fingerprint")
}

// roundTrip sends one plaintext handshake request and decodes the
// single plaintext reply.
func (dh *DhLayer) roundTrip(req mtproto.TLObject) (mtproto.TLObject, error) {
	x := mtproto.NewEncodeBuf(512)
	if err := req.Encode(x, mtproto.Layer); err != nil {
		return nil, err
	}
	packet := dh.helper.PackPlainMessage(mtproto.GenerateMessageId(), x.GetBuf())
	if err := dh.transport.WritePacket(packet); err != nil {
		return nil, err
	}
	reply, err := dh.transport.ReadPacket()
	if err != nil {
		return nil, err
	}
	if bytes.Equal(reply, transport.KeyErrorPacket) {
		return nil, errors.New("server sent key error frame")
	}
	_, body, err := mtproto.UnpackPlainMessage(reply)
	if err != nil {
		return nil, err
	}
	d := mtproto.NewDecodeBuf(body)
	obj := d.Object()
	if obj == nil {
		return nil, errors.Wrap(d.GetError(), "handshake reply decode")
	}
	return obj, nil
}

// encryptAnswer seals a handshake payload as SHA1 ‖ payload ‖ pad,
// AES-IGE under the temp key.
func encryptAnswer(answer, newNonce, serverNonce []byte) ([]byte, error) {
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

func verifyAnswerHash(decrypted []byte, obj mtproto.TLObject) error {
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
