package mtproto

// Handshake (key-exchange) schema. Nonces are raw 16-byte values,
// new_nonce is 32 bytes; pq, p, q and the DH group elements travel as
// TL byte strings.

const (
	CRC32ReqPqMulti         = uint32(0xbe7e8ef1)
	CRC32ResPQ              = uint32(0x05162463)
	CRC32ReqDHParams        = uint32(0xd712e4be)
	CRC32PQInnerData        = uint32(0x83c95aec)
	CRC32PQInnerDataDc      = uint32(0xa9f55f95)
	CRC32ServerDHParamsOk   = uint32(0xd0e8075c)
	CRC32ServerDHParamsFail = uint32(0x79cb045d)
	CRC32ServerDHInnerData  = uint32(0xb5890dba)
	CRC32SetClientDHParams  = uint32(0xf5045f1f)
	CRC32ClientDHInnerData  = uint32(0x6643b654)
	CRC32DhGenOk            = uint32(0x3bcbf734)
	CRC32DhGenRetry         = uint32(0x46dc1fb9)
	CRC32DhGenFail          = uint32(0xa69dae02)
)

func init() {
	Register(CRC32ReqPqMulti, func() TLObject { return new(TLReqPqMulti) })
	Register(CRC32ResPQ, func() TLObject { return new(TLResPQ) })
	Register(CRC32ReqDHParams, func() TLObject { return new(TLReqDHParams) })
	Register(CRC32PQInnerData, func() TLObject { return new(TLPQInnerData) })
	Register(CRC32PQInnerDataDc, func() TLObject { return &TLPQInnerData{Dc: true} })
	Register(CRC32ServerDHParamsOk, func() TLObject { return new(TLServerDHParamsOk) })
	Register(CRC32ServerDHParamsFail, func() TLObject { return new(TLServerDHParamsFail) })
	Register(CRC32ServerDHInnerData, func() TLObject { return new(TLServerDHInnerData) })
	Register(CRC32SetClientDHParams, func() TLObject { return new(TLSetClientDHParams) })
	Register(CRC32ClientDHInnerData, func() TLObject { return new(TLClientDHInnerData) })
	Register(CRC32DhGenOk, func() TLObject { return &TLDhGenAnswer{Kind: DhGenOk} })
	Register(CRC32DhGenRetry, func() TLObject { return &TLDhGenAnswer{Kind: DhGenRetry} })
	Register(CRC32DhGenFail, func() TLObject { return &TLDhGenAnswer{Kind: DhGenFail} })
}

type TLReqPqMulti struct {
	Nonce []byte
}

func (m *TLReqPqMulti) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32ReqPqMulti)
	x.Bytes(m.Nonce)
	return nil
}

func (m *TLReqPqMulti) Decode(d *DecodeBuf) error {
	m.Nonce = d.Bytes(16)
	return d.GetError()
}

type TLResPQ struct {
	Nonce                       []byte
	ServerNonce                 []byte
	Pq                          []byte
	ServerPublicKeyFingerprints []int64
}

func (m *TLResPQ) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32ResPQ)
	x.Bytes(m.Nonce)
	x.Bytes(m.ServerNonce)
	x.StringBytes(m.Pq)
	x.VectorLong(m.ServerPublicKeyFingerprints)
	return nil
}

func (m *TLResPQ) Decode(d *DecodeBuf) error {
	m.Nonce = d.Bytes(16)
	m.ServerNonce = d.Bytes(16)
	m.Pq = d.StringBytes()
	m.ServerPublicKeyFingerprints = d.VectorLong()
	return d.GetError()
}

type TLReqDHParams struct {
	Nonce                []byte
	ServerNonce          []byte
	P                    []byte
	Q                    []byte
	PublicKeyFingerprint int64
	EncryptedData        []byte
}

func (m *TLReqDHParams) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32ReqDHParams)
	x.Bytes(m.Nonce)
	x.Bytes(m.ServerNonce)
	x.StringBytes(m.P)
	x.StringBytes(m.Q)
	x.Long(m.PublicKeyFingerprint)
	x.StringBytes(m.EncryptedData)
	return nil
}

func (m *TLReqDHParams) Decode(d *DecodeBuf) error {
	m.Nonce = d.Bytes(16)
	m.ServerNonce = d.Bytes(16)
	m.P = d.StringBytes()
	m.Q = d.StringBytes()
	m.PublicKeyFingerprint = d.Long()
	m.EncryptedData = d.StringBytes()
	return d.GetError()
}

// TLPQInnerData covers both p_q_inner_data and p_q_inner_data_dc.
type TLPQInnerData struct {
	Pq          []byte
	P           []byte
	Q           []byte
	Nonce       []byte
	ServerNonce []byte
	NewNonce    []byte
	Dc          bool
	DcId        int32
}

func (m *TLPQInnerData) Encode(x *EncodeBuf, layer int32) error {
	if m.Dc {
		x.UInt(CRC32PQInnerDataDc)
	} else {
		x.UInt(CRC32PQInnerData)
	}
	x.StringBytes(m.Pq)
	x.StringBytes(m.P)
	x.StringBytes(m.Q)
	x.Bytes(m.Nonce)
	x.Bytes(m.ServerNonce)
	x.Bytes(m.NewNonce)
	if m.Dc {
		x.Int(m.DcId)
	}
	return nil
}

func (m *TLPQInnerData) Decode(d *DecodeBuf) error {
	m.Pq = d.StringBytes()
	m.P = d.StringBytes()
	m.Q = d.StringBytes()
	m.Nonce = d.Bytes(16)
	m.ServerNonce = d.Bytes(16)
	m.NewNonce = d.Bytes(32)
	if m.Dc {
		m.DcId = d.Int()
	}
	return d.GetError()
}

type TLServerDHParamsOk struct {
	Nonce           []byte
	ServerNonce     []byte
	EncryptedAnswer []byte
}

func (m *TLServerDHParamsOk) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32ServerDHParamsOk)
	x.Bytes(m.Nonce)
	x.Bytes(m.ServerNonce)
	x.StringBytes(m.EncryptedAnswer)
	return nil
}

func (m *TLServerDHParamsOk) Decode(d *DecodeBuf) error {
	m.Nonce = d.Bytes(16)
	m.ServerNonce = d.Bytes(16)
	m.EncryptedAnswer = d.StringBytes()
	return d.GetError()
}

type TLServerDHParamsFail struct {
	Nonce        []byte
	ServerNonce  []byte
	NewNonceHash []byte
}

func (m *TLServerDHParamsFail) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32ServerDHParamsFail)
	x.Bytes(m.Nonce)
	x.Bytes(m.ServerNonce)
	x.Bytes(m.NewNonceHash)
	return nil
}

func (m *TLServerDHParamsFail) Decode(d *DecodeBuf) error {
	m.Nonce = d.Bytes(16)
	m.ServerNonce = d.Bytes(16)
	m.NewNonceHash = d.Bytes(16)
	return d.GetError()
}

type TLServerDHInnerData struct {
	Nonce       []byte
	ServerNonce []byte
	G           int32
	DhPrime     []byte
	GA          []byte
	ServerTime  int32
}

func (m *TLServerDHInnerData) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32ServerDHInnerData)
	x.Bytes(m.Nonce)
	x.Bytes(m.ServerNonce)
	x.Int(m.G)
	x.StringBytes(m.DhPrime)
	x.StringBytes(m.GA)
	x.Int(m.ServerTime)
	return nil
}

func (m *TLServerDHInnerData) Decode(d *DecodeBuf) error {
	m.Nonce = d.Bytes(16)
	m.ServerNonce = d.Bytes(16)
	m.G = d.Int()
	m.DhPrime = d.StringBytes()
	m.GA = d.StringBytes()
	m.ServerTime = d.Int()
	return d.GetError()
}

type TLSetClientDHParams struct {
	Nonce         []byte
	ServerNonce   []byte
	EncryptedData []byte
}

func (m *TLSetClientDHParams) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32SetClientDHParams)
	x.Bytes(m.Nonce)
	x.Bytes(m.ServerNonce)
	x.StringBytes(m.EncryptedData)
	return nil
}

func (m *TLSetClientDHParams) Decode(d *DecodeBuf) error {
	m.Nonce = d.Bytes(16)
	m.ServerNonce = d.Bytes(16)
	m.EncryptedData = d.StringBytes()
	return d.GetError()
}

type TLClientDHInnerData struct {
	Nonce       []byte
	ServerNonce []byte
	RetryId     int64
	GB          []byte
}

func (m *TLClientDHInnerData) Encode(x *EncodeBuf, layer int32) error {
	x.UInt(CRC32ClientDHInnerData)
	x.Bytes(m.Nonce)
	x.Bytes(m.ServerNonce)
	x.Long(m.RetryId)
	x.StringBytes(m.GB)
	return nil
}

func (m *TLClientDHInnerData) Decode(d *DecodeBuf) error {
	m.Nonce = d.Bytes(16)
	m.ServerNonce = d.Bytes(16)
	m.RetryId = d.Long()
	m.GB = d.StringBytes()
	return d.GetError()
}

type DhGenKind int

const (
	DhGenOk DhGenKind = iota
	DhGenRetry
	DhGenFail
)

// TLDhGenAnswer covers dh_gen_ok / dh_gen_retry / dh_gen_fail; the hash
// field is new_nonce_hash1, 2 or 3 respectively.
type TLDhGenAnswer struct {
	Kind         DhGenKind
	Nonce        []byte
	ServerNonce  []byte
	NewNonceHash []byte
}

func (m *TLDhGenAnswer) Encode(x *EncodeBuf, layer int32) error {
	switch m.Kind {
	case DhGenOk:
		x.UInt(CRC32DhGenOk)
	case DhGenRetry:
		x.UInt(CRC32DhGenRetry)
	default:
		x.UInt(CRC32DhGenFail)
	}
	x.Bytes(m.Nonce)
	x.Bytes(m.ServerNonce)
	x.Bytes(m.NewNonceHash)
	return nil
}

func (m *TLDhGenAnswer) Decode(d *DecodeBuf) error {
	m.Nonce = d.Bytes(16)
	m.ServerNonce = d.Bytes(16)
	m.NewNonceHash = d.Bytes(16)
	return d.GetError()
}
