// Package dcconfig holds the data-center table consumed at startup:
// which DC ids exist, their endpoints, and per-endpoint flags.
package dcconfig

import (
	"github.com/xurwy/tgserver/mtproto"
)

type RequestFlag uint32

const (
	Ipv4Only  RequestFlag = 1 << 1
	Ipv6Only  RequestFlag = 1 << 2
	MediaOnly RequestFlag = 1 << 3
)

// ConnectionSpec selects one endpoint class of one DC.
type ConnectionSpec struct {
	DcId  uint32
	Flags RequestFlag
}

// Hash combines the id and flags into the lookup key.
func (s ConnectionSpec) Hash() uint32 {
	return s.DcId | uint32(s.Flags)<<20
}

// Option is one DC endpoint. Field names double as the YAML schema for
// the server configuration file.
type Option struct {
	DcId  uint32 `json:"dcId"`
	Ip    string `json:"ip"`
	Port  uint16 `json:"port"`
	Flags uint32 `json:"flags,optional"`
}

func (o Option) spec() ConnectionSpec {
	return ConnectionSpec{DcId: o.DcId, Flags: RequestFlag(o.Flags)}
}

// Configuration is the full DC table, indexed by ConnectionSpec hash.
type Configuration struct {
	Options []Option
	index   map[uint32]Option
}

func New(options []Option) *Configuration {
	c := &Configuration{Options: options}
	c.index = make(map[uint32]Option, len(options))
	for _, o := range options {
		c.index[o.spec().Hash()] = o
	}
	return c
}

func (c *Configuration) IsValid() bool {
	return len(c.Options) != 0
}

// GetOption looks an endpoint up by (dc_id, flags).
func (c *Configuration) GetOption(spec ConnectionSpec) (Option, bool) {
	o, ok := c.index[spec.Hash()]
	return o, ok
}

// ToTLDcOptions renders the table into the help.getConfig reply shape.
func (c *Configuration) ToTLDcOptions() []*mtproto.TLDcOption {
	out := make([]*mtproto.TLDcOption, 0, len(c.Options))
	for _, o := range c.Options {
		out = append(out, &mtproto.TLDcOption{
			Ipv6:      RequestFlag(o.Flags)&Ipv6Only != 0,
			MediaOnly: RequestFlag(o.Flags)&MediaOnly != 0,
			Id:        int32(o.DcId),
			IpAddress: o.Ip,
			Port:      int32(o.Port),
		})
	}
	return out
}
