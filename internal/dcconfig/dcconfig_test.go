package dcconfig

import (
	"testing"
)

func TestConnectionSpecHash(t *testing.T) {
	spec := ConnectionSpec{DcId: 2, Flags: MediaOnly}
	if got, want := spec.Hash(), uint32(2)|uint32(MediaOnly)<<20; got != want {
		t.Errorf("hash: got 0x%x want 0x%x", got, want)
	}
	if (ConnectionSpec{DcId: 2}).Hash() == spec.Hash() {
		t.Error("flags must change the hash")
	}
}

func TestGetOption(t *testing.T) {
	c := New([]Option{
		{DcId: 1, Ip: "10.0.0.1", Port: 443},
		{DcId: 2, Ip: "10.0.0.2", Port: 443},
		{DcId: 2, Ip: "10.0.1.2", Port: 443, Flags: uint32(MediaOnly)},
	})
	if !c.IsValid() {
		t.Fatal("expected valid configuration")
	}
	o, ok := c.GetOption(ConnectionSpec{DcId: 2})
	if !ok || o.Ip != "10.0.0.2" {
		t.Errorf("plain dc 2: %+v ok=%v", o, ok)
	}
	o, ok = c.GetOption(ConnectionSpec{DcId: 2, Flags: MediaOnly})
	if !ok || o.Ip != "10.0.1.2" {
		t.Errorf("media dc 2: %+v ok=%v", o, ok)
	}
	if _, ok := c.GetOption(ConnectionSpec{DcId: 5}); ok {
		t.Error("unknown dc resolved")
	}
}

func TestToTLDcOptions(t *testing.T) {
	c := New([]Option{
		{DcId: 1, Ip: "10.0.0.1", Port: 443},
		{DcId: 3, Ip: "fd00::3", Port: 5222, Flags: uint32(Ipv6Only | MediaOnly)},
	})
	opts := c.ToTLDcOptions()
	if len(opts) != 2 {
		t.Fatalf("got %d options", len(opts))
	}
	if opts[0].Id != 1 || opts[0].Ipv6 || opts[0].MediaOnly {
		t.Errorf("first option: %+v", opts[0])
	}
	if opts[1].Id != 3 || !opts[1].Ipv6 || !opts[1].MediaOnly || opts[1].Port != 5222 {
		t.Errorf("second option: %+v", opts[1])
	}
}

func TestEmptyConfigurationInvalid(t *testing.T) {
	if New(nil).IsValid() {
		t.Error("empty configuration reported valid")
	}
}
