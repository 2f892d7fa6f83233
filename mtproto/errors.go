package mtproto

import (
	"github.com/go-faster/errors"
)

func errNotVector(crc uint32) error {
	return errors.Errorf("expected vector, got 0x%08x", crc)
}

func errBadElement(o TLObject) error {
	if o == nil {
		return errors.New("unexpected element type")
	}
	return errors.Errorf("unexpected element type %T", o)
}
