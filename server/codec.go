package server

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// CodecName is the connect codec name; requests travel as application/cbor.
const CodecName = "cbor"

var (
	encMode = mustEncMode()
	decMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{MaxNestedLevels: 64}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}

// Codec is a connect.Codec for the service's CBOR messages.
type Codec struct{}

func (Codec) Name() string { return CodecName }

func (Codec) Marshal(msg any) ([]byte, error) {
	data, err := encMode.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("cbor: encode %T: %w", msg, err)
	}
	return data, nil
}

func (Codec) Unmarshal(data []byte, msg any) error {
	if err := decMode.Unmarshal(data, msg); err != nil {
		return fmt.Errorf("cbor: decode %T: %w", msg, err)
	}
	return nil
}
