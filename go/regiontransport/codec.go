package regiontransport

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// wireMarshaler is satisfied by every hand-written message in
// protocols/regioncdc; it mirrors the subset of gogo/protobuf's generated
// surface this module actually needs.
type wireMarshaler interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
}

// gogoCodec is a grpc/encoding.Codec that dispatches to the hand-written
// Marshal/Unmarshal methods in protocols/regioncdc rather than
// google.golang.org/protobuf's reflection-based codec, which does not know
// about these plain Go structs (they carry no generated descriptor).
type gogoCodec struct{}

// codecName is "proto" rather than a private subtype name: grpc-go selects a
// codec by content-subtype only when a caller's request explicitly sets one
// via grpc.CallContentSubtype, and peers of this service are independent
// processes this module does not control the dial side of. Registering
// under the default name instead replaces the built-in protobuf codec
// process-wide, so every RegionChangeData call is decoded by this codec
// whether or not the caller names a subtype — the same trick gogo-protobuf
// based gRPC servers use to opt a whole service out of reflection-based
// protobuf without generated glue.
const codecName = "proto"

func (gogoCodec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(wireMarshaler)
	if !ok {
		return nil, fmt.Errorf("regiontransport: %T does not implement the hand-written wire codec", v)
	}
	return m.Marshal()
}

func (gogoCodec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(wireMarshaler)
	if !ok {
		return fmt.Errorf("regiontransport: %T does not implement the hand-written wire codec", v)
	}
	return m.Unmarshal(data)
}

func (gogoCodec) Name() string { return codecName }

// init registers the codec process-wide, the same pattern gogo/gateway and
// other gogo-protobuf-based gRPC servers use to opt a service out of the
// default protobuf codec.
func init() {
	encoding.RegisterCodec(gogoCodec{})
}
