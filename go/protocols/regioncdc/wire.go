package regioncdc

import (
	"encoding/binary"
	"fmt"

	"github.com/gogo/protobuf/proto"
)

// These structs carry no `protobuf:"..."` struct tags, so String() below is
// written directly rather than routed through proto.CompactTextString's
// reflection-based text marshaler.

// Marshal/Unmarshal/Size below are written against the gogo/protobuf wire
// format directly (tag = field<<3|wireType, base-128 varints, length-prefixed
// submessages) in the shape protoc-gen-gogofaster would emit, since this
// module does not invoke protoc. Field numbers below are the stable wire
// contract; do not renumber.

const (
	wireVarint = 0
	wireBytes  = 2
)

func appendTag(dAtA []byte, field int, wire int) []byte {
	return appendVarint(dAtA, uint64(field)<<3|uint64(wire))
}

func appendVarint(dAtA []byte, v uint64) []byte {
	for v >= 0x80 {
		dAtA = append(dAtA, byte(v)|0x80)
		v >>= 7
	}
	return append(dAtA, byte(v))
}

func sizeVarint(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

func appendBytesField(dAtA []byte, field int, b []byte) []byte {
	dAtA = appendTag(dAtA, field, wireBytes)
	dAtA = appendVarint(dAtA, uint64(len(b)))
	return append(dAtA, b...)
}

func appendUvarintField(dAtA []byte, field int, v uint64) []byte {
	dAtA = appendTag(dAtA, field, wireVarint)
	return appendVarint(dAtA, v)
}

// consumeTag reads a (field, wireType) pair from the front of dAtA.
func consumeTag(dAtA []byte) (field int, wire int, rest []byte, err error) {
	v, n := binary.Uvarint(dAtA)
	if n <= 0 {
		return 0, 0, nil, fmt.Errorf("regioncdc: malformed tag")
	}
	return int(v >> 3), int(v & 0x7), dAtA[n:], nil
}

func consumeVarint(dAtA []byte) (v uint64, rest []byte, err error) {
	v, n := binary.Uvarint(dAtA)
	if n <= 0 {
		return 0, nil, fmt.Errorf("regioncdc: malformed varint")
	}
	return v, dAtA[n:], nil
}

func consumeBytes(dAtA []byte) (b []byte, rest []byte, err error) {
	l, rest, err := consumeVarint(dAtA)
	if err != nil {
		return nil, nil, err
	}
	if uint64(len(rest)) < l {
		return nil, nil, fmt.Errorf("regioncdc: truncated length-delimited field")
	}
	return rest[:l], rest[l:], nil
}

func skipField(wire int, dAtA []byte) ([]byte, error) {
	switch wire {
	case wireVarint:
		_, rest, err := consumeVarint(dAtA)
		return rest, err
	case wireBytes:
		_, rest, err := consumeBytes(dAtA)
		return rest, err
	default:
		return nil, fmt.Errorf("regioncdc: unsupported wire type %d", wire)
	}
}

// --- Row ---

func (m *Row) Marshal() ([]byte, error) {
	var dAtA []byte
	dAtA = appendUvarintField(dAtA, 1, m.StartTs)
	dAtA = appendUvarintField(dAtA, 2, m.CommitTs)
	dAtA = appendBytesField(dAtA, 3, m.Key)
	dAtA = appendBytesField(dAtA, 4, m.Value)
	dAtA = appendUvarintField(dAtA, 5, uint64(m.OpType))
	dAtA = appendUvarintField(dAtA, 6, uint64(m.LogType))
	return dAtA, nil
}

func (m *Row) Size() int {
	n := sizeVarint(1<<3) + sizeVarint(m.StartTs)
	n += sizeVarint(2<<3) + sizeVarint(m.CommitTs)
	n += sizeVarint(3<<3) + sizeVarint(uint64(len(m.Key))) + len(m.Key)
	n += sizeVarint(4<<3) + sizeVarint(uint64(len(m.Value))) + len(m.Value)
	n += sizeVarint(5<<3) + sizeVarint(uint64(m.OpType))
	n += sizeVarint(6<<3) + sizeVarint(uint64(m.LogType))
	return n
}

func (m *Row) Unmarshal(dAtA []byte) error {
	*m = Row{}
	for len(dAtA) > 0 {
		field, wire, rest, err := consumeTag(dAtA)
		if err != nil {
			return err
		}
		dAtA = rest
		switch field {
		case 1:
			var v uint64
			if v, dAtA, err = consumeVarint(dAtA); err != nil {
				return err
			}
			m.StartTs = v
		case 2:
			var v uint64
			if v, dAtA, err = consumeVarint(dAtA); err != nil {
				return err
			}
			m.CommitTs = v
		case 3:
			var b []byte
			if b, dAtA, err = consumeBytes(dAtA); err != nil {
				return err
			}
			m.Key = append([]byte(nil), b...)
		case 4:
			var b []byte
			if b, dAtA, err = consumeBytes(dAtA); err != nil {
				return err
			}
			m.Value = append([]byte(nil), b...)
		case 5:
			var v uint64
			if v, dAtA, err = consumeVarint(dAtA); err != nil {
				return err
			}
			m.OpType = OpType(v)
		case 6:
			var v uint64
			if v, dAtA, err = consumeVarint(dAtA); err != nil {
				return err
			}
			m.LogType = LogType(v)
		default:
			if dAtA, err = skipField(wire, dAtA); err != nil {
				return err
			}
		}
	}
	return nil
}

// --- Entries ---

func (m *Entries) Marshal() ([]byte, error) {
	var dAtA []byte
	for i := range m.Rows {
		b, _ := m.Rows[i].Marshal()
		dAtA = appendBytesField(dAtA, 1, b)
	}
	return dAtA, nil
}

func (m *Entries) Unmarshal(dAtA []byte) error {
	*m = Entries{}
	for len(dAtA) > 0 {
		field, wire, rest, err := consumeTag(dAtA)
		if err != nil {
			return err
		}
		dAtA = rest
		if field == 1 && wire == wireBytes {
			var b []byte
			if b, dAtA, err = consumeBytes(dAtA); err != nil {
				return err
			}
			var row Row
			if err := row.Unmarshal(b); err != nil {
				return err
			}
			m.Rows = append(m.Rows, row)
			continue
		}
		if dAtA, err = skipField(wire, dAtA); err != nil {
			return err
		}
	}
	return nil
}

// --- RegionInfo ---

func (m *RegionInfo) Marshal() ([]byte, error) {
	var dAtA []byte
	dAtA = appendUvarintField(dAtA, 1, m.Id)
	dAtA = appendBytesField(dAtA, 2, m.StartKey)
	dAtA = appendBytesField(dAtA, 3, m.EndKey)
	return dAtA, nil
}

func (m *RegionInfo) Unmarshal(dAtA []byte) error {
	*m = RegionInfo{}
	for len(dAtA) > 0 {
		field, wire, rest, err := consumeTag(dAtA)
		if err != nil {
			return err
		}
		dAtA = rest
		switch field {
		case 1:
			var v uint64
			if v, dAtA, err = consumeVarint(dAtA); err != nil {
				return err
			}
			m.Id = v
		case 2:
			var b []byte
			if b, dAtA, err = consumeBytes(dAtA); err != nil {
				return err
			}
			m.StartKey = append([]byte(nil), b...)
		case 3:
			var b []byte
			if b, dAtA, err = consumeBytes(dAtA); err != nil {
				return err
			}
			m.EndKey = append([]byte(nil), b...)
		default:
			if dAtA, err = skipField(wire, dAtA); err != nil {
				return err
			}
		}
	}
	return nil
}

// --- RegionError ---

func (m *RegionError) Marshal() ([]byte, error) {
	var dAtA []byte
	if m.NotLeader != nil {
		dAtA = appendBytesField(dAtA, 1, appendUvarintField(nil, 1, m.NotLeader.RegionId))
	}
	if m.RegionNotFound != nil {
		dAtA = appendBytesField(dAtA, 2, appendUvarintField(nil, 1, m.RegionNotFound.RegionId))
	}
	if m.EpochNotMatch != nil {
		var inner []byte
		for i := range m.EpochNotMatch.CurrentRegions {
			b, _ := m.EpochNotMatch.CurrentRegions[i].Marshal()
			inner = appendBytesField(inner, 1, b)
		}
		dAtA = appendBytesField(dAtA, 3, inner)
	}
	return dAtA, nil
}

func (m *RegionError) Unmarshal(dAtA []byte) error {
	*m = RegionError{}
	for len(dAtA) > 0 {
		field, wire, rest, err := consumeTag(dAtA)
		if err != nil {
			return err
		}
		dAtA = rest
		switch field {
		case 1, 2:
			// Both submessages carry the region id as field 1, the same
			// field number RegionInfo uses for Id.
			var inner []byte
			if inner, dAtA, err = consumeBytes(dAtA); err != nil {
				return err
			}
			var ri RegionInfo
			if err := ri.Unmarshal(inner); err != nil {
				return err
			}
			if field == 1 {
				m.NotLeader = &NotLeaderError{RegionId: ri.Id}
			} else {
				m.RegionNotFound = &RegionNotFoundError{RegionId: ri.Id}
			}
		case 3:
			var inner []byte
			if inner, dAtA, err = consumeBytes(dAtA); err != nil {
				return err
			}
			m.EpochNotMatch = &EpochNotMatchError{}
			for len(inner) > 0 {
				f2, w2, r2, err := consumeTag(inner)
				if err != nil {
					return err
				}
				inner = r2
				if f2 == 1 && w2 == wireBytes {
					var b []byte
					if b, inner, err = consumeBytes(inner); err != nil {
						return err
					}
					var ri RegionInfo
					if err := ri.Unmarshal(b); err != nil {
						return err
					}
					m.EpochNotMatch.CurrentRegions = append(m.EpochNotMatch.CurrentRegions, ri)
					continue
				}
				if inner, err = skipField(w2, inner); err != nil {
					return err
				}
			}
		default:
			if dAtA, err = skipField(wire, dAtA); err != nil {
				return err
			}
		}
	}
	return nil
}

// --- Event ---

func (m *Event) Marshal() ([]byte, error) {
	var dAtA []byte
	dAtA = appendUvarintField(dAtA, 1, m.RegionId)
	dAtA = appendUvarintField(dAtA, 2, m.Index)
	if m.Entries != nil {
		b, _ := m.Entries.Marshal()
		dAtA = appendBytesField(dAtA, 3, b)
	}
	if m.HasResolvedTs {
		dAtA = appendUvarintField(dAtA, 4, m.ResolvedTs)
	}
	if m.Error != nil {
		b, _ := m.Error.Marshal()
		dAtA = appendBytesField(dAtA, 5, b)
	}
	if m.Admin != nil {
		dAtA = appendBytesField(dAtA, 6, []byte(m.Admin.Kind))
	}
	return dAtA, nil
}

func (m *Event) Unmarshal(dAtA []byte) error {
	*m = Event{}
	for len(dAtA) > 0 {
		field, wire, rest, err := consumeTag(dAtA)
		if err != nil {
			return err
		}
		dAtA = rest
		switch field {
		case 1:
			var v uint64
			if v, dAtA, err = consumeVarint(dAtA); err != nil {
				return err
			}
			m.RegionId = v
		case 2:
			var v uint64
			if v, dAtA, err = consumeVarint(dAtA); err != nil {
				return err
			}
			m.Index = v
		case 3:
			var b []byte
			if b, dAtA, err = consumeBytes(dAtA); err != nil {
				return err
			}
			m.Entries = &Entries{}
			if err := m.Entries.Unmarshal(b); err != nil {
				return err
			}
		case 4:
			var v uint64
			if v, dAtA, err = consumeVarint(dAtA); err != nil {
				return err
			}
			m.HasResolvedTs, m.ResolvedTs = true, v
		case 5:
			var b []byte
			if b, dAtA, err = consumeBytes(dAtA); err != nil {
				return err
			}
			m.Error = &RegionError{}
			if err := m.Error.Unmarshal(b); err != nil {
				return err
			}
		case 6:
			var b []byte
			if b, dAtA, err = consumeBytes(dAtA); err != nil {
				return err
			}
			m.Admin = &AdminNotice{Kind: string(b)}
		default:
			if dAtA, err = skipField(wire, dAtA); err != nil {
				return err
			}
		}
	}
	return nil
}

// --- ChangeDataEvent ---

func (m *ChangeDataEvent) Marshal() ([]byte, error) {
	var dAtA []byte
	for i := range m.Events {
		b, _ := m.Events[i].Marshal()
		dAtA = appendBytesField(dAtA, 1, b)
	}
	return dAtA, nil
}

func (m *ChangeDataEvent) Size() int {
	b, _ := m.Marshal()
	return len(b)
}

func (m *ChangeDataEvent) Unmarshal(dAtA []byte) error {
	*m = ChangeDataEvent{}
	for len(dAtA) > 0 {
		field, wire, rest, err := consumeTag(dAtA)
		if err != nil {
			return err
		}
		dAtA = rest
		if field == 1 && wire == wireBytes {
			var b []byte
			if b, dAtA, err = consumeBytes(dAtA); err != nil {
				return err
			}
			var ev Event
			if err := ev.Unmarshal(b); err != nil {
				return err
			}
			m.Events = append(m.Events, ev)
			continue
		}
		if dAtA, err = skipField(wire, dAtA); err != nil {
			return err
		}
	}
	return nil
}

// Reset/String/ProtoMessage satisfy the gogo/protobuf proto.Message
// interface so ChangeDataEvent can flow through a gogo-aware gRPC codec.
func (m *ChangeDataEvent) Reset() { *m = ChangeDataEvent{} }
func (m *ChangeDataEvent) String() string {
	return fmt.Sprintf("ChangeDataEvent{Events: %d}", len(m.Events))
}
func (*ChangeDataEvent) ProtoMessage() {}

var _ proto.Message = (*ChangeDataEvent)(nil)

// --- SubscribeRequest ---

func (m *SubscribeRequest) Marshal() ([]byte, error) {
	var dAtA []byte
	dAtA = appendUvarintField(dAtA, 1, m.RegionId)
	dAtA = appendUvarintField(dAtA, 2, m.ConfVer)
	dAtA = appendUvarintField(dAtA, 3, m.Version)
	return dAtA, nil
}

func (m *SubscribeRequest) Size() int {
	b, _ := m.Marshal()
	return len(b)
}

func (m *SubscribeRequest) Unmarshal(dAtA []byte) error {
	*m = SubscribeRequest{}
	for len(dAtA) > 0 {
		field, wire, rest, err := consumeTag(dAtA)
		if err != nil {
			return err
		}
		dAtA = rest
		var v uint64
		switch field {
		case 1:
			if v, dAtA, err = consumeVarint(dAtA); err != nil {
				return err
			}
			m.RegionId = v
		case 2:
			if v, dAtA, err = consumeVarint(dAtA); err != nil {
				return err
			}
			m.ConfVer = v
		case 3:
			if v, dAtA, err = consumeVarint(dAtA); err != nil {
				return err
			}
			m.Version = v
		default:
			if dAtA, err = skipField(wire, dAtA); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *SubscribeRequest) Reset()         { *m = SubscribeRequest{} }
func (m *SubscribeRequest) String() string { return fmt.Sprintf("SubscribeRequest{Region: %d}", m.RegionId) }
func (*SubscribeRequest) ProtoMessage()    {}

var _ proto.Message = (*SubscribeRequest)(nil)
