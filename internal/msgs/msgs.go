// Package msgs is the binary protocol spoken over the serial link: one tag
// byte followed by a fixed little-endian payload for that tag.
package msgs

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// MaxListLen is the largest tag list a Logged or Provided message carries
const MaxListLen = 8

var (
	// ErrNeedMoreBytes means the buffer holds only part of a message. Retry
	// once more bytes have arrived.
	ErrNeedMoreBytes = errors.New("need more bytes")

	// ErrListTooLong is returned for tag lists longer than MaxListLen
	ErrListTooLong = errors.New("tag list too long")
)

// UnknownTagError is returned when the first byte is not a known tag
type UnknownTagError struct {
	Tag byte
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("unknown message tag 0x%02x", e.Tag)
}

// Message is one of Scalar, Pair, Distance or TagList
type Message interface {
	Tag() Tag
	isMessage()
}

// Scalar carries one f32
type Scalar struct {
	ID    Tag
	Value float32
}

// Pair carries a motion target
type Pair struct {
	ID       Tag
	Velocity float32
	Distance float32
}

// Distance carries a range reading in mm
type Distance struct {
	ID Tag
	MM uint8
}

// TagList carries the tags for Logged and Provided
type TagList struct {
	ID   Tag
	Tags []Tag
}

func (m Scalar) Tag() Tag   { return m.ID }
func (m Pair) Tag() Tag     { return m.ID }
func (m Distance) Tag() Tag { return m.ID }
func (m TagList) Tag() Tag  { return m.ID }

func (Scalar) isMessage()   {}
func (Pair) isMessage()     {}
func (Distance) isMessage() {}
func (TagList) isMessage()  {}

// Decode reads one message from the front of b and reports how many bytes
// it used. Nothing is used unless a whole message is present.
func Decode(b []byte) (Message, int, error) {
	if len(b) == 0 {
		return nil, 0, ErrNeedMoreBytes
	}

	tag := Tag(b[0])
	payload := b[1:]

	switch tag.kind() {
	case kindScalar:
		if len(payload) < 4 {
			return nil, 0, ErrNeedMoreBytes
		}
		return Scalar{ID: tag, Value: f32(payload)}, 5, nil

	case kindPair:
		if len(payload) < 8 {
			return nil, 0, ErrNeedMoreBytes
		}
		return Pair{ID: tag, Velocity: f32(payload), Distance: f32(payload[4:])}, 9, nil

	case kindDistance:
		if len(payload) < 1 {
			return nil, 0, ErrNeedMoreBytes
		}
		return Distance{ID: tag, MM: payload[0]}, 2, nil

	case kindList:
		if len(payload) < 1 {
			return nil, 0, ErrNeedMoreBytes
		}
		count := int(payload[0])
		if count > MaxListLen {
			return nil, 0, errors.Wrapf(ErrListTooLong, "%s with %d tags", tag, count)
		}
		if len(payload) < 1+count {
			return nil, 0, ErrNeedMoreBytes
		}
		list := make([]Tag, count)
		for i := range list {
			list[i] = Tag(payload[1+i])
		}
		return TagList{ID: tag, Tags: list}, 2 + count, nil

	default:
		return nil, 0, &UnknownTagError{Tag: b[0]}
	}
}

// Encode returns the wire form of m
func Encode(m Message) ([]byte, error) {
	return AppendEncode(nil, m)
}

// AppendEncode appends the wire form of m to dst. dst is returned unchanged
// on error.
func AppendEncode(dst []byte, m Message) ([]byte, error) {
	mismatch := func(k kind) error {
		if !m.Tag().Known() {
			return &UnknownTagError{Tag: byte(m.Tag())}
		}
		return errors.Errorf("%s is not a %s message", m.Tag(), k)
	}

	switch m := m.(type) {
	case Scalar:
		if m.ID.kind() != kindScalar {
			return dst, mismatch(kindScalar)
		}
		dst = append(dst, byte(m.ID))
		return binary.LittleEndian.AppendUint32(dst, math.Float32bits(m.Value)), nil

	case Pair:
		if m.ID.kind() != kindPair {
			return dst, mismatch(kindPair)
		}
		dst = append(dst, byte(m.ID))
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(m.Velocity))
		return binary.LittleEndian.AppendUint32(dst, math.Float32bits(m.Distance)), nil

	case Distance:
		if m.ID.kind() != kindDistance {
			return dst, mismatch(kindDistance)
		}
		return append(dst, byte(m.ID), m.MM), nil

	case TagList:
		if m.ID.kind() != kindList {
			return dst, mismatch(kindList)
		}
		if len(m.Tags) > MaxListLen {
			return dst, errors.Wrapf(ErrListTooLong, "%s with %d tags", m.ID, len(m.Tags))
		}
		dst = append(dst, byte(m.ID), byte(len(m.Tags)))
		for _, t := range m.Tags {
			dst = append(dst, byte(t))
		}
		return dst, nil

	default:
		return dst, errors.Errorf("unsupported message %T", m)
	}
}

func f32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
