package msgs

import "fmt"

// Tag identifies a message on the wire. Values are stable.
type Tag byte

const (
	Time     Tag = 0x01
	Logged   Tag = 0x02
	Provided Tag = 0x03

	LeftPos    Tag = 0x10
	RightPos   Tag = 0x11
	LeftPower  Tag = 0x12
	RightPower Tag = 0x13
	Battery    Tag = 0x14

	LeftDistance  Tag = 0x18
	FrontDistance Tag = 0x19
	RightDistance Tag = 0x1A

	LinearPos    Tag = 0x20
	AngularPos   Tag = 0x21
	LinearPower  Tag = 0x22
	AngularPower Tag = 0x23

	AddLinear  Tag = 0x30
	AddAngular Tag = 0x31

	LinearP   Tag = 0x40
	LinearI   Tag = 0x41
	LinearD   Tag = 0x42
	LinearAcc Tag = 0x43

	AngularP   Tag = 0x44
	AngularI   Tag = 0x45
	AngularD   Tag = 0x46
	AngularAcc Tag = 0x47
)

type kind int

const (
	kindUnknown kind = iota
	kindScalar
	kindPair
	kindDistance
	kindList
)

func (k kind) String() string {
	switch k {
	case kindScalar:
		return "scalar"
	case kindPair:
		return "pair"
	case kindDistance:
		return "distance"
	case kindList:
		return "tag list"
	default:
		return "unknown"
	}
}

var tags = map[Tag]struct {
	name string
	kind kind
}{
	Time:     {"time", kindScalar},
	Logged:   {"logged", kindList},
	Provided: {"provided", kindList},

	LeftPos:    {"left_pos", kindScalar},
	RightPos:   {"right_pos", kindScalar},
	LeftPower:  {"left_power", kindScalar},
	RightPower: {"right_power", kindScalar},
	Battery:    {"battery", kindScalar},

	LeftDistance:  {"left_distance", kindDistance},
	FrontDistance: {"front_distance", kindDistance},
	RightDistance: {"right_distance", kindDistance},

	LinearPos:    {"linear_pos", kindScalar},
	AngularPos:   {"angular_pos", kindScalar},
	LinearPower:  {"linear_power", kindScalar},
	AngularPower: {"angular_power", kindScalar},

	AddLinear:  {"add_linear", kindPair},
	AddAngular: {"add_angular", kindPair},

	LinearP:   {"linear_p", kindScalar},
	LinearI:   {"linear_i", kindScalar},
	LinearD:   {"linear_d", kindScalar},
	LinearAcc: {"linear_acc", kindScalar},

	AngularP:   {"angular_p", kindScalar},
	AngularI:   {"angular_i", kindScalar},
	AngularD:   {"angular_d", kindScalar},
	AngularAcc: {"angular_acc", kindScalar},
}

func (t Tag) kind() kind {
	return tags[t].kind
}

// Known reports whether t is part of the protocol
func (t Tag) Known() bool {
	_, ok := tags[t]
	return ok
}

func (t Tag) String() string {
	if info, ok := tags[t]; ok {
		return info.name
	}
	return fmt.Sprintf("tag(0x%02x)", byte(t))
}

// ParseTag looks a tag up by its String name
func ParseTag(name string) (Tag, bool) {
	for t, info := range tags {
		if info.name == name {
			return t, true
		}
	}
	return 0, false
}
