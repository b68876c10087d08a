package legged

import (
	"fmt"
	"strings"
)

// Limb tags a foot by side for bipeds or by quadrant for quadrupeds.
type Limb uint8

const (
	NoLimb Limb = iota
	Left
	Right
	FrontLeft
	FrontRight
	HindLeft
	HindRight
)

var (
	BipedLimbs     = []Limb{Left, Right}
	QuadrupedLimbs = []Limb{FrontLeft, FrontRight, HindRight, HindLeft}
)

func (l Limb) String() string {
	switch l {
	case Left:
		return "left"
	case Right:
		return "right"
	case FrontLeft:
		return "front_left"
	case FrontRight:
		return "front_right"
	case HindLeft:
		return "hind_left"
	case HindRight:
		return "hind_right"
	}
	return "none"
}

// Opposite mirrors the limb across the sagittal plane.
func (l Limb) Opposite() Limb {
	switch l {
	case Left:
		return Right
	case Right:
		return Left
	case FrontLeft:
		return FrontRight
	case FrontRight:
		return FrontLeft
	case HindLeft:
		return HindRight
	case HindRight:
		return HindLeft
	}
	return NoLimb
}

func ParseLimb(s string) (Limb, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "l":
		return Left, nil
	case "right", "r":
		return Right, nil
	case "front_left", "fl":
		return FrontLeft, nil
	case "front_right", "fr":
		return FrontRight, nil
	case "hind_left", "hl":
		return HindLeft, nil
	case "hind_right", "hr":
		return HindRight, nil
	}
	return NoLimb, fmt.Errorf("unknown limb: %q", s)
}

func (l Limb) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Limb) UnmarshalText(text []byte) error {
	parsed, err := ParseLimb(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
