package namegen

import (
	"fmt"

	vendor "github.com/anandvarma/namegen"
)

var gen = vendor.New()

// ID is a short human-readable identifier, used as the default display name
// of reservations.
type ID string

func Get() ID {
	return ID(gen.Get())
}

// Prefixed returns a fresh ID under a fixed prefix, e.g. "jeeves-misty-dew".
func Prefixed(prefix string) ID {
	return ID(fmt.Sprintf("%s-%s", prefix, gen.Get()))
}

func (id ID) String() string {
	return string(id)
}
