package shared

import (
	"crypto/rand"
	"encoding/hex"
)

func NewID(prefix string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

func (g Gender) String() string {
	return string(g)
}

type Role string

const (
	RoleListener    Role = "listener"
	RoleBroadcaster Role = "broadcaster"
)

func (r Role) String() string {
	return string(r)
}

type BroadcastStatus string

const (
	BroadcastLive  BroadcastStatus = "live"
	BroadcastEnded BroadcastStatus = "ended"
)
