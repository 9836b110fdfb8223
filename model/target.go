package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

type TargetKind string

const (
	TargetStory TargetKind = "story"
	TargetPart  TargetKind = "part"
	TargetList  TargetKind = "list"
)

// Target is a resolved identifier. It is derived once by the resolver and
// never mutated afterwards, since it participates in build fingerprints.
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id"`
}

func (t Target) String() string {
	return string(t.Kind) + ":" + t.ID
}

// Credentials are a user's own Wattpad login, used only to replay their
// access to paid or mature stories. Never persisted.
type Credentials struct {
	Username string
	Password string
}

// Fingerprint identifies a credential pair without exposing it. The username
// is lowercased first so equivalent logins share a session.
func (c Credentials) Fingerprint() string {
	sum := sha256.Sum256([]byte(strings.ToLower(c.Username) + "\x00" + c.Password))
	return hex.EncodeToString(sum[:])
}
