package model

import (
	"encoding/json"
	"errors"
	"strings"
)

// User is a principal that owns applications. Users are never deleted; a
// misbehaving key is disabled instead so its history stays referencable.
type User struct {
	KeyID   string `json:"keyId"`
	Secret  string `json:"secret"`
	Enabled bool   `json:"enabled"`
	Info    string `json:"info,omitempty"`

	extra map[string]json.RawMessage
}

// NewUser constructs an enabled user with the given credentials.
func NewUser(keyID, secret, info string) *User {
	return &User{KeyID: keyID, Secret: secret, Enabled: true, Info: info}
}

// Validate checks the fields required for persistence.
func (u *User) Validate() error {
	if strings.TrimSpace(u.KeyID) == "" {
		return errors.New("user key id is required")
	}
	if strings.TrimSpace(u.Secret) == "" {
		return errors.New("user secret is required")
	}
	return nil
}

type userAlias User

// UnmarshalJSON decodes a user, keeping unrecognised keys for round-trip.
func (u *User) UnmarshalJSON(data []byte) error {
	var a userAlias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	known, err := json.Marshal(a)
	if err != nil {
		return err
	}
	extra, err := splitUnknown(data, known)
	if err != nil {
		return err
	}
	*u = User(a)
	u.extra = extra
	return nil
}

// MarshalJSON encodes a user, merging back any preserved unknown keys.
func (u User) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(userAlias(u))
	if err != nil {
		return nil, err
	}
	return mergeUnknown(body, u.extra)
}
