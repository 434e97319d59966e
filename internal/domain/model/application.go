package model

import (
	"encoding/json"
	"errors"
	"strings"
)

// Application is a reusable execution environment: a container image plus the
// files and environment a job needs. Jobs always run inside an application.
type Application struct {
	Appid     string   `json:"appid"`
	Owner     string   `json:"owner"`
	Container string   `json:"container,omitempty"`
	LargeFile []string `json:"largeFiles,omitempty"`
	Files     []string `json:"files,omitempty"`
	Env       []string `json:"env,omitempty"`

	extra map[string]json.RawMessage
}

// Validate checks the fields required for persistence.
func (a *Application) Validate() error {
	if strings.TrimSpace(a.Appid) == "" {
		return errors.New("appid is required")
	}
	if strings.TrimSpace(a.Owner) == "" {
		return errors.New("application owner is required")
	}
	return nil
}

type applicationAlias Application

// UnmarshalJSON decodes an application, keeping unrecognised keys for round-trip.
func (a *Application) UnmarshalJSON(data []byte) error {
	var tmp applicationAlias
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	known, err := json.Marshal(tmp)
	if err != nil {
		return err
	}
	extra, err := splitUnknown(data, known)
	if err != nil {
		return err
	}
	*a = Application(tmp)
	a.extra = extra
	return nil
}

// MarshalJSON encodes an application, merging back any preserved unknown keys.
func (a Application) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(applicationAlias(a))
	if err != nil {
		return nil, err
	}
	return mergeUnknown(body, a.extra)
}
