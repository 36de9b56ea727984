package principal

import (
	"encoding/json"
	"fmt"
)

// Kind is the role a bearer token grants on the control API.
type Kind int

const (
	Admin  Kind = iota // may change the camera document and restart the recorder
	Viewer             // read-only access
)

func (k Kind) String() string {
	switch k {
	case Admin:
		return "admin"
	case Viewer:
		return "viewer"
	default:
		return "unknown"
	}
}

// MarshalJSON writes the role name, as stored in Redis token records.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON accepts "admin" or "viewer"; any other role is an error.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "admin":
		*k = Admin
	case "viewer":
		*k = Viewer
	default:
		return fmt.Errorf("unknown principal role %q", s)
	}
	return nil
}

// Principal is the identity behind a bearer token. ID is what the camera
// document's allowed_users list refers to (usually an e-mail address).
type Principal struct {
	ID   string `json:"id"`
	Kind Kind   `json:"kind"`
}
