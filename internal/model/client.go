package model

import "time"

// Client is an agent identity consuming the gateway. The core receives a
// resolved Client from the transport layer, never raw credentials.
type Client struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Branches       []string     `json:"branches"`
	Types          []MemoryType `json:"types"`
	SensitivityMax Sensitivity  `json:"sensitivity_max"`
	Enabled        bool         `json:"enabled"`
	LastAccess     *time.Time   `json:"last_access,omitempty"`
}

// AllowsType reports whether the client may read memories of type t.
func (c *Client) AllowsType(t MemoryType) bool {
	for _, allowed := range c.Types {
		if allowed == t {
			return true
		}
	}
	return false
}

// AllowsBranch reports whether branch falls under any of the client's
// branch prefixes.
func (c *Client) AllowsBranch(branch string) bool {
	for _, prefix := range c.Branches {
		if BranchMatches(branch, prefix) {
			return true
		}
	}
	return false
}
