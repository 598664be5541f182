package models

import "github.com/dmitrijs2005/addonkeeper/internal/manifest"

// RemoteAddon is one entry of a user's collection on the remote platform,
// in the platform's wire shape. Flags are carried through untouched.
type RemoteAddon struct {
	TransportURL  string            `json:"transportUrl"`
	TransportName string            `json:"transportName"`
	Manifest      manifest.Manifest `json:"manifest"`
	Flags         map[string]any    `json:"flags,omitempty"`
}

// DisplayName returns the manifest name, falling back to the transport
// name.
func (a RemoteAddon) DisplayName() string {
	if n := a.Manifest.Name(); n != "" {
		return n
	}
	return a.TransportName
}
