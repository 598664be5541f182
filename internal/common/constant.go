// Package common contains shared constants and sentinel errors used across
// addonkeeper components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// control-plane access token on inbound requests.
const AccessTokenHeaderName = "access_token"

// LocalAddonHost is the loopback host the media platform uses for its
// built-in local add-on. Manifests served from it are never reloaded.
const LocalAddonHost = "127.0.0.1"
