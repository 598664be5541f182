// Package syncplan decides whether a user's remote add-on collection
// matches the collection their group prescribes, and what to push when it
// does not.
package syncplan

import (
	"strings"

	"github.com/dmitrijs2005/addonkeeper/internal/server/models"
)

// DefaultProtectedNames are platform add-ons no sync may remove.
var DefaultProtectedNames = []string{"Cinemeta", "Local Files"}

// Desired is one group add-on, already decrypted into its remote shape.
type Desired struct {
	AddonID string
	Addon   models.RemoteAddon
}

// Input is a snapshot of everything a planning run looks at.
type Input struct {
	// Remote is the user's live collection in remote order.
	Remote []models.RemoteAddon
	// Group is the group's active add-ons in position order.
	Group []Desired
	// Excluded holds add-on ids the user opted out of.
	Excluded []string
	// Protected holds the user's protected manifest URLs and add-on names.
	Protected []string
}

// Plan is the outcome of one planning run.
type Plan struct {
	Desired      []models.RemoteAddon
	Missing      []models.RemoteAddon
	Extra        []models.RemoteAddon
	OrderMatches bool
	Synced       bool
	// Push is the full replacement collection. It is nil when Synced.
	Push []models.RemoteAddon
}

// Planner computes plans. Its protected names are merged into every
// user's protected set.
type Planner struct {
	defaults []string
}

// New returns a Planner that always protects defaultNames.
func New(defaultNames []string) *Planner {
	return &Planner{defaults: append([]string(nil), defaultNames...)}
}

type protection struct {
	urls  map[string]bool
	names []string
}

func newProtection(lists ...[]string) protection {
	p := protection{urls: map[string]bool{}}
	for _, l := range lists {
		for _, s := range l {
			s = strings.TrimSpace(s)
			switch {
			case s == "":
			case looksLikeURL(s):
				p.urls[Canonicalize(s)] = true
			default:
				p.names = append(p.names, s)
			}
		}
	}
	return p
}

func (p protection) covers(a models.RemoteAddon) bool {
	if p.urls[Canonicalize(a.TransportURL)] {
		return true
	}
	for _, n := range p.names {
		if strings.EqualFold(n, a.Manifest.Name()) || strings.EqualFold(n, a.TransportName) {
			return true
		}
	}
	return false
}

// Plan compares in.Remote with the desired collection derived from
// in.Group.
func (p *Planner) Plan(in Input) Plan {
	prot := newProtection(p.defaults, in.Protected)

	excluded := make(map[string]bool, len(in.Excluded))
	for _, id := range in.Excluded {
		excluded[id] = true
	}

	// Desired keeps group order; the first add-on wins a canonical URL.
	var desired []models.RemoteAddon
	desiredKeys := map[string]bool{}
	for _, d := range in.Group {
		if excluded[d.AddonID] {
			continue
		}
		key := Canonicalize(d.Addon.TransportURL)
		if desiredKeys[key] {
			continue
		}
		desiredKeys[key] = true
		desired = append(desired, d.Addon)
	}

	remoteKeys := make(map[string]bool, len(in.Remote))
	protectedRemote := map[string]bool{}
	for _, r := range in.Remote {
		key := Canonicalize(r.TransportURL)
		remoteKeys[key] = true
		if prot.covers(r) {
			protectedRemote[key] = true
		}
	}

	out := Plan{Desired: desired}

	for _, d := range desired {
		if !remoteKeys[Canonicalize(d.TransportURL)] {
			out.Missing = append(out.Missing, d)
		}
	}
	for _, r := range in.Remote {
		key := Canonicalize(r.TransportURL)
		if !desiredKeys[key] && !protectedRemote[key] {
			out.Extra = append(out.Extra, r)
		}
	}

	out.OrderMatches = orderMatches(in.Remote, desired, desiredKeys, prot)
	out.Synced = len(out.Missing) == 0 && len(out.Extra) == 0 && out.OrderMatches
	if !out.Synced {
		out.Push = push(in.Remote, desired, protectedRemote, prot)
	}
	return out
}

func orderMatches(remote, desired []models.RemoteAddon, desiredKeys map[string]bool, prot protection) bool {
	var have []string
	for _, r := range remote {
		key := Canonicalize(r.TransportURL)
		if desiredKeys[key] && !prot.covers(r) {
			have = append(have, key)
		}
	}

	var want []string
	for _, d := range desired {
		if !prot.covers(d) {
			want = append(want, Canonicalize(d.TransportURL))
		}
	}

	if len(have) != len(want) {
		return false
	}
	for i := range have {
		if have[i] != want[i] {
			return false
		}
	}
	return true
}

// push builds the replacement collection. Protected remote entries stay in
// their slots, the other slots take desired add-ons in group order, and
// any desired add-ons left over are appended.
func push(remote, desired []models.RemoteAddon, protectedRemote map[string]bool, prot protection) []models.RemoteAddon {
	queue := make([]models.RemoteAddon, 0, len(desired))
	for _, d := range desired {
		if !protectedRemote[Canonicalize(d.TransportURL)] {
			queue = append(queue, d)
		}
	}

	out := make([]models.RemoteAddon, 0, len(remote)+len(queue))
	for _, r := range remote {
		if prot.covers(r) {
			out = append(out, r)
			continue
		}
		if len(queue) > 0 {
			out = append(out, queue[0])
			queue = queue[1:]
		}
	}
	return append(out, queue...)
}
