package syncplan

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/dmitrijs2005/addonkeeper/internal/manifest"
	"github.com/dmitrijs2005/addonkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addon(name string) models.RemoteAddon {
	return models.RemoteAddon{
		TransportURL: fmt.Sprintf("https://%s.example/manifest.json", name),
		Manifest:     manifest.Manifest{"id": "org." + name, "name": name},
	}
}

func desired(names ...string) []Desired {
	out := make([]Desired, 0, len(names))
	for _, n := range names {
		out = append(out, Desired{AddonID: n, Addon: addon(n)})
	}
	return out
}

func remote(names ...string) []models.RemoteAddon {
	out := make([]models.RemoteAddon, 0, len(names))
	for _, n := range names {
		out = append(out, addon(n))
	}
	return out
}

func names(l []models.RemoteAddon) []string {
	out := make([]string, 0, len(l))
	for _, a := range l {
		out = append(out, a.Manifest.Name())
	}
	return out
}

func TestPlan_Scenario(t *testing.T) {
	p := New(DefaultProtectedNames)

	got := p.Plan(Input{
		Remote:   remote("Y", "Z"),
		Group:    desired("X", "Y"),
		Excluded: []string{"X"},
	})

	assert.Empty(t, got.Missing)
	assert.Equal(t, []string{"Z"}, names(got.Extra))
	assert.True(t, got.OrderMatches)
	assert.False(t, got.Synced)
	assert.Equal(t, []string{"Y"}, names(got.Push))
}

func TestPlan_Idempotent(t *testing.T) {
	p := New(DefaultProtectedNames)
	in := Input{Remote: remote("Cinemeta", "Q"), Group: desired("A", "B", "C")}

	first := p.Plan(in)
	require.False(t, first.Synced)
	assert.Equal(t, []string{"Cinemeta", "A", "B", "C"}, names(first.Push))

	in.Remote = first.Push
	second := p.Plan(in)
	assert.True(t, second.Synced)
	assert.Nil(t, second.Push)
}

func TestPlan_OrderPreservation(t *testing.T) {
	p := New(nil)
	group := desired("A", "B", "C", "D")

	for i := 0; i < 20; i++ {
		perm := rand.Perm(len(group))
		shuffled := make([]Desired, len(group))
		for j, k := range perm {
			shuffled[j] = group[k]
		}

		want := make([]string, len(shuffled))
		for j, d := range shuffled {
			want[j] = d.AddonID
		}

		got := p.Plan(Input{Remote: remote(want...), Group: shuffled})
		assert.Equal(t, want, names(got.Desired))
		assert.True(t, got.Synced, "%v", want)
	}
}

func TestPlan_WrongOrder(t *testing.T) {
	p := New(nil)

	got := p.Plan(Input{Remote: remote("B", "A"), Group: desired("A", "B")})

	assert.Empty(t, got.Missing)
	assert.Empty(t, got.Extra)
	assert.False(t, got.OrderMatches)
	assert.False(t, got.Synced)
	assert.Equal(t, []string{"A", "B"}, names(got.Push))
}

func TestPlan_ProtectedInvariant(t *testing.T) {
	p := New(DefaultProtectedNames)

	cases := map[string]Input{
		"by default name": {Remote: remote("Cinemeta", "Z"), Group: desired("A")},
		"by user url": {Remote: remote("P", "Z"), Group: desired("A"),
			Protected: []string{"http://P.example/manifest.json/"}},
		"by user name, case-insensitive": {Remote: remote("P", "Z"), Group: desired("A"),
			Protected: []string{"p"}},
		"empty desired": {Remote: remote("Z", "Cinemeta", "P"), Protected: []string{"P"}},
	}

	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			got := p.Plan(in)
			prot := newProtection(DefaultProtectedNames, in.Protected)

			for _, e := range got.Extra {
				assert.False(t, prot.covers(e), "protected %s counted as extra", e.TransportURL)
			}
			for _, r := range in.Remote {
				if prot.covers(r) {
					assert.Contains(t, names(got.Push), r.Manifest.Name())
				}
			}
		})
	}
}

func TestPlan_ProtectedKeepsSlot(t *testing.T) {
	p := New(DefaultProtectedNames)

	got := p.Plan(Input{Remote: remote("Z", "Cinemeta", "W"), Group: desired("A", "B", "C")})
	assert.Equal(t, []string{"A", "Cinemeta", "B", "C"}, names(got.Push))
}

func TestPlan_EmptyDesiredClears(t *testing.T) {
	p := New(DefaultProtectedNames)

	got := p.Plan(Input{Remote: remote("Z", "Local Files", "W")})
	assert.False(t, got.Synced)
	assert.Equal(t, []string{"Local Files"}, names(got.Push))

	got = p.Plan(Input{Remote: remote("Z")})
	require.False(t, got.Synced)
	assert.NotNil(t, got.Push)
	assert.Empty(t, got.Push)

	got = p.Plan(Input{})
	assert.True(t, got.Synced)
}

func TestPlan_ProtectedDesiredNotDuplicated(t *testing.T) {
	p := New(DefaultProtectedNames)

	got := p.Plan(Input{Remote: remote("Cinemeta", "Z"), Group: desired("Cinemeta", "A")})
	assert.Equal(t, []string{"Cinemeta", "A"}, names(got.Push))
}

func TestPlan_CosmeticURLDifferences(t *testing.T) {
	p := New(nil)

	r := addon("A")
	r.TransportURL = "http://A.example/manifest.json?utm=1"

	got := p.Plan(Input{Remote: []models.RemoteAddon{r}, Group: desired("A")})
	assert.True(t, got.Synced)
}

func TestPlan_DuplicateDesiredURLFirstWins(t *testing.T) {
	p := New(nil)

	group := desired("A", "B")
	dup := Desired{AddonID: "A2", Addon: addon("A")}
	group = append(group, dup)

	got := p.Plan(Input{Remote: remote("A", "B"), Group: group})
	assert.Equal(t, []string{"A", "B"}, names(got.Desired))
	assert.True(t, got.Synced)

	got = p.Plan(Input{Remote: remote("A", "B"), Group: group, Excluded: []string{"A"}})
	assert.Equal(t, []string{"B", "A"}, names(got.Desired))
}
