package permissions

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog([]Entry{
		{Name: "shops.all", Category: "Commerce"},
		{Name: "shops.read", Category: "Commerce"},
		{Name: "shops.write", Category: "Commerce"},
		{Name: "orders.all", Category: "Commerce"},
		{Name: "orders.read", Category: "Commerce"},
		{Name: "orders.write", Category: "Commerce"},
		{Name: "system.all", Category: "Platform"},
		{Name: "system.logs", Category: "Platform"},
		{Name: "system.settings", Category: "Platform"},
		{Name: "reports.read", Category: "Insights"},
		{Name: "billing.export", Category: "Insights"},
	})
	require.NoError(t, err)
	return c
}

func testResolver(t *testing.T) *Resolver {
	t.Helper()
	return NewResolver(testCatalog(t), DefaultRules())
}

func TestToggleChildOnCompletesAggregate(t *testing.T) {
	r := testResolver(t)

	set := NewSet("shops.read")
	out, err := r.Toggle(set, "shops.write", true)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"shops.all", "shops.read", "shops.write"}, out.Strings())
	assert.True(t, r.Closed(out))

	// input untouched
	assert.ElementsMatch(t, []string{"shops.read"}, set.Strings())
}

func TestToggleChildOffBreaksAggregate(t *testing.T) {
	r := testResolver(t)

	set := NewSet("shops.all", "shops.read", "shops.write")
	out, err := r.Toggle(set, "shops.write", false)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"shops.read"}, out.Strings())
	assert.True(t, r.Closed(out))
}

func TestToggleOverriddenChildren(t *testing.T) {
	r := testResolver(t)

	set := NewSet("system.logs")
	out, err := r.Toggle(set, "system.settings", true)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"system.all", "system.logs", "system.settings"}, out.Strings())
}

func TestToggleAggregateOn(t *testing.T) {
	r := testResolver(t)

	out, err := r.Toggle(NewSet(), "orders.all", true)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"orders.all", "orders.read", "orders.write"}, out.Strings())
	assert.True(t, r.Closed(out))
}

func TestToggleAggregateOff(t *testing.T) {
	r := testResolver(t)

	set := NewSet("orders.all", "orders.read", "orders.write", "shops.read")
	out, err := r.Toggle(set, "orders.all", false)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"shops.read"}, out.Strings())
}

func TestTogglePlainPermission(t *testing.T) {
	r := testResolver(t)

	out, err := r.Toggle(NewSet(), "reports.read", true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"reports.read"}, out.Strings())

	out, err = r.Toggle(out, "reports.read", false)
	require.NoError(t, err)
	assert.Empty(t, out.Strings())
}

func TestToggleChildOnWithoutSibling(t *testing.T) {
	r := testResolver(t)

	out, err := r.Toggle(NewSet(), "shops.read", true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"shops.read"}, out.Strings())
	assert.True(t, r.Closed(out))
}

func TestToggleUnknownPermission(t *testing.T) {
	r := testResolver(t)

	_, err := r.Toggle(NewSet(), "warehouses.read", true)
	require.Error(t, err)
	var unknown *UnknownPermissionError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, Permission("warehouses.read"), unknown.Name)
}

func TestToggleIdempotent(t *testing.T) {
	r := testResolver(t)

	once, err := r.Toggle(NewSet("shops.read"), "shops.write", true)
	require.NoError(t, err)
	twice, err := r.Toggle(once, "shops.write", true)
	require.NoError(t, err)
	assert.True(t, once.Equal(twice))

	off, err := r.Toggle(twice, "shops.all", false)
	require.NoError(t, err)
	offAgain, err := r.Toggle(off, "shops.all", false)
	require.NoError(t, err)
	assert.True(t, off.Equal(offAgain))
}

func TestToggleOrderIndependentAcrossResources(t *testing.T) {
	r := testResolver(t)

	a, err := r.Toggle(NewSet(), "shops.all", true)
	require.NoError(t, err)
	a, err = r.Toggle(a, "orders.read", true)
	require.NoError(t, err)

	b, err := r.Toggle(NewSet(), "orders.read", true)
	require.NoError(t, err)
	b, err = r.Toggle(b, "shops.all", true)
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
}

// Random toggle sequences must always leave the set closed.
func TestToggleSequencesPreserveClosure(t *testing.T) {
	r := testResolver(t)
	catalog := testCatalog(t)
	names := make([]Permission, 0, catalog.Len())
	for _, e := range catalog.ListAll() {
		names = append(names, e.Name)
	}

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 100; trial++ {
		set := NewSet()
		for step := 0; step < 20; step++ {
			p := names[rng.Intn(len(names))]
			on := rng.Intn(2) == 0
			next, err := r.Toggle(set, p, on)
			require.NoError(t, err)
			require.True(t, r.Closed(next),
				"toggle %s on=%v broke closure: %v", p, on, next.Strings())
			set = next
		}
	}
}

func TestClosed(t *testing.T) {
	r := testResolver(t)

	assert.True(t, r.Closed(NewSet()))
	assert.True(t, r.Closed(NewSet("shops.read")))
	assert.True(t, r.Closed(NewSet("shops.all", "shops.read", "shops.write")))
	assert.True(t, r.Closed(NewSet("reports.read", "billing.export")))

	// aggregate without both children
	assert.False(t, r.Closed(NewSet("shops.all", "shops.read")))
	assert.False(t, r.Closed(NewSet("shops.all")))
	// both children without aggregate
	assert.False(t, r.Closed(NewSet("shops.read", "shops.write")))
	assert.False(t, r.Closed(NewSet("system.logs", "system.settings")))
}

// A resource whose catalog defines the aggregate but only one child must
// accept both resolver-reachable states: the lone child granted directly,
// and the aggregate carrying it.
func TestClosedOneChildResource(t *testing.T) {
	catalog, err := NewCatalog([]Entry{
		{Name: "exports.all", Category: "Insights"},
		{Name: "exports.read", Category: "Insights"},
	})
	require.NoError(t, err)
	r := NewResolver(catalog, DefaultRules())

	fromChild, err := r.Toggle(NewSet(), "exports.read", true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"exports.read"}, fromChild.Strings())
	assert.True(t, r.Closed(fromChild))

	fromAggregate, err := r.Toggle(NewSet(), "exports.all", true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"exports.all", "exports.read"}, fromAggregate.Strings())
	assert.True(t, r.Closed(fromAggregate))

	// the aggregate still may not stand without its defined child
	assert.False(t, r.Closed(NewSet("exports.all")))
}

func TestNormalize(t *testing.T) {
	r := testResolver(t)

	out, err := r.Normalize(NewSet("shops.read", "reports.read"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"shops.read", "reports.read"}, out.Strings())

	_, err = r.Normalize(NewSet("shops.read", "bogus.perm"))
	var unknown *UnknownPermissionError
	require.ErrorAs(t, err, &unknown)
}
