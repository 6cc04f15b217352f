// ABOUTME: Tests for building and walking the service menu
// ABOUTME: Covers slugs, nested entries, lookups by id and corrupt documents

package menu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/handoff-gateway/internal/store"
)

const testButtons = `{
  "main_menu": [["Residence permit", "Contracts"], ["Contacts"]],
  "contracts": [["Rental agreement"], ["Car sale"]]
}`

const testTexts = `{
  "welcome": "Pick a service",
  "service_contracts": "We prepare these contracts:",
  "service_rental_agreement": "Bring both passports."
}`

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"Contracts":           "contracts",
		"Rental agreement":    "rental_agreement",
		"Декларация (3-НДФЛ)": "декларация_3_ндфл",
		"  Car / sale  ":      "car_sale",
		"💬 Talk to operator":  "talk_to_operator",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), in)
	}
}

func TestParse_Tree(t *testing.T) {
	m, err := Parse([]byte(testButtons), []byte(testTexts))
	require.NoError(t, err)

	root := m.Root()
	require.True(t, root.IsRoot())
	require.Len(t, root.Rows, 2)
	assert.Len(t, root.Rows[0], 2)

	contracts, ok := root.Child("contracts")
	require.True(t, ok, "labels match case-insensitively")
	assert.Equal(t, "1", contracts.ID)
	assert.Equal(t, "We prepare these contracts:", contracts.Text)
	assert.False(t, contracts.Leaf())

	rental, ok := contracts.Child("Rental agreement")
	require.True(t, ok)
	assert.Equal(t, "1.0", rental.ID)
	assert.True(t, rental.Leaf())
	assert.Equal(t, "Bring both passports.", rental.Text)
	assert.Equal(t, []string{"Contracts", "Rental agreement"}, rental.Path())
	assert.Same(t, contracts, rental.Parent())

	byID, ok := m.Node("1.1")
	require.True(t, ok)
	assert.Equal(t, "Car sale", byID.Label)

	_, ok = m.Node("9")
	assert.False(t, ok)

	assert.Equal(t, "Pick a service", m.Text("welcome", "default"))
	assert.Equal(t, "default", m.Text("missing", "default"))
}

func TestResolve_StopsAtUnknownLabel(t *testing.T) {
	m, err := Parse([]byte(testButtons), nil)
	require.NoError(t, err)

	assert.Equal(t, "1.0", m.Resolve([]string{"Contracts", "Rental agreement"}).ID)
	assert.Equal(t, "1", m.Resolve([]string{"Contracts", "Nope"}).ID)
	assert.True(t, m.Resolve(nil).IsRoot())
}

func TestParse_SelfReferenceTerminates(t *testing.T) {
	m, err := Parse([]byte(`{"main_menu": [["Loop"]], "loop": [["Loop"]]}`), nil)
	require.NoError(t, err)

	depth := 0
	for n := m.Root(); !n.Leaf(); n = n.Rows[0][0] {
		depth++
	}
	assert.Equal(t, maxDepth, depth)
}

func TestLoad_MissingAndCorrupt(t *testing.T) {
	ctx := context.Background()

	empty := Load(ctx, store.NewMemoryConfigStore(), nil)
	assert.True(t, empty.Root().Leaf())

	backend := store.NewMemoryConfigStore()
	backend.Put(DocumentButtons, []byte("{not json"))
	corrupt := Load(ctx, backend, nil)
	assert.True(t, corrupt.Root().Leaf())

	backend = store.NewMemoryConfigStore()
	backend.Put(DocumentButtons, []byte(testButtons))
	backend.Put(DocumentTexts, []byte(testTexts))
	m := Load(ctx, backend, nil)
	_, ok := m.Root().Child("Contacts")
	assert.True(t, ok)
}
