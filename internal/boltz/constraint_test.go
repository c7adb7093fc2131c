package boltz_test

import (
	"encoding/json"
	"testing"

	"github.com/boltzchat/agents/internal/boltz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestClassifyConstraint(t *testing.T) {
	cases := map[string]boltz.ConstraintKind{
		`{"binder":"L1"}`:                              boltz.ConstraintPocket,
		`{"binder":null}`:                              boltz.ConstraintPocket,
		`{"constraint_type":"pocket"}`:                 boltz.ConstraintPocket,
		`{"atoms":[],"binder":"L1"}`:                   boltz.ConstraintPocket,
		`{"atoms":[]}`:                                 boltz.ConstraintBond,
		`{"constraint_type":"bond"}`:                   boltz.ConstraintBond,
		`{"constraint_type":"bond","binder":"L1"}`:     boltz.ConstraintPocket,
		`{"constraint_type":"distance"}`:               boltz.ConstraintUnrecognized,
		`{}`:                                           boltz.ConstraintUnrecognized,
		`"pocket"`:                                     boltz.ConstraintUnrecognized,
		`[{"binder":"L1"}]`:                            boltz.ConstraintUnrecognized,
		`{"constraint_type":["pocket"],"contacts":[]}`: boltz.ConstraintUnrecognized,
	}
	for raw, want := range cases {
		assert.Equal(t, want, boltz.ClassifyConstraint(gjson.Parse(raw)), raw)
	}
}

func TestConstraint_MarshalAddsType(t *testing.T) {
	pocket := boltz.NewPocketConstraint(boltz.PocketConstraint{
		Binder:   "L1",
		Contacts: []boltz.Contact{{ID: "A", ResidueIndex: 4}},
	})
	raw, err := json.Marshal(pocket)
	require.NoError(t, err)
	assert.JSONEq(t, `{"constraint_type":"pocket","binder":"L1","contacts":[{"id":"A","residue_index":4}]}`, string(raw))

	bond := boltz.NewBondConstraint(boltz.BondConstraint{
		Atoms: []boltz.Atom{{ID: "A", ResidueIndex: 1, AtomName: "SG"}},
	})
	raw, err = json.Marshal(bond)
	require.NoError(t, err)
	assert.JSONEq(t, `{"constraint_type":"bond","atoms":[{"id":"A","residue_index":1,"atom_name":"SG"}]}`, string(raw))
}

func TestConstraint_UnmarshalUsesShape(t *testing.T) {
	var c boltz.Constraint
	require.NoError(t, json.Unmarshal([]byte(`{"binder":"L1","contacts":[{"id":"A","residue_index":2}]}`), &c))
	assert.Equal(t, boltz.ConstraintPocket, c.Kind)
	require.NotNil(t, c.Pocket)
	assert.Nil(t, c.Bond)
	assert.Equal(t, []boltz.Contact{{ID: "A", ResidueIndex: 2}}, c.Pocket.Contacts)

	require.NoError(t, json.Unmarshal([]byte(`{"constraint_type":"bond","atoms":[]}`), &c))
	assert.Equal(t, boltz.ConstraintBond, c.Kind)
	assert.Nil(t, c.Pocket)

	assert.Error(t, json.Unmarshal([]byte(`{"kind":"distance"}`), &c))
}

func TestConstraint_MarshalUnrecognizedFails(t *testing.T) {
	_, err := json.Marshal(boltz.Constraint{})
	assert.Error(t, err)
}
