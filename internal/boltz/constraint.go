package boltz

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ConstraintKind discriminates the Constraint sum type.
type ConstraintKind string

const (
	ConstraintPocket ConstraintKind = "pocket"
	ConstraintBond   ConstraintKind = "bond"
	// ConstraintUnrecognized is never sent on the wire; it marks candidates
	// that look like neither a pocket nor a bond.
	ConstraintUnrecognized ConstraintKind = ""
)

// ClassifyConstraint sniffs the shape of a loosely-typed constraint. A
// binder key or constraint_type "pocket" wins over an atoms key or
// constraint_type "bond". Anything that is not an object is unrecognized.
func ClassifyConstraint(c gjson.Result) ConstraintKind {
	if !c.IsObject() {
		return ConstraintUnrecognized
	}
	ctype := c.Get("constraint_type")
	isType := func(kind ConstraintKind) bool {
		return ctype.Type == gjson.String && ctype.Str == string(kind)
	}
	switch {
	case c.Get("binder").Exists() || isType(ConstraintPocket):
		return ConstraintPocket
	case c.Get("atoms").Exists() || isType(ConstraintBond):
		return ConstraintBond
	}
	return ConstraintUnrecognized
}

// Contact is a residue on a polymer that lines a binding pocket.
type Contact struct {
	ID           string `json:"id"`
	ResidueIndex int    `json:"residue_index"`
}

// Atom addresses one atom of a residue on a polymer.
type Atom struct {
	ID           string `json:"id"`
	ResidueIndex int    `json:"residue_index"`
	AtomName     string `json:"atom_name"`
}

// PocketConstraint asks for a ligand to bind near the given contacts.
type PocketConstraint struct {
	Binder   string    `json:"binder"`
	Contacts []Contact `json:"contacts"`
}

// BondConstraint asks for a covalent bond between the given atoms.
type BondConstraint struct {
	Atoms []Atom `json:"atoms"`
}

// Constraint holds exactly one of Pocket or Bond, selected by Kind.
type Constraint struct {
	Kind   ConstraintKind
	Pocket *PocketConstraint
	Bond   *BondConstraint
}

// NewPocketConstraint wraps p as a Constraint.
func NewPocketConstraint(p PocketConstraint) Constraint {
	return Constraint{Kind: ConstraintPocket, Pocket: &p}
}

// NewBondConstraint wraps b as a Constraint.
func NewBondConstraint(b BondConstraint) Constraint {
	return Constraint{Kind: ConstraintBond, Bond: &b}
}

var errUnrecognizedConstraint = errors.New("constraint must be either a pocket or bond constraint")

func (c Constraint) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case ConstraintPocket:
		if c.Pocket == nil {
			return nil, fmt.Errorf("pocket constraint has no body")
		}
		return json.Marshal(struct {
			ConstraintType ConstraintKind `json:"constraint_type"`
			*PocketConstraint
		}{ConstraintPocket, c.Pocket})
	case ConstraintBond:
		if c.Bond == nil {
			return nil, fmt.Errorf("bond constraint has no body")
		}
		return json.Marshal(struct {
			ConstraintType ConstraintKind `json:"constraint_type"`
			*BondConstraint
		}{ConstraintBond, c.Bond})
	}
	return nil, errUnrecognizedConstraint
}

func (c *Constraint) UnmarshalJSON(data []byte) error {
	switch ClassifyConstraint(gjson.ParseBytes(data)) {
	case ConstraintPocket:
		var p PocketConstraint
		if err := json.Unmarshal(data, &p); err != nil {
			return fmt.Errorf("pocket constraint: %w", err)
		}
		*c = NewPocketConstraint(p)
	case ConstraintBond:
		var b BondConstraint
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("bond constraint: %w", err)
		}
		*c = NewBondConstraint(b)
	default:
		return errUnrecognizedConstraint
	}
	return nil
}
