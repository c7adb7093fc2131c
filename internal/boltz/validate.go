package boltz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
)

// SchemaTitle is the title of the request schema handed to the extractor.
// A candidate carrying it means the extractor echoed the schema back.
const SchemaTitle = "Boltz2Request"

var (
	singleLetterID = regexp.MustCompile(`^[A-Z]$`)
	accessionID    = regexp.MustCompile(`^[A-Za-z0-9]{4}$`)
)

// ValidID reports whether s is a usable chain id: one uppercase letter or a
// four character alphanumeric accession code.
func ValidID(s string) bool {
	return singleLetterID.MatchString(s) || accessionID.MatchString(s)
}

// ValidateJSON parses raw candidate bytes and validates them. Bytes that are
// not JSON at all are reported the same way as a non-object candidate.
// Duplicate keys resolve to their last value, exactly as in Coerce.
func ValidateJSON(candidate []byte) []string {
	doc, ok := Canonicalize(candidate)
	if !ok {
		return []string{"Please provide a valid request."}
	}
	return Validate(gjson.ParseBytes(doc))
}

// Canonicalize rewrites a JSON document so every object has unique keys.
// A repeated key keeps the position of its first occurrence and the value of
// its last. Scalars are copied verbatim. ok is false for invalid JSON.
func Canonicalize(candidate []byte) (doc []byte, ok bool) {
	if !gjson.ValidBytes(candidate) {
		return nil, false
	}
	var b bytes.Buffer
	writeCanonical(&b, gjson.ParseBytes(candidate))
	return b.Bytes(), true
}

func writeCanonical(b *bytes.Buffer, r gjson.Result) {
	switch {
	case r.IsObject():
		var keys []string
		values := make(map[string]gjson.Result)
		r.ForEach(func(k, v gjson.Result) bool {
			if _, seen := values[k.Str]; !seen {
				keys = append(keys, k.Str)
			}
			values[k.Str] = v
			return true
		})
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			name, _ := json.Marshal(k)
			b.Write(name)
			b.WriteByte(':')
			writeCanonical(b, values[k])
		}
		b.WriteByte('}')
	case r.IsArray():
		b.WriteByte('[')
		i := 0
		r.ForEach(func(_, v gjson.Result) bool {
			if i > 0 {
				b.WriteByte(',')
			}
			writeCanonical(b, v)
			i++
			return true
		})
		b.WriteByte(']')
	default:
		b.WriteString(r.Raw)
	}
}

// Validate checks a loosely-typed candidate request and returns every problem
// found, in order. An empty result means the candidate can be coerced into a
// PredictionRequest. Malformed input never panics; anything that does is
// logged and re-panicked to the caller.
func Validate(candidate gjson.Result) (issues []string) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Error during validation of request parameters")
			panic(r)
		}
	}()

	v := &validator{}
	v.run(candidate)
	return v.issues
}

type validator struct {
	issues     []string
	polymerIDs idSet
	ligandIDs  idSet
}

func (v *validator) addf(format string, args ...interface{}) {
	v.issues = append(v.issues, fmt.Sprintf(format, args...))
}

func (v *validator) run(req gjson.Result) {
	if req.IsObject() && isString(req.Get("title"), SchemaTitle) {
		v.addf("Issue extracting parameters. Please try again.")
		return
	}
	if !req.IsObject() || len(req.Map()) == 0 {
		v.addf("Please provide a valid request.")
		return
	}

	polymers := req.Get("polymers")
	if !polymers.IsArray() || len(polymers.Array()) == 0 {
		v.addf("Please include at least one valid polymer.")
		return
	}
	if n := len(polymers.Array()); n > MaxPolymers {
		v.addf("You can include a maximum of %d polymers! You included %d!", MaxPolymers, n)
		return
	}
	for i, p := range polymers.Array() {
		v.polymer(fmt.Sprintf("Polymer %d", i+1), p)
	}

	if ligands := req.Get("ligands"); present(ligands) {
		if !ligands.IsArray() {
			v.addf("Ligands must be a list.")
			return
		}
		if n := len(ligands.Array()); n > MaxLigands {
			v.addf("You can include a maximum of %d ligands! You included %d!", MaxLigands, n)
			return
		}
		for i, l := range ligands.Array() {
			v.ligand(fmt.Sprintf("Ligand %d", i+1), l)
		}
	}

	if constraints := req.Get("constraints"); present(constraints) {
		if !constraints.IsArray() {
			v.addf("Constraints must be a list.")
			return
		}
		v.constraints(constraints.Array())
	}

	v.tuning(req)
}

// ── Polymers ─────────────────────────────────────────────────

func (v *validator) polymer(prefix string, p gjson.Result) {
	if !p.IsObject() {
		v.addf("%s must be an object.", prefix)
		return
	}

	id := p.Get("id")
	if id.Type == gjson.String && ValidID(id.Str) {
		v.polymerIDs.add(id.Str)
	} else if present(id) {
		v.addf("%s has invalid 'id'. Must be a single letter A-Z or 4-character alphanumeric string.", prefix)
	}

	var molType MoleculeType
	mt := p.Get("molecule_type")
	if mt.Type == gjson.String {
		molType, _ = ParseMoleculeType(mt.Str)
	}
	if molType == "" {
		v.addf("%s has missing or invalid 'molecule_type'. Must be one of: DNA, RNA, or Protein.", prefix)
	}

	seq := p.Get("sequence")
	if n := utf8.RuneCountInString(seq.Str); seq.Type != gjson.String || n < 1 || n > MaxSequenceLength {
		v.addf("%s has missing or invalid 'sequence'. Must be a string of length 1-%d.", prefix, MaxSequenceLength)
	}

	if cyclic := p.Get("cyclic"); present(cyclic) && !isBool(cyclic) {
		v.addf("%s has invalid 'cyclic'. Must be true or false.", prefix)
	}

	if msa := p.Get("msa"); present(msa) {
		switch {
		case molType != MoleculeProtein:
			v.addf("%s has msa specified, but msa is only allowed for protein molecules.", prefix)
		case !msa.IsObject():
			v.addf("%s msa must be a dictionary.", prefix)
		default:
			v.msa(prefix, msa)
		}
	}

	if mods := p.Get("modifications"); present(mods) {
		if !mods.IsArray() {
			v.addf("%s modifications must be a list.", prefix)
			return
		}
		for j, mod := range mods.Array() {
			v.modification(fmt.Sprintf("%s modification %d", prefix, j+1), mod)
		}
	}
}

func (v *validator) msa(prefix string, msa gjson.Result) {
	msa.ForEach(func(dbKey, formats gjson.Result) bool {
		db := dbKey.String()
		if !formats.IsObject() {
			v.addf("%s msa[%s] must be a dictionary of format -> alignment records.", prefix, db)
			return true
		}
		formats.ForEach(func(fmtKey, record gjson.Result) bool {
			format := fmtKey.String()
			if !AlignmentFormat(format).IsValid() {
				v.addf("%s msa[%s] has unsupported format '%s'. Must be one of: csv, a3m, fasta, sto.", prefix, db, format)
				return true
			}
			where := fmt.Sprintf("%s msa[%s][%s]", prefix, db, format)
			if !record.IsObject() {
				v.addf("%s must be a dictionary.", where)
				return true
			}
			alignment := record.Get("alignment")
			if alignment.Type != gjson.String || strings.TrimSpace(alignment.Str) == "" {
				v.addf("%s is missing a valid 'alignment' string.", where)
			}
			if got := record.Get("format"); !isString(got, format) {
				v.addf("%s has mismatched 'format'. Expected '%s', got '%s'.", where, format, display(got))
			}
			if rank := record.Get("rank"); present(rank) && !isInt(rank) {
				v.addf("%s has invalid 'rank'. Must be an integer if present.", where)
			}
			return true
		})
		return true
	})
}

func (v *validator) modification(prefix string, mod gjson.Result) {
	if !mod.IsObject() {
		v.addf("%s must be an object.", prefix)
		return
	}
	if !validCCD(mod.Get("ccd")) {
		v.addf("%s has missing or invalid 'ccd'. Must be a 1-%d character string.", prefix, MaxCCDLength)
	}
	if !positiveInt(mod.Get("position")) {
		v.addf("%s has missing or invalid 'position'. Must be an integer index ≥ 1.", prefix)
	}
}

// ── Ligands ──────────────────────────────────────────────────

func (v *validator) ligand(prefix string, l gjson.Result) {
	if !l.IsObject() {
		v.addf("%s must be an object.", prefix)
		return
	}
	ccd, smiles := l.Get("ccd"), l.Get("smiles")
	ccdValid := validCCD(ccd)
	smilesValid := smiles.Type == gjson.String && smiles.Str != ""

	// The unused alternative must be absent or null so that exactly one
	// survives sanitizing.
	switch {
	case ccdValid && smilesValid:
		v.addf("%s cannot have both a 'CCD' and 'SMILES' string. You must provide one or the other.", prefix)
	case !ccdValid && !smilesValid:
		v.addf("%s must include either a 'CCD' (1-%d chars) or a 'SMILES' string.", prefix, MaxCCDLength)
	case present(ccd) && !ccdValid:
		v.addf("%s has invalid 'CCD'. Must be a 1-%d character string.", prefix, MaxCCDLength)
	case present(smiles) && !smilesValid:
		v.addf("%s has invalid 'SMILES'. Must be a non-empty string.", prefix)
	}

	id := l.Get("id")
	switch {
	case id.Type == gjson.String && strings.TrimSpace(id.Str) != "":
		v.ligandIDs.add(id.Str)
	case present(id) && id.Type != gjson.String:
		v.addf("%s has invalid 'id'. Must be a string.", prefix)
	}
}

// ── Constraints ──────────────────────────────────────────────

const noLigandIDIssue = "In order to have a pocket constraint, at least one ligand must have a valid ID."

func (v *validator) constraints(constraints []gjson.Result) {
	if v.polymerIDs.empty() {
		v.addf("In order to have constraints, at least one polymer must have a valid ID.")
		pocketPresent := false
		for _, c := range constraints {
			if ClassifyConstraint(c) == ConstraintPocket {
				pocketPresent = true
				break
			}
		}
		if pocketPresent && v.ligandIDs.empty() {
			v.addf(noLigandIDIssue)
		}
		return
	}

	for i, c := range constraints {
		prefix := fmt.Sprintf("Constraint %d", i+1)
		switch ClassifyConstraint(c) {
		case ConstraintPocket:
			v.pocket(prefix, c)
		case ConstraintBond:
			v.bond(prefix, c)
		default:
			v.addf("%s must be either a pocket or bond constraint.", prefix)
		}
	}
}

func (v *validator) pocket(prefix string, c gjson.Result) {
	if v.ligandIDs.empty() {
		v.addf(noLigandIDIssue)
		return
	}

	binder := c.Get("binder")
	switch {
	case binder.Type != gjson.String || strings.TrimSpace(binder.Str) == "":
		v.addf("%s (pocket) is missing a valid 'binder' ID. Must match one of the ligand ids: %s.", prefix, v.ligandIDs)
	case !v.ligandIDs.has(binder.Str):
		v.addf("%s (pocket) binder '%s' does not match any ligand id. Valid ligand ids: %s.", prefix, binder.Str, v.ligandIDs)
	}

	contacts := c.Get("contacts")
	if !contacts.IsArray() || len(contacts.Array()) == 0 {
		v.addf("%s (pocket) must have a non-empty list of contacts.", prefix)
		return
	}
	for j, contact := range contacts.Array() {
		where := fmt.Sprintf("%s contact %d", prefix, j+1)
		if !contact.IsObject() {
			v.addf("%s must be an object.", where)
			continue
		}
		v.polymerRef(where, contact.Get("id"), "ID")
		if !positiveInt(contact.Get("residue_index")) {
			v.addf("%s has invalid 'residue_index'. Must be an integer index ≥ 1.", where)
		}
	}
}

func (v *validator) bond(prefix string, c gjson.Result) {
	atoms := c.Get("atoms")
	if !atoms.IsArray() || len(atoms.Array()) == 0 {
		v.addf("%s (bond) must have a non-empty list of atoms.", prefix)
		return
	}
	for j, atom := range atoms.Array() {
		where := fmt.Sprintf("%s atom %d", prefix, j+1)
		if !atom.IsObject() {
			v.addf("%s must be an object.", where)
			continue
		}
		v.polymerRef(where, atom.Get("id"), "id")
		if !positiveInt(atom.Get("residue_index")) {
			v.addf("%s has missing or invalid 'residue_index'. Must be an integer index ≥ 1.", where)
		}
		if name := atom.Get("atom_name"); name.Type != gjson.String || strings.TrimSpace(name.Str) == "" {
			v.addf("%s has missing or invalid 'atom_name'. Must be a non-empty string.", where)
		}
	}
}

// polymerRef checks a reference to a polymer id. Malformed ids and ids that
// are well formed but absent from the request get distinct issues.
func (v *validator) polymerRef(where string, id gjson.Result, noun string) {
	switch {
	case id.Type != gjson.String || !ValidID(id.Str):
		v.addf("%s has missing or invalid 'id'. Must match the polymer ids: %s.", where, v.polymerIDs)
	case !v.polymerIDs.has(id.Str):
		v.addf("%s refers to unknown polymer %s '%s'. Must match one of: %s.", where, noun, id.Str, v.polymerIDs)
	}
}

// ── Tuning parameters ────────────────────────────────────────

// tuning checks the optional top-level knobs so that a clean candidate always
// coerces. Absent or null knobs fall back to the defaults.
func (v *validator) tuning(req gjson.Result) {
	for _, key := range []string{"recycling_steps", "sampling_steps", "diffusion_samples"} {
		if r := req.Get(key); present(r) && !positiveInt(r) {
			v.addf("'%s' must be an integer ≥ 1.", key)
		}
	}
	if r := req.Get("step_scale"); present(r) && (r.Type != gjson.Number || r.Float() <= 0 || math.IsInf(r.Float(), 0)) {
		v.addf("'step_scale' must be a positive number.")
	}
	if r := req.Get("output_format"); present(r) && (r.Type != gjson.String || strings.TrimSpace(r.Str) == "") {
		v.addf("'output_format' must be a non-empty string such as mmcif.")
	}
	for _, key := range []string{"without_potentials", "concatenate_msas"} {
		if r := req.Get(key); present(r) && !isBool(r) {
			v.addf("'%s' must be true or false.", key)
		}
	}
}

// ── Value helpers ────────────────────────────────────────────

// present reports whether a key exists with a non-null value.
func present(r gjson.Result) bool {
	return r.Exists() && r.Type != gjson.Null
}

func isString(r gjson.Result, want string) bool {
	return r.Type == gjson.String && r.Str == want
}

// isInt accepts JSON numbers written without a fraction or exponent that fit
// in an int.
func isInt(r gjson.Result) bool {
	if r.Type != gjson.Number || strings.ContainsAny(r.Raw, ".eE") {
		return false
	}
	_, err := strconv.ParseInt(r.Raw, 10, strconv.IntSize)
	return err == nil
}

func isBool(r gjson.Result) bool {
	return r.Type == gjson.True || r.Type == gjson.False
}

func positiveInt(r gjson.Result) bool {
	return isInt(r) && r.Int() >= 1
}

func validCCD(r gjson.Result) bool {
	if r.Type != gjson.String {
		return false
	}
	n := utf8.RuneCountInString(r.Str)
	return n >= 1 && n <= MaxCCDLength
}

func display(r gjson.Result) string {
	switch {
	case !present(r):
		return "null"
	case r.Type == gjson.String:
		return r.Str
	}
	return r.Raw
}

// idSet keeps ids in first-seen order so issue text is deterministic.
type idSet struct {
	order []string
	seen  map[string]struct{}
}

func (s *idSet) add(id string) {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[id]; ok {
		return
	}
	s.seen[id] = struct{}{}
	s.order = append(s.order, id)
}

func (s idSet) has(id string) bool {
	_, ok := s.seen[id]
	return ok
}

func (s idSet) empty() bool { return len(s.order) == 0 }

func (s idSet) String() string { return strings.Join(s.order, ", ") }
