// Package boltz holds the structure-prediction side of the system: the typed
// Boltz-2 request and response model, the validator that guards coercion into
// that model, the ligand sanitizer, the prediction client and the reply
// formatter.
package boltz

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ── Limits & Defaults ────────────────────────────────────────

const (
	MaxPolymers       = 12
	MaxLigands        = 20
	MaxSequenceLength = 4096
	MaxCCDLength      = 3

	DefaultRecyclingSteps   = 3
	DefaultSamplingSteps    = 50
	DefaultDiffusionSamples = 1
	DefaultStepScale        = 1.638
	DefaultOutputFormat     = "mmcif"

	// DefaultRank is sent for alignment records that carry no rank.
	DefaultRank = -1
)

// ── Enumerations ─────────────────────────────────────────────

// MoleculeType is the kind of polymer. Values are lowercase on the wire.
type MoleculeType string

const (
	MoleculeDNA     MoleculeType = "dna"
	MoleculeRNA     MoleculeType = "rna"
	MoleculeProtein MoleculeType = "protein"
)

// ParseMoleculeType accepts any casing of dna, rna or protein.
func ParseMoleculeType(s string) (MoleculeType, bool) {
	switch MoleculeType(strings.ToLower(s)) {
	case MoleculeDNA:
		return MoleculeDNA, true
	case MoleculeRNA:
		return MoleculeRNA, true
	case MoleculeProtein:
		return MoleculeProtein, true
	}
	return "", false
}

func (m *MoleculeType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("molecule_type: %w", err)
	}
	mt, ok := ParseMoleculeType(s)
	if !ok {
		return fmt.Errorf("molecule_type: unknown value %q", s)
	}
	*m = mt
	return nil
}

// AlignmentFormat is the file format of an MSA record.
type AlignmentFormat string

const (
	FormatCSV   AlignmentFormat = "csv"
	FormatA3M   AlignmentFormat = "a3m"
	FormatFASTA AlignmentFormat = "fasta"
	FormatSTO   AlignmentFormat = "sto"
)

// IsValid reports whether f is one of the supported alignment formats.
func (f AlignmentFormat) IsValid() bool {
	switch f {
	case FormatCSV, FormatA3M, FormatFASTA, FormatSTO:
		return true
	}
	return false
}

// ── Request ──────────────────────────────────────────────────

// Modification is a chemically modified residue inside a polymer.
type Modification struct {
	CCD      string `json:"ccd"`
	Position int    `json:"position"`
}

// AlignmentRecord is one MSA file for a protein polymer.
type AlignmentRecord struct {
	Alignment string          `json:"alignment"`
	Format    AlignmentFormat `json:"format"`
	Rank      int             `json:"rank"`
}

func (a *AlignmentRecord) UnmarshalJSON(data []byte) error {
	type plain AlignmentRecord
	rec := plain{Rank: DefaultRank}
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	*a = AlignmentRecord(rec)
	return nil
}

// MSA maps a database name to its alignment records keyed by format.
type MSA map[string]map[AlignmentFormat]AlignmentRecord

// Polymer is a DNA, RNA or protein chain.
type Polymer struct {
	ID            *string        `json:"id,omitempty"`
	MoleculeType  MoleculeType   `json:"molecule_type"`
	Sequence      string         `json:"sequence"`
	Cyclic        bool           `json:"cyclic"`
	MSA           MSA            `json:"msa,omitempty"`
	Modifications []Modification `json:"modifications,omitempty"`
}

// Ligand is a small molecule given by CCD code or SMILES string, never both.
// The two alternatives serialize as explicit nulls; Sanitize removes them.
type Ligand struct {
	ID     *string `json:"id,omitempty"`
	SMILES *string `json:"smiles"`
	CCD    *string `json:"ccd"`
}

// PredictionRequest is the validated, typed body sent to the prediction service.
type PredictionRequest struct {
	Polymers          []Polymer    `json:"polymers"`
	Ligands           []Ligand     `json:"ligands,omitempty"`
	Constraints       []Constraint `json:"constraints,omitempty"`
	RecyclingSteps    int          `json:"recycling_steps"`
	SamplingSteps     int          `json:"sampling_steps"`
	DiffusionSamples  int          `json:"diffusion_samples"`
	StepScale         float64      `json:"step_scale"`
	WithoutPotentials bool         `json:"without_potentials"`
	OutputFormat      string       `json:"output_format"`
	ConcatenateMSAs   bool         `json:"concatenate_msas"`
}

// NewPredictionRequest returns a request carrying the given polymers and the
// default tuning parameters.
func NewPredictionRequest(polymers ...Polymer) *PredictionRequest {
	return &PredictionRequest{
		Polymers:         polymers,
		RecyclingSteps:   DefaultRecyclingSteps,
		SamplingSteps:    DefaultSamplingSteps,
		DiffusionSamples: DefaultDiffusionSamples,
		StepScale:        DefaultStepScale,
		OutputFormat:     DefaultOutputFormat,
	}
}

func (r *PredictionRequest) UnmarshalJSON(data []byte) error {
	type plain PredictionRequest
	req := plain(*NewPredictionRequest())
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	*r = PredictionRequest(req)
	return nil
}

// Coerce converts a candidate that passed ValidateJSON into the typed
// request. It reads the same canonical document the validator saw.
func Coerce(candidate []byte) (*PredictionRequest, error) {
	doc, ok := Canonicalize(candidate)
	if !ok {
		return nil, fmt.Errorf("coerce prediction request: invalid JSON")
	}
	var req PredictionRequest
	if err := json.Unmarshal(doc, &req); err != nil {
		return nil, fmt.Errorf("coerce prediction request: %w", err)
	}
	return &req, nil
}

// ── Response ─────────────────────────────────────────────────

// Metric carries the per-structure confidence metrics reported by the service.
type Metric struct {
	PLDDT   []float64   `json:"plddt,omitempty"`
	PTM     *float64    `json:"ptm,omitempty"`
	IPTM    *float64    `json:"iptm,omitempty"`
	PAE     [][]float64 `json:"pae,omitempty"`
	RMSD    *float64    `json:"rmsd,omitempty"`
	TMScore *float64    `json:"tm_score,omitempty"`
}

// Structure is one predicted structure in text form (mmCIF or PDB).
type Structure struct {
	Structure string  `json:"structure"`
	Format    string  `json:"format"`
	Name      *string `json:"name,omitempty"`
	Source    *string `json:"source,omitempty"`
}

// PredictionResponse is the typed body returned by the prediction service.
// ConfidenceScores is aligned by index with Structures.
type PredictionResponse struct {
	Structures       []Structure       `json:"structures"`
	Metrics          map[string]Metric `json:"metrics,omitempty"`
	ConfidenceScores []float64         `json:"confidence_scores"`
}
