package boltz

import (
	"encoding/json"
	"fmt"
)

// SanitizeLigand deletes whichever of ccd and smiles holds no value. The
// prediction service rejects an explicit null for the unused alternative.
func SanitizeLigand(ligand map[string]interface{}) map[string]interface{} {
	for _, key := range []string{"ccd", "smiles"} {
		if v, ok := ligand[key]; ok && v == nil {
			delete(ligand, key)
		}
	}
	return ligand
}

// Payload serializes the request into its wire form with every ligand
// sanitized.
func (r *PredictionRequest) Payload() (map[string]interface{}, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal request payload: %w", err)
	}

	if ligands, ok := payload["ligands"].([]interface{}); ok {
		for i, l := range ligands {
			if rec, ok := l.(map[string]interface{}); ok {
				ligands[i] = SanitizeLigand(rec)
			}
		}
	}
	return payload, nil
}
