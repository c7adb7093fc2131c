package boltz

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed schema.json
var schemaJSON []byte

// Schema returns a fresh copy of the request's JSON schema, ready to be sent
// to an extractor as its output schema.
func Schema() map[string]interface{} {
	var s map[string]interface{}
	if err := json.Unmarshal(schemaJSON, &s); err != nil {
		panic(fmt.Sprintf("boltz: embedded schema is invalid: %v", err))
	}
	return s
}

// ExtractionPrompt instructs the extractor how to fill the request schema.
const ExtractionPrompt = `You are generating a structured object representing a protein design request for the MIT Boltz2 API. The user will provide a natural language input describing one or more biological polymers, ligands, or constraints.

Your job is to use the information that the user provides to fill out the given output schema.

If the user does not specify a field, omit that field from your response. It is VERY important that you do not hallucinate values. The code will apply defaults for you.

ONLY fill fields the user provides information for.

It is very important that if the user says something completely unrelated to the schema, return an empty dictionary.

However, if the user refers to a field in the schema, you must include the information they provide for that field in the output.

If the user requests the structure of a polymer by name, i.e. Human Insulin, please fill in the molecule_type and sequence attributes to the best of your knowledge. **Never abbreviate the sequence. Always include the FULL sequence in capital letter format as ONE STRING. DO NOT cut off the sequence before it is complete.**

If the user asks for a certain number of predictions or structures, assume they are referring to diffusion_samples

When including the 'msa' field in the polymers, structure it as a nested dictionary in the format:
{
  "msa": {
    "<database_name>": {
      "<format>": {
        "alignment": "<alignment_string>",
        "format": "<format_string>"
      }
    }
  }
}

**NEVER return any fields from the schema itself (including 'title': 'Boltz2Request'). You are solely supposed to fill in the schema. If you are unsure of what to return, just return an empty dictionary.**

Example:
If the user says:
"Predict the structure of the following protein: MTEYKLVVVGAGGVGKSALTIQLIQNHFVDEYDPTIEDSYRKQVVIDGETCLLDILDTAG"

Then output:
{
  "polymers": [
    {
      "molecule_type": "protein",
      "sequence": "MTEYKLVVVGAGGVGKSALTIQLIQNHFVDEYDPTIEDSYRKQVVIDGETCLLDILDTAG"
    }
  ]
}

If the user says:
"Hello!"

Then output:
{}
`

// Prompt wraps the user's text in the extraction instructions.
func Prompt(text string) string {
	return ExtractionPrompt + " Here is the user's prompt: " + text
}
