package notebook

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// outputMetadataFields are cell metadata keys that only describe rendered output.
var outputMetadataFields = []string{"collapsed", "scrolled"}

// Export re-encodes a notebook for the content store with four-space
// indentation. When stripOutputs is set, code cells lose their outputs,
// execution counts and output-related metadata. Unknown fields are kept.
func Export(data []byte, stripOutputs bool) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var nb map[string]any
	if err := dec.Decode(&nb); err != nil {
		return nil, fmt.Errorf("notebook: export: %w", err)
	}

	if stripOutputs {
		for _, cell := range allCells(nb) {
			stripCell(cell)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(nb); err != nil {
		return nil, fmt.Errorf("notebook: export: %w", err)
	}
	return buf.Bytes(), nil
}

// allCells returns the cell objects of an nbformat 4 or nbformat 3 notebook.
func allCells(nb map[string]any) []map[string]any {
	var out []map[string]any
	collect := func(v any) {
		list, _ := v.([]any)
		for _, item := range list {
			if cell, ok := item.(map[string]any); ok {
				out = append(out, cell)
			}
		}
	}
	collect(nb["cells"])
	if sheets, ok := nb["worksheets"].([]any); ok {
		for _, s := range sheets {
			if ws, ok := s.(map[string]any); ok {
				collect(ws["cells"])
			}
		}
	}
	return out
}

func stripCell(cell map[string]any) {
	if cell["cell_type"] != "code" {
		return
	}
	cell["outputs"] = []any{}
	if _, ok := cell["prompt_number"]; ok {
		delete(cell, "prompt_number")
	} else {
		cell["execution_count"] = nil
	}
	if md, ok := cell["metadata"].(map[string]any); ok {
		for _, f := range outputMetadataFields {
			delete(md, f)
		}
	}
}
