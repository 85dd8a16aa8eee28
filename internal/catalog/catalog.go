package catalog

import (
	"sort"
	"strings"

	"mlxconv/pkg/types"
)

// entries is the fixed set of models the tool knows how to convert.
// There is no dynamic registration; new models are added here.
var entries = map[string]types.CatalogEntry{
	"deepseek-r1-8b": {
		ID:          "deepseek-r1-8b",
		HFPath:      "deepseek-ai/DeepSeek-R1-Distill-Llama-8B",
		Description: "DeepSeek R1 Distilled Llama 8B - optimized reasoning model",
	},
	"deepseek-r1-qwen-8b": {
		ID:          "deepseek-r1-qwen-8b",
		HFPath:      "deepseek-ai/DeepSeek-R1-Distill-Qwen2.5-7B",
		Description: "DeepSeek R1 Distilled Qwen 7B - lightweight reasoning model",
	},
}

// DefaultID is used when no --model flag is given.
const DefaultID = "deepseek-r1-8b"

// Lookup resolves a logical model id. Unknown ids return an error that
// lists the valid ids, detectable via IsUnknownModel.
func Lookup(id string) (types.CatalogEntry, error) {
	e, ok := entries[id]
	if !ok {
		return types.CatalogEntry{}, unknownModelError{id: id, valid: IDs()}
	}
	return e, nil
}

// IDs returns all catalog ids in sorted order.
func IDs() []string {
	ids := make([]string, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns the catalog entries sorted by id.
func All() []types.CatalogEntry {
	all := make([]types.CatalogEntry, 0, len(entries))
	for _, id := range IDs() {
		all = append(all, entries[id])
	}
	return all
}

// unknownModelError signals a model id that is not in the catalog.
type unknownModelError struct {
	id    string
	valid []string
}

func (e unknownModelError) Error() string {
	return "unknown model: " + e.id + " (available: " + strings.Join(e.valid, ", ") + ")"
}

// IsUnknownModel reports whether err indicates a missing catalog id.
func IsUnknownModel(err error) bool {
	_, ok := err.(unknownModelError)
	return ok
}
