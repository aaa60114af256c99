package core

// ToolRegistry is the closed catalog of callable tools. It is immutable after
// construction and safe to share across sessions. Adding a tool means adding
// a ToolName constant, a descriptor here and a case in Dispatcher.Dispatch;
// nothing else may introduce a tool name.
type ToolRegistry struct {
	descriptors []ToolDescriptor
	names       map[ToolName]struct{}
}

// DefaultRegistry returns the registry for the energy analysis tool set.
func DefaultRegistry() *ToolRegistry {
	return newRegistry([]ToolDescriptor{
		{
			Name:        ToolSearchEnergy,
			Description: "Search for Philippines energy-related information from the web",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{"type": "string", "description": "Search query for Philippines energy data"},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        ToolQueryVector,
			Description: "Query the Qdrant vector database for relevant historical energy data",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{"type": "string", "description": "Query to search in the vector database"},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        ToolQueryCache,
			Description: "Query the cached_pages table for previously stored Philippines energy sources",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{"type": "string", "description": "Query to search in the cached_pages table"},
				},
				"required": []string{"query"},
			},
		},
		{
			Name:        ToolStoreEnergy,
			Description: "Store new energy data in both the vector database and the cached_pages table",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"data":   map[string]interface{}{"type": "array", "description": "Array of energy data sources to store"},
					"topics": map[string]interface{}{"type": "array", "description": "Related topics for the data"},
				},
				"required": []string{"data", "topics"},
			},
		},
	})
}

func newRegistry(descriptors []ToolDescriptor) *ToolRegistry {
	names := make(map[ToolName]struct{}, len(descriptors))
	for _, d := range descriptors {
		names[d.Name] = struct{}{}
	}
	return &ToolRegistry{descriptors: descriptors, names: names}
}

// Descriptors returns the full tool list sent to the model on every call.
func (r *ToolRegistry) Descriptors() []ToolDescriptor {
	out := make([]ToolDescriptor, len(r.descriptors))
	copy(out, r.descriptors)
	return out
}

// Known reports whether name belongs to the closed tool set.
func (r *ToolRegistry) Known(name ToolName) bool {
	_, ok := r.names[name]
	return ok
}
