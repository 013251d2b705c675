// pkg/registry/schema.go
package registry

// TeamRegistry is the catalog of teams open for applications. The bot keeps
// it authoritative: stored records carry a team snapshot, but anything shown
// to users or reviewers resolves the display name from here at render time.
type TeamRegistry struct {
	Version     string `json:"version"`
	LastUpdated string `json:"lastUpdated"`
	Teams       []Team `json:"teams"`
}

type Team struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
}

// registrySchema is the JSON schema a registry file must satisfy before the
// bot accepts it.
func registrySchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"version", "teams"},
		"properties": map[string]interface{}{
			"version":     map[string]interface{}{"type": "string"},
			"lastUpdated": map[string]interface{}{"type": "string"},
			"teams": map[string]interface{}{
				"type":     "array",
				"minItems": 1,
				"items": map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"id", "displayName"},
					"properties": map[string]interface{}{
						"id":          map[string]interface{}{"type": "string", "pattern": "^[a-z][a-z0-9_]*$"},
						"displayName": map[string]interface{}{"type": "string", "minLength": 1},
						"description": map[string]interface{}{"type": "string"},
					},
				},
			},
		},
	}
}
