// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// LoadRegistry reads and validates a team registry file. The file is
// schema-checked before decoding so a malformed registry fails loudly at
// startup instead of surfacing as unknown teams later.
func LoadRegistry(path string) (*TeamRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var document map[string]interface{}
	if err := json.Unmarshal(data, &document); err != nil {
		return nil, fmt.Errorf("failed to parse registry file: %w", err)
	}

	if err := validateDocument(document); err != nil {
		return nil, err
	}

	var reg TeamRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to decode registry: %w", err)
	}

	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

func validateDocument(document map[string]interface{}) error {
	schemaLoader := gojsonschema.NewGoLoader(registrySchema())
	documentLoader := gojsonschema.NewGoLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return fmt.Errorf("registry validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Default returns the compiled-in registry used when no registry file is
// configured.
func Default() *TeamRegistry {
	return &TeamRegistry{
		Version: "1.0.0",
		Teams: []Team{
			{ID: "team_exams", DisplayName: "تيم الاختبارات", Description: "إعداد ومراجعة الاختبارات"},
			{ID: "team_collections", DisplayName: "تيم التجميعات", Description: "تجميع ومراجعة المواد"},
			{ID: "team_support", DisplayName: "تيم الدعم الفني", Description: "الدعم الفني للمستخدمين"},
		},
	}
}

// Validate runs the semantic checks the schema cannot express.
func (r *TeamRegistry) Validate() error {
	if len(r.Teams) == 0 {
		return fmt.Errorf("registry contains no teams")
	}

	ids := make(map[string]bool)
	for _, team := range r.Teams {
		if team.ID == "" {
			return fmt.Errorf("team missing required field: ID")
		}
		if team.DisplayName == "" {
			return fmt.Errorf("team %s missing required field: DisplayName", team.ID)
		}
		if ids[team.ID] {
			return fmt.Errorf("duplicate team ID: %s", team.ID)
		}
		ids[team.ID] = true
	}
	return nil
}

// Has reports whether the registry knows the team.
func (r *TeamRegistry) Has(id string) bool {
	_, ok := r.Get(id)
	return ok
}

// Get returns the team for an ID.
func (r *TeamRegistry) Get(id string) (*Team, bool) {
	for i := range r.Teams {
		if r.Teams[i].ID == id {
			return &r.Teams[i], true
		}
	}
	return nil, false
}

// DisplayName resolves a team ID to its current display name.
func (r *TeamRegistry) DisplayName(id string) (string, bool) {
	team, ok := r.Get(id)
	if !ok {
		return "", false
	}
	return team.DisplayName, true
}

// IDs returns team IDs in registry order, which is also button order.
func (r *TeamRegistry) IDs() []string {
	ids := make([]string, len(r.Teams))
	for i, team := range r.Teams {
		ids[i] = team.ID
	}
	return ids
}
