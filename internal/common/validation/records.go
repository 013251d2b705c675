package validation

// Schemas for the persisted collections. Records failing these checks are
// treated as corrupt and dropped on load rather than poisoning the dataset.

// ApplicationRecordSchema describes one entry of the applications collection.
func ApplicationRecordSchema() JSONSchema {
	return JSONSchema{
		Type: "object",
		Properties: map[string]Property{
			"id":            {Type: "string"},
			"user_info":     {Type: "object"},
			"selected_team": {Type: "string"},
			"team_name":     {Type: "string"},
			"gender":        {Type: "string"},
			"reason":        {Type: "string"},
			"experience":    {Type: "string"},
			"whatsapp":      {Type: "string"},
			"timestamp":     {Type: "string"},
			"status":        {Type: "string"},
			"decided_by":    {Type: "string"},
			"decided_at":    {Type: "string"},
		},
		Required:             []string{"user_info", "selected_team", "team_name", "reason", "experience", "timestamp"},
		AdditionalProperties: true,
	}
}

// UserRecordSchema describes one value of the users collection.
func UserRecordSchema() JSONSchema {
	return JSONSchema{
		Type: "object",
		Properties: map[string]Property{
			"first_name":         {Type: "string"},
			"last_name":          {Type: "string"},
			"username":           {Type: "string"},
			"first_seen":         {Type: "string"},
			"last_active":        {Type: "string"},
			"applications":       {Type: "array", Items: &Property{Type: "object"}},
			"total_applications": {Type: "number"},
		},
		Required:             []string{"first_name", "first_seen", "applications"},
		AdditionalProperties: true,
	}
}

// ValidateApplicationRecord checks a decoded application entry for integrity.
func ValidateApplicationRecord(record map[string]interface{}) *ValidationResult {
	return ValidateRecord(record, ApplicationRecordSchema())
}

// ValidateUserRecord checks a decoded user entry for integrity.
func ValidateUserRecord(record map[string]interface{}) *ValidationResult {
	return ValidateRecord(record, UserRecordSchema())
}
