package sidebar

import (
	_ "embed"
	"encoding/json"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"labguide/internal/config"
)

//go:embed sidebar_schema.json
var schemaJSON string

var sidebarSchema = jsonschema.MustCompileString("sidebar_schema.json", schemaJSON)

// validateSchema checks the declaration's structure before the typed
// build runs. The YAML document round-trips through JSON because the
// validator operates on encoding/json value types.
func validateSchema(raw rawSidebar) error {
	data, err := json.Marshal(raw)
	if err != nil {
		return &config.Error{Msg: fmt.Sprintf("sidebar: encode for validation: %v", err)}
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return &config.Error{Msg: fmt.Sprintf("sidebar: decode for validation: %v", err)}
	}
	if err := sidebarSchema.Validate(doc); err != nil {
		return &config.Error{Field: "sidebar", Msg: err.Error()}
	}
	return nil
}
