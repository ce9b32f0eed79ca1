package clara

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// ScriptSchema returns the JSON Schema of the dialogue script format, for
// editor validation of script files.
func ScriptSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	schema := reflector.Reflect(&scriptDoc{})
	schema.Title = "Clara dialogue script"
	return schema
}

// ScriptSchemaJSON renders ScriptSchema as indented JSON.
func ScriptSchemaJSON() ([]byte, error) {
	return json.MarshalIndent(ScriptSchema(), "", "  ")
}
