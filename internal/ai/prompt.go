package ai

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	"google.golang.org/genai"
)

var requiredFields = []string{"date", "dayOfWeek", "startTime", "endTime", "location"}

var (
	schemaOnce sync.Once
	schemaJSON string
)

// Schema returns the JSON schema of the extraction response, reflected from
// shiftList.
func Schema() string {
	schemaOnce.Do(func() {
		r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
		data, err := json.Marshal(r.Reflect(&shiftList{}))
		if err != nil {
			panic(fmt.Sprintf("reflecting shift schema: %v", err))
		}
		schemaJSON = string(data)
	})
	return schemaJSON
}

// schemaMap is Schema without the meta keys some providers reject.
func schemaMap() map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(Schema()), &m); err != nil {
		panic(fmt.Sprintf("decoding shift schema: %v", err))
	}
	delete(m, "$schema")
	delete(m, "$id")
	return m
}

// geminiSchema mirrors Schema as a bare array, which is what Gemini returns
// most reliably.
func geminiSchema() *genai.Schema {
	props := make(map[string]*genai.Schema, len(requiredFields))
	for _, f := range requiredFields {
		props[f] = &genai.Schema{Type: genai.TypeString}
	}
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type:             genai.TypeObject,
			Properties:       props,
			Required:         requiredFields,
			PropertyOrdering: requiredFields,
		},
	}
}

func buildPrompt(userName string, referenceYear int) string {
	return fmt.Sprintf(`You are reading a photo of a printed weekly work schedule.

Find every shift assigned to the employee named %q.
- The name may be abbreviated, use only a first or last name, or be written in a different script than given here. Match reasonable variants and partial matches.
- The schedule may mix languages and scripts. Keep dayOfWeek as it is printed.
- Dates written with a two-digit year or without a year belong to %d. Output dates as YYYY-MM-DD.
- Times written as bare hours such as "9-16" mean 09:00 to 16:00. Output times as zero-padded 24-hour HH:MM.
- Take the location of each shift from its column header, section header or nearby label.
- Return one entry per shift, in the order they appear on the schedule.
- If the employee has no shifts on this schedule, return an empty list.

Return only JSON matching the required schema.`, userName, referenceYear)
}
