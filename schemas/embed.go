// Package schemas embeds the JSON Schemas for user-editable configuration files.
package schemas

import _ "embed"

// SelectorsSchema is the JSON Schema for selector-set override files.
//
//go:embed selectors.schema.json
var SelectorsSchema string
