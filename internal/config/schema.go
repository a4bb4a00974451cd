// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"encoding/json"
	"fmt"
	"sort"
)

// SchemaJSON returns the JSON schema for config.json.
func SchemaJSON() string {
	return configSchemaJSON
}

// ExampleConfigJSON returns a minimal example config derived from the schema.
func ExampleConfigJSON() string {
	return exampleConfigJSON
}

func normalizeConfigJSON(data []byte) ([]byte, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	migrateLegacyConfig(raw)
	if err := validateConfigMap(raw, ""); err != nil {
		return nil, err
	}
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return normalized, nil
}

// migrateLegacyConfig maps the flat prefix keys of earlier configs onto the
// prefixes section.
func migrateLegacyConfig(raw map[string]interface{}) {
	legacy := map[string]string{
		"mobile_prefix": "mobile",
		"root_prefix":   "root",
		"temp_prefix":   "temp",
	}
	for oldKey, newKey := range legacy {
		value, ok := raw[oldKey]
		if !ok {
			continue
		}
		delete(raw, oldKey)
		section, ok := raw["prefixes"].(map[string]interface{})
		if !ok {
			if _, present := raw["prefixes"]; present {
				// Leave the malformed section for validation to report.
				continue
			}
			section = map[string]interface{}{}
			raw["prefixes"] = section
		}
		if _, set := section[newKey]; !set {
			section[newKey] = value
		}
	}
}

func validateConfigMap(raw map[string]interface{}, prefix string) error {
	allowed := map[string]func(interface{}) error{
		"prefixes": func(v interface{}) error {
			return validatePrefixes(v, prefix+"prefixes.")
		},
		"temp_template": func(v interface{}) error { return validateString(v, prefix+"temp_template") },
		"strict_paths":  func(v interface{}) error { return validateBool(v, prefix+"strict_paths") },
		"confine":       func(v interface{}) error { return validateBool(v, prefix+"confine") },
		"audit_log":     func(v interface{}) error { return validateString(v, prefix+"audit_log") },
		"buffer_size":   func(v interface{}) error { return validateNumber(v, prefix+"buffer_size") },
	}
	return validateSection(raw, allowed, prefix)
}

func validatePrefixes(value interface{}, prefix string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object", prefix[:len(prefix)-1])
	}
	allowed := map[string]func(interface{}) error{
		"mobile": func(v interface{}) error { return validateString(v, prefix+"mobile") },
		"root":   func(v interface{}) error { return validateString(v, prefix+"root") },
		"temp":   func(v interface{}) error { return validateString(v, prefix+"temp") },
	}
	return validateSection(section, allowed, prefix)
}

func validateSection(section map[string]interface{}, allowed map[string]func(interface{}) error, prefix string) error {
	keys := make([]string, 0, len(section))
	for key := range section {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		validator, ok := allowed[key]
		if !ok {
			return fmt.Errorf("unknown configuration field %q", prefix+key)
		}
		if err := validator(section[key]); err != nil {
			return err
		}
	}
	return nil
}

func validateString(value interface{}, name string) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("%s must be a string", name)
	}
	return nil
}

func validateNumber(value interface{}, name string) error {
	n, ok := value.(float64)
	if !ok {
		return fmt.Errorf("%s must be a number", name)
	}
	if n != float64(int64(n)) {
		return fmt.Errorf("%s must be an integer", name)
	}
	return nil
}

func validateBool(value interface{}, name string) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("%s must be a boolean", name)
	}
	return nil
}

const configSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "as_root Config",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "prefixes": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "mobile": { "type": "string" },
        "root": { "type": "string" },
        "temp": { "type": "string" }
      }
    },
    "temp_template": { "type": "string" },
    "strict_paths": { "type": "boolean" },
    "confine": { "type": "boolean" },
    "audit_log": { "type": "string" },
    "buffer_size": { "type": "integer", "minimum": 1, "maximum": 1048576 }
  }
}`

const exampleConfigJSON = `{
  "prefixes": {
    "mobile": "/var/mobile/Library/Logs/CrashReporter",
    "root": "/Library/Logs/CrashReporter",
    "temp": "/tmp"
  },
  "temp_template": "CrashReporter.temp.",
  "strict_paths": true,
  "confine": true,
  "audit_log": "/var/log/as_root.log"
}`
