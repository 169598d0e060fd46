package detect

// catalogSchema is the structural contract for a rule catalog document
const catalogSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["rules"],
  "properties": {
    "actions": {
      "type": "array",
      "items": {"type": "string", "minLength": 1}
    },
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name", "condition"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "severity": {"type": "string", "enum": ["low", "medium", "high", "critical"]},
          "tags": {"type": "array", "items": {"type": "string"}},
          "condition": {"type": "string"},
          "window": {"type": "integer", "minimum": 1},
          "threshold": {"type": "integer", "minimum": 1},
          "actions": {"type": "array", "items": {"type": "string", "minLength": 1}}
        }
      }
    }
  }
}`
