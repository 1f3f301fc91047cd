package schema

// taskSchemaJSON is the explicit schema every task record is checked
// against before it reaches a board artifact. additionalProperties stays
// open so collaborators can attach forward-compatible fields.
const taskSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "agentboard task record",
  "type": "object",
  "required": ["task_id", "description", "status", "priority", "created_at", "updated_at"],
  "properties": {
    "task_id": {
      "type": "string",
      "minLength": 1
    },
    "description": {
      "type": "string",
      "minLength": 1
    },
    "status": {
      "enum": [
        "unclaimed",
        "claimed",
        "working",
        "blocked",
        "completed_pending_review",
        "completed",
        "failed",
        "archived"
      ]
    },
    "assigned_agent_id": {
      "type": "string",
      "minLength": 1
    },
    "dependencies": {
      "type": ["array", "null"],
      "items": {
        "type": "string",
        "minLength": 1
      },
      "uniqueItems": true
    },
    "priority": {
      "enum": ["critical", "high", "normal", "low"]
    },
    "history": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["timestamp", "old_status", "new_status", "actor"],
        "properties": {
          "timestamp": {"type": "string", "format": "date-time"},
          "old_status": {"type": "string"},
          "new_status": {
            "enum": [
              "unclaimed",
              "claimed",
              "working",
              "blocked",
              "completed_pending_review",
              "completed",
              "failed",
              "archived"
            ]
          },
          "actor": {"type": "string", "minLength": 1},
          "note": {"type": "string"}
        }
      }
    },
    "created_at": {"type": "string", "format": "date-time"},
    "updated_at": {"type": "string", "format": "date-time"},
    "summary": {"type": "string"},
    "outputs": {"type": "object"}
  },
  "additionalProperties": true
}`
