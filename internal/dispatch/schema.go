package dispatch

const datePattern = `^[0-9]{4}-[0-9]{2}-[0-9]{2}$`

func object(required []string, props map[string]any) map[string]any {
	s := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// anyOf requires at least one of the given property sets.
func anyOf(s map[string]any, sets ...[]string) map[string]any {
	alts := make([]any, 0, len(sets))
	for _, req := range sets {
		alts = append(alts, map[string]any{"required": req})
	}
	s["anyOf"] = alts
	return s
}

func str(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func pattern(desc, re string) map[string]any {
	return map[string]any{"type": "string", "description": desc, "pattern": re}
}

func integer(desc string, min, max int) map[string]any {
	return map[string]any{"type": "integer", "description": desc, "minimum": min, "maximum": max}
}

func boolean(desc string) map[string]any {
	return map[string]any{"type": "boolean", "description": desc}
}

func enum(desc string, values ...string) map[string]any {
	return map[string]any{"type": "string", "description": desc, "enum": values}
}
