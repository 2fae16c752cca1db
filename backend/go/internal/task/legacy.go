package task

import (
	"strconv"
	"strings"

	"TaskAgent/backend/go/internal/models"
)

type legacyVerb func(args []string) map[string]models.Value

func joined(field string) legacyVerb {
	return func(args []string) map[string]models.Value {
		if len(args) == 0 {
			return map[string]models.Value{}
		}
		return map[string]models.Value{field: models.String(strings.Join(args, " "))}
	}
}

func first(field string) legacyVerb {
	return func(args []string) map[string]models.Value {
		if len(args) == 0 {
			return map[string]models.Value{}
		}
		return map[string]models.Value{field: models.String(args[0])}
	}
}

func fixed(field, value string) legacyVerb {
	return func([]string) map[string]models.Value {
		return map[string]models.Value{field: models.String(value)}
	}
}

func numbers(fields ...string) legacyVerb {
	return func(args []string) map[string]models.Value {
		out := make(map[string]models.Value, len(fields))
		for i, f := range fields {
			if i >= len(args) {
				break
			}
			if n, err := strconv.ParseFloat(args[i], 64); err == nil {
				out[f] = models.Number(n)
			} else {
				out[f] = models.String(args[i])
			}
		}
		return out
	}
}

var legacyVerbs = map[string]struct {
	kind Kind
	args legacyVerb
}{
	"click":   {KindClickText, joined("text")},
	"tap":     {KindTap, numbers("x", "y")},
	"type":    {KindSetText, joined("text")},
	"scroll":  {KindScroll, first("direction")},
	"back":    {KindGlobalAction, fixed("action", "back")},
	"home":    {KindGlobalAction, fixed("action", "home")},
	"recents": {KindGlobalAction, fixed("action", "recents")},
	"wait":    {KindWait, numbers("ms")},
	"open":    {KindOpenApp, first("package")},
	"ls":      {KindListFiles, first("path")},
	"rm":      {KindDeleteFile, first("path")},
	"stat":    {KindFileInfo, first("path")},
}

// parseLegacy maps a "<verb> <args>" command to a kind and payload.
// Unrecognized verbs become KindRaw carrying the literal command.
func parseLegacy(command string) (Kind, map[string]models.Value, bool) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", nil, false
	}
	verb := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	entry, ok := legacyVerbs[verb]
	if !ok {
		return KindRaw, map[string]models.Value{"text": models.String(strings.TrimSpace(command))}, true
	}
	return entry.kind, entry.args(fields[1:]), true
}
