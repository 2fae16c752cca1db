package task

import (
	"strings"

	"TaskAgent/backend/go/internal/models"
)

// Kind is a member of the closed set of supported operations.
type Kind string

const (
	KindClickText    Kind = "click_text"
	KindClickID      Kind = "click_id"
	KindSetText      Kind = "set_text"
	KindScroll       Kind = "scroll"
	KindGlobalAction Kind = "global_action"
	KindTap          Kind = "tap"
	KindWait         Kind = "wait"
	KindOpenApp      Kind = "open_app"
	KindListFiles    Kind = "list_files"
	KindDeleteFile   Kind = "delete_file"
	KindFileInfo     Kind = "file_info"
	// KindRaw carries an unrecognized legacy command verbatim. It is never
	// reachable through the structured action field.
	KindRaw Kind = "raw"
)

// Kinds lists every kind accepted through the structured action field.
var Kinds = []Kind{
	KindClickText, KindClickID, KindSetText, KindScroll, KindGlobalAction,
	KindTap, KindWait, KindOpenApp, KindListFiles, KindDeleteFile, KindFileInfo,
}

type alias struct {
	kind     Kind
	defaults map[string]models.Value
}

var aliases = map[string]alias{
	"click":           {kind: KindClickText},
	"click_by_text":   {kind: KindClickText},
	"tap_text":        {kind: KindClickText},
	"click_by_id":     {kind: KindClickID},
	"click_view_id":   {kind: KindClickID},
	"type":            {kind: KindSetText},
	"input":           {kind: KindSetText},
	"input_text":      {kind: KindSetText},
	"settext":         {kind: KindSetText},
	"swipe":           {kind: KindScroll},
	"global":          {kind: KindGlobalAction},
	"back":            {kind: KindGlobalAction, defaults: map[string]models.Value{"action": models.String("back")}},
	"home":            {kind: KindGlobalAction, defaults: map[string]models.Value{"action": models.String("home")}},
	"recents":         {kind: KindGlobalAction, defaults: map[string]models.Value{"action": models.String("recents")}},
	"notifications":   {kind: KindGlobalAction, defaults: map[string]models.Value{"action": models.String("notifications")}},
	"tap_xy":          {kind: KindTap},
	"tap_coordinates": {kind: KindTap},
	"sleep":           {kind: KindWait},
	"delay":           {kind: KindWait},
	"launch":          {kind: KindOpenApp},
	"launch_app":      {kind: KindOpenApp},
	"open":            {kind: KindOpenApp},
	"ls":              {kind: KindListFiles},
	"list":            {kind: KindListFiles},
	"dir":             {kind: KindListFiles},
	"rm":              {kind: KindDeleteFile},
	"del":             {kind: KindDeleteFile},
	"delete":          {kind: KindDeleteFile},
	"stat":            {kind: KindFileInfo},
}

func init() {
	for _, k := range Kinds {
		aliases[string(k)] = alias{kind: k}
	}
}

// normalizeAction trims, lower-cases and maps '-' and ' ' to '_'.
func normalizeAction(action string) string {
	a := strings.ToLower(strings.TrimSpace(action))
	return strings.NewReplacer("-", "_", " ", "_").Replace(a)
}

func resolveAlias(action string) (alias, bool) {
	a, ok := aliases[normalizeAction(action)]
	return a, ok
}
