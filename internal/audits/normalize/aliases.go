package normalize

// Field names the canonical finding attributes.
type Field string

const (
	FieldSummary     Field = "summary"
	FieldIssues      Field = "issues"
	FieldID          Field = "id"
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldCategory    Field = "category"
	FieldSeverity    Field = "severity"
	FieldFix         Field = "fix"
	FieldIsDone      Field = "isDone"
)

// Aliases is the ordered list of source keys checked for each canonical field.
// The first key present with a non-null value wins.
var Aliases = map[Field][]string{
	FieldSummary:     {"summary", "resumen", "resumen_ejecutivo", "executive_summary"},
	FieldIssues:      {"issues", "findings", "tasks", "hallazgos", "tareas", "tareas_pendientes", "problemas"},
	FieldID:          {"id", "external_id", "externalId", "numero", "num"},
	FieldTitle:       {"title", "titulo", "título", "name", "nombre"},
	FieldDescription: {"desc", "description", "descripcion", "descripción", "detalle", "details"},
	FieldCategory:    {"category", "categoria", "categoría", "area"},
	FieldSeverity:    {"severity", "priority", "prioridad", "severidad", "nivel"},
	FieldFix:         {"fix", "fix_plan", "suggested_fix", "solution", "solucion", "solución", "accion", "acción"},
	FieldIsDone:      {"isDone", "is_done", "done", "completed", "completado", "resuelto"},
}

// categoryAliases maps lower-cased category spellings onto the canonical enum.
var categoryAliases = map[string]string{
	"ui/ux":        "UI/UX",
	"ui":           "UI/UX",
	"ux":           "UI/UX",
	"frontend":     "UI/UX",
	"interfaz":     "UI/UX",
	"backend":      "Backend",
	"logic":        "Backend",
	"lógica":       "Backend",
	"logica":       "Backend",
	"data":         "Data",
	"datos":        "Data",
	"database":     "Data",
	"security":     "Security",
	"seguridad":    "Security",
	"performance":  "Performance",
	"rendimiento":  "Performance",
	"desempeño":    "Performance",
	"optimización": "Performance",
}

// lookup returns the first alias of field present in obj with a non-null value.
func lookup(obj map[string]any, field Field) (any, bool) {
	for _, key := range Aliases[field] {
		v, ok := obj[key]
		if ok && v != nil {
			return v, true
		}
	}
	return nil, false
}
