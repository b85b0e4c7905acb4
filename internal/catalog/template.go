package catalog

// Template is a named text/template source compiled once at startup by
// internal/tmplengine and re-executed per request (spec §4.2).
type Template struct {
	Name string
	Text string

	// SchemaRef, when set, names a schema registered in internal/schema
	// that the template's input arguments must validate against before
	// rendering.
	SchemaRef string
}
