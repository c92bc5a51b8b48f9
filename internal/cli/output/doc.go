// Package output provides output formatting for cfsm-cli.
//
// Commands build their own tables (snapshot listings, diff entries,
// restore reports) and hand them to a Formatter chosen by the -o flag:
//
//   - table.go: aligned plain-text tables via text/tabwriter
//   - json.go: indented JSON for scripting
//   - yaml.go: YAML for human-friendly structured output
//   - spinner.go: progress animation for long provider operations
package output
