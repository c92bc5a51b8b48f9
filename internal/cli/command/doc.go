// Package command defines the cfsm-cli commands.
//
// Commands run the snapshot engine in-process against the configured
// backup directory and provider credentials; there is no intermediary
// daemon API. Each command resolves a Runtime (engine plus configuration)
// lazily on first use, renders its result through internal/cli/output,
// and maps engine errors to non-zero exit codes.
package command
