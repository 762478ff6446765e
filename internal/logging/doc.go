// Package logging writes structured run logs for vecbench.
//
// Every run appends JSON lines to ~/.vecbench/logs/vecbench.log, rotated by
// size. With --debug the same records are mirrored to stderr. The logs
// subcommand reads the file back through Viewer.
package logging
