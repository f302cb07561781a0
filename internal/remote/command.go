package remote

import (
	"strings"

	"github.com/kballard/go-shellquote"
)

// The builder below is the only place configuration values are allowed to
// meet a remote shell string. Steps compose commands from Command/Chain/
// Redirect instead of interpolating paths and branch names by hand.

// Quote returns word as a single safely-quoted shell token.
func Quote(word string) string {
	return shellquote.Join(word)
}

// Command builds one shell command from an argument vector, quoting
// every word.
func Command(argv ...string) string {
	return shellquote.Join(argv...)
}

// Chain joins commands so that each one runs only if the previous
// one succeeded.
func Chain(commands ...string) string {
	return strings.Join(commands, " && ")
}

// Redirect sends the output of command into the file at path,
// truncating it.
func Redirect(command, path string) string {
	return command + " > " + Quote(path)
}

// Tolerate makes a command's failure non-fatal to the remote shell,
// for probes whose interesting result is their output.
func Tolerate(command string) string {
	return command + " || true"
}
