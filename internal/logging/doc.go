// Package logging configures structured slog output for fileindex.
//
// Logs are JSON lines written to a size-rotated file under the data directory
// and, optionally, to stderr. Job outcome lines share a common shape:
//
//	{"level":"INFO","msg":"job complete","outcome":"INDEXED","kind":"created","path":"/srv/docs/a.txt"}
package logging
