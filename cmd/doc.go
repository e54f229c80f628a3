// Package cmd provides the command-line interface for folio.
//
// This package implements all CLI commands using the Cobra framework.
//
// # Available Commands
//
//   - serve: Start the locale-aware site server
//   - resolve: Show how a request target would be routed
//   - validate: Check configuration and message catalogs
//   - version: Show build information
//
// # Command Examples
//
//	// Start the server in production mode
//	folio serve --env production --port 3000
//
//	// A visitor whose browser prefers French then English
//	folio resolve /about --accept "fr-FR,en;q=0.8"
//
//	// A returning visitor with a stored preference, as JSON
//	folio resolve "/blog?page=2" --stored en -o json
//
//	// Fail CI when a locale is missing messages
//	folio validate --strict
package cmd
