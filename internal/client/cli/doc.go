// Package cli provides the interactive QuoteKeeper command-line client.
//
// It wires local storage, the sync engine and the application services into
// a REPL that keeps working offline. Typical flow: sign in with a session
// token, edit the price list, assemblies and quotes locally, and let the
// background scheduler (or the sync command) reconcile with the remote
// record store.
//
// Key features:
//   - Login / Logout with a session token (read without echo)
//   - Price list items, quotes, assembly expansion into quotes
//   - Template preview and import with fuzzy matching
//   - Manual and scheduled sync, followed by the repair pass
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
