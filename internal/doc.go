// Package internal holds the implementation packages behind the hotplate
// facade and CLI.
//
//   - registry: compiled template sets, extension tables and reload events
//   - extensions: builtin functions, filters and tests
//   - watcher: recursive fsnotify watching with a trailing-edge debouncer
//   - reload: watch sessions that drive registry reloads
//   - server: preview HTTP server with websocket live reload
//   - config: Viper-backed settings, validation and JSON schema
//   - vars: render contexts from files and key=value assignments
//   - errors: typed errors and compile problem aggregation
//   - logging: slog-backed structured logging
//   - version: build information
package internal
