// Package internal contains the devserve implementation packages.
//
// # Package Organization
//
//   - server: HTTP front end, request routing and path resolution
//   - transform: per-kind content adapters (script transpile, functional
//     compile, HTML reload injection, raw read)
//   - cache: content cache with single-flight computes and generation checks
//   - watcher: fsnotify watching, debouncing and change dispatch
//   - reload: reload hub with server-sent event and WebSocket transports
//   - metrics: Prometheus collectors on a private registry
//   - config: viper-backed configuration with validation
//   - logging: structured logging on log/slog
//   - errors: typed errors shared across packages
//   - validation: URL and path checks at process boundaries
//   - version: build information
//
// A request flows server -> cache -> transform; a file change flows
// watcher -> cache invalidation -> reload hub -> browsers.
package internal
