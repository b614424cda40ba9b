// Package internal contains the core implementation packages for dxp.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the dxp CLI tool.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - config: configuration loading with validation and env overrides
//   - registry: the site manifest of resources, routes, and mounts
//   - content: typed payloads, the session cache, and the fetcher with
//     its single-fallback source chain
//   - dom: the in-memory document with mutation notifications
//   - renderer: staged rendering of payloads into mounted sections
//   - navigator: route intents, debounced confirmation, generations
//   - engine: one session binding all of the above together
//   - hub: WebSocket fan-out of render and reload events
//   - watcher: file system monitoring with debouncing
//   - server: the development HTTP surface over one session
//   - export: static snapshot writer
//   - errors: source errors, availability errors, and collection
//   - logging: structured logging shared by every package
//   - version: build metadata
//
// # Inter-Package Communication
//
// Packages communicate through well-defined boundaries:
//
//   - The engine owns the session: it wires fetcher, cache, renderer,
//     and navigator around one document and one manifest
//   - The registry is the single source of what exists; everything else
//     looks structure up there instead of carrying its own copy
//   - The hub only ever receives messages; nothing reads from it
//   - The watcher triggers cache invalidation and re-rendering through
//     handlers the server registers
//
// # Concurrency
//
// One engine serves one document. Everything that crosses a goroutine
// boundary (cache, registry, document, hub) guards its state with a
// mutex, and notification channels drop rather than block when a
// subscriber lags.
package internal
