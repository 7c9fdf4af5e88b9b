// Package logx wraps zerolog behind a small, reload-friendly API.
//
// Components hold a Logger value; the Service behind it can swap
// levels and writers at runtime (console, file) without anyone
// re-fetching their logger. The zero Logger is a safe no-op, which
// keeps optional wiring cheap.
package logx
