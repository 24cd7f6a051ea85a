// Package domain contains the core business concepts of certdispatch:
// recipients, document kinds, per-row outcomes and the error taxonomy.
// Keep this package free of transport (HTTP) and infrastructure concerns.
package domain
