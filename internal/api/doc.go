// Package api hosts the HTTP server, middleware, and REST handlers. Routes:
//   - POST /search runs one aggregated job search.
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/searches, /api/searches/{id} and /api/searches/{id}/sources
//     expose search history through the SearchRepository interface.
package api
