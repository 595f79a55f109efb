// Package server hosts the Fiber HTTP service, the request middleware chain,
// and the instance registry built from config. It also assembles the resolution
// engine (store, classifier, resolver, fetcher) so that cmd wiring and tests share
// the same startup order. Route handlers live in internal/files and
// internal/server/routes; keep exports narrow and accept explicit dependencies.
package server
