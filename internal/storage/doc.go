// Package storage is the persistence layer for the bot.
//
// It owns three SQLite tables:
//   - subscriptions: delivery destinations and their preferences
//   - system: per-cadence watermarks (key/value, Unix seconds as text)
//   - articles: the append-only, deduplicated article queue
package storage
