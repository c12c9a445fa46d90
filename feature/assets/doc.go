// Package assets mirrors team and league crest images into object storage.
//
// The dashboard serves crests from the asset bucket rather than hotlinking
// the source sites. The service reads the teams and region_league tables
// from the local store, downloads each crest URL, and uploads it under
// `teams/<team_id>.png` or `leagues/<league_id>.png`.
//
// Runs are idempotent: the bucket is listed once up front and objects that
// already exist are skipped. The sync is driven by the assets CLI command,
// not by the reconciliation cycle; crest churn is far too slow to justify
// a cadence of its own.
package assets
