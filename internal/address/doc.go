// Package address canonicalizes free-text property addresses and scores
// candidate matches between externally sourced and internally tracked records.
//
// Scoring is an additive point budget (not probabilistic): street number,
// street name, unit and suburb each contribute a fixed share, with
// Levenshtein similarity filling in partial street-name credit. A 0..100
// score maps onto a four-tier confidence level.
//
// Everything here is pure computation; the matcher never returns an error.
// "No usable match" is represented by omission from the result list.
package address
