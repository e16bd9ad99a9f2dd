// Package aftercare generates multi-year follow-up task calendars for
// settled property records.
//
// Given a task template and an anchor date (typically the settlement date),
// the engine resolves each template task to a concrete due date, classifies
// tasks whose due date already lies in the past (skip / auto-complete /
// include, chosen per batch run), and for very old anchors switches to a
// small forward-looking "evergreen" rotation instead of generating an
// unbounded historical backlog.
//
// The engine owns task *generation* only. Instances are handed to a sink in
// fixed-size chunks; their later lifecycle (completion, reassignment) belongs
// to ordinary task management and is out of scope here.
package aftercare
