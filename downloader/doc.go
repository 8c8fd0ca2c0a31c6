// Package downloader orchestrates background media jobs: resolving a link
// into a collection of entries and downloading a selected batch with a
// single aggregated progress value.
//
// The package defines:
//   - MediaResolutionPort: the media engine the jobs drive
//   - MetadataResolver and DownloadOrchestrator: one in-flight job each,
//     returning Job handles that act as futures
//   - Hub: the EventSink through which jobs publish log, progress and
//     terminal events to any number of subscribers
//   - Aggregate and FormatPlan: the pure progress and format policies
//   - ProgressTracker and ProgressReporter: throttled progress rendering
//   - Error handling with structured JobError types
package downloader
