// Package tasks runs the extract, transform and load stages of a pipeline run.
//
// # Stages
//
//  1. [Extractor.ExtractAll] : reads profile, per-window top tracks and top artists,
//     recently played and saved tracks into one [RawSnapshot]. The first failing call
//     aborts the extraction.
//  2. [Transformer.Transform] : merges artists across sources, ranks snapshot rows
//     and builds listening history. A missing required key aborts with
//     [*shared.MalformedDataError] and no output.
//  3. [Loader.Load] : implemented by repositories.Loader.
//
// [Pipeline.Run] chains the stages strictly in order and records the run.
// Retrying a failed run is left to the caller.
//
// # Artist Merge
//
// Artists are collected from top-track artists, then top artists, then recently
// played artists. For an id that was already seen, an incoming field fills a
// missing one, except popularity which always takes the latest non-null value.
//
// # Progress Reporting
//
// Stages call a [Reporter] synchronously with a [ProgressUpdate]. A nil reporter is ignored.
package tasks
