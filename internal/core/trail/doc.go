// Package trail keeps a live breadcrumb trail and answers "which segments
// are visible in this rectangle" while new fixes keep arriving.
//
// A single producer calls Trail.AddSample; any number of readers call
// Trail.Snapshot (or the VisibleSegments helpers) without taking a lock.
// Every published Snapshot is immutable: the point array, the tail bucket
// and the R-tree nodes it references are never written again, so a reader
// always sees a consistent prefix of the trail.
//
// Pipeline per sample:
//
//	validate -> Policy.ShouldRetain -> Store.Append -> Index.Insert -> publish Snapshot -> OnChange
package trail
