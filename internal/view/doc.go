// Package view turns a cached collection snapshot into one visible page.
//
// The pipeline is fixed: scope, then filter, then sort, then paginate.
// Collections are fetched in full and every step runs locally.
//
// Invariants:
//   - the current page is always within [1, max(1, ceil(total/size))],
//     including after the filtered set shrinks
//   - changing the filter or page size returns to page 1
//   - Reset clears the filter and returns to page 1
//   - a snapshot is accepted only from the most recently begun fetch
//
// Local deltas (Apply, Drop) are how a successful mutation is reflected
// without refetching; callers only apply them after the backend confirmed
// the write.
package view
