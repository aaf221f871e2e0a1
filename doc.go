// Package searchpager turns search engine hits into typed entity graphs and
// pages them by offset or by cursor.
//
// Overview
//
// searchpager supports two pagination modes:
//   - ModeOffset: classic size/from paging rendered as numbered pages.
//   - ModeCursor: keyset paging with search_after. One extra document is
//     fetched to detect a further page, and the sort is flipped to walk
//     backward. Tokens are opaque and URL safe.
//
// Key concepts
//   - Index: assembles requests, runs them through a Searcher and hydrates
//     the result.
//   - SortSpec: multi-field ordering; the last field must be unique for
//     cursor pagination.
//   - Hydrator and RelationGraph: rebuild nested relations, including pivot
//     records, from flat attribute maps.
//   - ResultCollection: hydrated entities plus engine metadata, rendered as
//     OffsetPage or CursorPage.
//
// Engine adapters live under engine/: Elasticsearch, OpenSearch and a GORM
// backed SQL table.
package searchpager
