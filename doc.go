// Package docgo is an embedded, single-file document database with lazy,
// streaming query execution.
//
// Documents are schemaless JSON-like maps stored in one append-only data
// file. Queries are answered either by an index seek (a pre-built B-tree
// satisfies the predicate directly) or by a full scan that materializes and
// tests every live document. In both cases results arrive as a lazy
// iter.Seq2 stream: nothing is fetched until the consumer pulls, one
// document is materialized per element, and stopping early stops all work.
//
// Basic usage:
//
//	db, err := docgo.Open("/var/lib/myapp")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	_ = db.Insert(ctx, "users", document.Document{
//		"_id": "u1", "name": "Ada", "age": 36,
//	})
//
//	for doc, err := range db.Find("users").
//		Where(query.Gte("age", 18)).
//		Limit(10).
//		Stream(ctx) {
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(doc["name"])
//	}
//
// Durability comes from a write-ahead log plus periodic snapshots; long
// streams signal checkpoint opportunities after every yielded element so the
// log cannot grow unbounded under read-heavy workloads.
package docgo
