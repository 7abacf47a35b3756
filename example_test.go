package docgo_test

import (
	"context"
	"fmt"
	"log"

	"github.com/hupe1980/docgo"
	"github.com/hupe1980/docgo/document"
	"github.com/hupe1980/docgo/query"
)

func Example() {
	ctx := context.Background()

	db := docgo.InMemory()
	defer db.Close()

	users := []document.Document{
		{"_id": "u1", "name": "Ada", "age": 36},
		{"_id": "u2", "name": "Bob", "age": 17},
		{"_id": "u3", "name": "Cleo", "age": 52},
	}
	for _, u := range users {
		if err := db.Insert(ctx, "users", u); err != nil {
			log.Fatal(err)
		}
	}

	for doc, err := range db.Find("users").
		Where(query.Gte("age", 18)).
		Stream(ctx) {
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(doc["name"])
	}
	// Output:
	// Ada
	// Cleo
}

func ExampleDB_FindByID() {
	ctx := context.Background()

	db := docgo.InMemory()
	defer db.Close()

	_ = db.Insert(ctx, "users", document.Document{"_id": "u1", "name": "Ada"})

	doc, err := db.FindByID(ctx, "users", "u1")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(doc["name"])
	// Output:
	// Ada
}

func ExampleDB_EnsureIndex() {
	ctx := context.Background()

	db := docgo.InMemory()
	defer db.Close()

	for i := 1; i <= 5; i++ {
		_ = db.Insert(ctx, "events", document.Document{
			"_id":      fmt.Sprintf("e%d", i),
			"severity": i,
		})
	}

	// With the index in place, range queries run as index seeks and touch
	// only the matching documents.
	if err := db.EnsureIndex(ctx, "events", "severity"); err != nil {
		log.Fatal(err)
	}

	n, err := db.Find("events").Where(query.Gte("severity", 4)).Count(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(n)
	// Output:
	// 2
}
