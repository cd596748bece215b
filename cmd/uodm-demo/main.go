// uodm-demo exercises the mapper end to end: two collections, a reference
// between them, and per-attribute writes. It prefers MongoDB when
// UODM_MONGODB_URI is set and falls back to the in-memory store otherwise.
package main

import (
	"context"
	"log"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/davrot/uodm"
	"github.com/davrot/uodm/config"
	"github.com/davrot/uodm/pkg/logger"
	"github.com/davrot/uodm/pkg/metrics"
	"github.com/davrot/uodm/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger.Init(cfg.Log.Level)
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)

	ctx := context.Background()

	var odm *uodm.ODM
	if cfg.MongoDB.URI != "" {
		odm, err = uodm.Open(ctx, cfg)
		if err != nil {
			log.Printf("warning: cannot connect to MongoDB (%v), using memory store", err)
		}
	}
	if odm == nil {
		odm = uodm.New(store.NewMemoryStore())
	}
	defer odm.Close(ctx)

	cities := uodm.Schema{
		Collection: "cities",
		Attributes: map[string]uodm.Attr{
			"name":       {Type: uodm.TypeString},
			"population": {Type: uodm.TypeNumber, Mutable: true},
			"ancient":    {Type: uodm.TypeBool, Default: false, HasDefault: true},
		},
	}
	people := uodm.Schema{
		Collection: "people",
		Attributes: map[string]uodm.Attr{
			"name":    {Type: uodm.TypeString},
			"age":     {Type: uodm.TypeNumber, Mutable: true},
			"city":    {Type: uodm.TypeString, Mutable: true, Reference: "cities"},
			"is_cool": {Type: uodm.TypeBool, Default: true, HasDefault: true},
		},
	}
	for _, s := range []uodm.Schema{cities, people} {
		if err := odm.Register(ctx, s); err != nil {
			log.Fatal(err)
		}
	}

	rome, err := odm.New(ctx, "cities", uodm.Fields{"name": "Rome", "population": 2_750_000, "ancient": true})
	if err != nil {
		log.Fatal(err)
	}
	alice, err := odm.New(ctx, "people", uodm.Fields{"name": "Alice", "age": 29, "city": rome})
	if err != nil {
		log.Fatal(err)
	}

	if err := alice.Set(ctx, "age", 30); err != nil {
		log.Fatal(err)
	}
	home, err := alice.Reference(ctx, "city")
	if err != nil {
		log.Fatal(err)
	}
	cityName, _ := home.Get("name")
	age, _ := alice.Get("age")
	log.Printf("%s (age %v) lives in %s [person=%s city=%s]", "Alice", age, cityName, alice.Name(), home.Name())
}
