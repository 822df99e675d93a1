package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"access-sync/core/config"
	"access-sync/core/reconcile"
	"access-sync/feature/access/device"
	"access-sync/feature/access/device/idface"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// Dumps the canonical entities read from the configured device, one
// collection per entity type given on the command line (all by default).
func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal(err)
	}

	types := reconcile.Order
	if len(os.Args) > 1 {
		if types, err = reconcile.ParseEntityTypes(os.Args[1:]); err != nil {
			log.Fatal(err)
		}
	}

	client := idface.NewClient(cfg.Device, zap.NewNop())
	defer client.Close(context.Background())
	adapter := device.NewAdapter(client)
	ctx := context.Background()

	info, err := client.SystemInfo(ctx)
	if err != nil {
		log.Fatalf("device %s: %v", cfg.Device.BaseURL(), err)
	}
	fmt.Printf("=== DEVICE %s ===\n", cfg.Device.BaseURL())
	for k, v := range info {
		fmt.Printf("%s: %v\n", k, v)
	}

	for _, t := range types {
		object, _ := device.ObjectName(t)
		fmt.Printf("\n=== %s (%s) ===\n", t, object)

		entities, err := adapter.Fetch(ctx, t)
		if err != nil {
			fmt.Printf("ERROR [%s]: %v\n", reconcile.Classify(err), err)
			continue
		}
		fmt.Printf("Total records: %d\n", len(entities))
		for _, e := range entities {
			attrs, _ := json.Marshal(e.Attributes)
			fmt.Printf("%d\t%s\t%s\n", e.ExternalID, e.Attributes.Label(), attrs)
		}
	}
}
