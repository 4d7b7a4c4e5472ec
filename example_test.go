package opqueue_test

import (
	"context"
	"encoding/json"
	"fmt"

	opqueue "github.com/inventakit/go-opqueue"
	"github.com/inventakit/go-opqueue/connectivity"
)

// Example wires the engine with a manual connectivity signal and drains one
// queued update.
func Example() {
	monitor := connectivity.NewManualMonitor(true)

	orchestrator, err := opqueue.NewBuilder().
		WithConnectivity(monitor).
		WithApplier(opqueue.EntityKit, func(ctx context.Context, kind opqueue.Kind, entityID string, payload json.RawMessage) error {
			// Real producers call the remote store's write API here.
			return nil
		}).
		WithOperationDelay(-1).
		Build()
	if err != nil {
		panic(err)
	}
	defer orchestrator.Close()

	queue := orchestrator.Queue()
	queue.EnqueueNew(context.Background(), opqueue.KindUpdate, opqueue.EntityKit,
		"kit-42", json.RawMessage(`{"name":"field kit"}`), 0)

	result := orchestrator.SyncPendingOperations(context.Background())
	fmt.Printf("synced %d/%d\n", result.Succeeded, result.Total)
	// Output: synced 1/1
}
