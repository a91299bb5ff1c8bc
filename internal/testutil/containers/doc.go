// Package containers manages the Docker containers backing the test fixtures.
//
// It wraps the testcontainers-go mongodb module and provides a MongoDB container whose
// internal port is configurable, plus helpers for ordered, idempotent cleanup:
//
//	mongo, err := containers.NewMongoContainer(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mongo.Terminate(context.Background())
//
//	fmt.Println(mongo.ConnectionURL()) // mongodb://localhost:32771/spacex
//
// Tests that start real containers use the "integration" build tag:
//
//	go test -tags=integration ./...
//
// Reaper:
//
// Set TESTCONTAINERS_RYUK_DISABLED=true only when the Docker host cannot run
// the reaper; containers are then removed solely by Terminate.
package containers
