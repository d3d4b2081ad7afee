//go:build integration

package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *Client

// startSurreal runs a throwaway SurrealDB and returns its RPC URL.
func startSurreal(ctx context.Context) (string, func(), error) {
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0-beta.1",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--user", "root", "--pass", "root", "memory"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	if err != nil {
		return "", nil, fmt.Errorf("start container: %w", err)
	}
	stop := func() { _ = container.Terminate(context.WithoutCancel(ctx)) }

	host, err := container.Host(ctx)
	if err != nil {
		stop()
		return "", nil, fmt.Errorf("container host: %w", err)
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "8000")
	if err != nil {
		stop()
		return "", nil, fmt.Errorf("container port: %w", err)
	}
	return fmt.Sprintf("ws://%s:%s/rpc", host, port.Port()), stop, nil
}

// TestMain shares one store across tests.
func TestMain(m *testing.M) {
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	ctx := context.Background()

	url, stop, err := startSurreal(ctx)
	if err != nil {
		log.Fatal(err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:        url,
		Namespace:  "corbo_test",
		Database:   "history",
		Username:   "root",
		Password:   "root",
		AuthLevel:  "root",
		MaxRetries: 2,
	}, nil)
	if err != nil {
		stop()
		log.Fatalf("connect: %v", err)
	}
	if err := testDB.InitSchema(ctx); err != nil {
		stop()
		log.Fatalf("init schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	stop()
	os.Exit(code)
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	require.NoError(t, testDB.InitSchema(context.Background()))
}

func TestTranscriptRoundTrip(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(func() { _, _ = testDB.QueryDeleteTranscript(ctx, 101) })

	_, err := testDB.QueryGetTranscript(ctx, 101)
	assert.ErrorIs(t, err, ErrNotFound)

	stored, err := testDB.QueryUpsertTranscript(ctx, 101, `[{"type":"userTranscript","text":"hi"}]`, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(101), stored.SessionID)

	got, err := testDB.QueryGetTranscript(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, `[{"type":"userTranscript","text":"hi"}]`, got.Elements)
	assert.Equal(t, 1, got.ElementCount)

	// Upsert replaces the whole transcript.
	_, err = testDB.QueryUpsertTranscript(ctx, 101, `[]`, 0)
	require.NoError(t, err)
	got, err = testDB.QueryGetTranscript(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, `[]`, got.Elements)
}

func TestDeleteTranscript(t *testing.T) {
	ctx := context.Background()

	_, err := testDB.QueryUpsertTranscript(ctx, 202, `[]`, 0)
	require.NoError(t, err)

	n, err := testDB.QueryDeleteTranscript(ctx, 202)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = testDB.QueryDeleteTranscript(ctx, 202)
	require.NoError(t, err)
	assert.Zero(t, n, "deleting a missing transcript is a no-op")
}

func TestConcurrentUpsertsLeaveOneTranscript(t *testing.T) {
	ctx := context.Background()
	t.Cleanup(func() { _, _ = testDB.QueryDeleteTranscript(ctx, 303) })

	var wg sync.WaitGroup
	for i := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := testDB.QueryUpsertTranscript(ctx, 303, fmt.Sprintf(`[{"n":%d}]`, i), 1)
			if err != nil {
				assert.ErrorIs(t, err, ErrTransactionConflict)
			}
		}()
	}
	wg.Wait()

	got, err := testDB.QueryGetTranscript(ctx, 303)
	require.NoError(t, err)
	assert.Equal(t, int64(303), got.SessionID)
}

func TestWipeData(t *testing.T) {
	ctx := context.Background()

	_, err := testDB.QueryUpsertTranscript(ctx, 404, `[]`, 0)
	require.NoError(t, err)
	require.NoError(t, testDB.WipeData(ctx))

	_, err = testDB.QueryGetTranscript(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}
