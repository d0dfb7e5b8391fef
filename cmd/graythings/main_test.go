package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-things/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-things/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-things/internal/notify"
	"github.com/nerrad567/gray-logic-things/internal/sensor"
	"github.com/nerrad567/gray-logic-things/internal/thing"
)

// freePort returns a TCP port that was free a moment ago.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("GRAYLOGIC_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_InvalidExposition verifies validation errors stop startup.
func TestRun_InvalidExposition(t *testing.T) {
	t.Setenv("GRAYLOGIC_CONFIG", writeConfig(t, `
exposition:
  mode: single
database:
  path: "`+filepath.Join(t.TempDir(), "test.db")+`"
`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The default config carries two things, which single mode rejects.
	if err := run(ctx); err == nil {
		t.Fatal("run() should fail for single mode with two things")
	}
}

// TestRun_ServesThings starts the full application with the simulated
// sensor and checks the transport before shutting it down.
func TestRun_ServesThings(t *testing.T) {
	port := freePort(t)
	t.Setenv("GRAYLOGIC_CONFIG", writeConfig(t, fmt.Sprintf(`
api:
  host: "127.0.0.1"
  port: %d
sensor:
  source: simulated
  interval: 50ms
  seed: 7
  read_on_start: true
actions:
  refresh: true
database:
  path: "%s"
logging:
  level: error
`, port, filepath.Join(t.TempDir(), "test.db"))))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	base := fmt.Sprintf("http://127.0.0.1:%d", port)
	var resp *http.Response
	deadline := time.Now().Add(5 * time.Second)
	for {
		var err error
		resp, err = http.Get(base + "/things/humidity-sensor/properties/level/history")
		if err == nil && resp.StatusCode == http.StatusOK {
			var body struct {
				Count int `json:"count"`
			}
			decodeErr := json.NewDecoder(resp.Body).Decode(&body)
			resp.Body.Close()
			if decodeErr == nil && body.Count > 0 {
				break
			}
		} else if err == nil {
			resp.Body.Close()
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("no recorded humidity history before deadline")
		}
		time.Sleep(50 * time.Millisecond)
	}

	resp, err := http.Post(base+"/things/temperature-sensor/actions/refresh", "application/json", nil)
	if err != nil {
		cancel()
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("refresh status = %d, want 201", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

func TestBuildRegistry(t *testing.T) {
	cfg, err := config.Default()
	if err != nil {
		t.Fatal(err)
	}

	var events []thing.Event
	reg, err := buildRegistry(cfg, thing.NotifierFunc(func(ev thing.Event) {
		events = append(events, ev)
	}))
	if err != nil {
		t.Fatalf("buildRegistry() error = %v", err)
	}
	if reg.Mode() != thing.ModeMultiple || reg.Len() != 2 {
		t.Fatalf("registry = %s with %d things", reg.Mode(), reg.Len())
	}

	h, err := reg.Thing("humidity-sensor")
	if err != nil {
		t.Fatal(err)
	}
	schema, err := h.PropertySchema("level")
	if err != nil {
		t.Fatal(err)
	}
	if !schema.ReadOnly || schema.Unit != "percent" {
		t.Errorf("schema = %+v", schema)
	}

	if _, err := h.Commit("level", 48.5); err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].ThingID != "humidity-sensor" || events[0].Value != 48.5 {
		t.Errorf("events = %+v, want one humidity event", events)
	}
}

func TestBuildRegistry_Single(t *testing.T) {
	cfg, _ := config.Default()
	cfg.Exposition.Mode = config.ExpositionSingle
	cfg.Things = cfg.Things[1:]

	reg, err := buildRegistry(cfg, notify.NewDispatcher(1, nil))
	if err != nil {
		t.Fatalf("buildRegistry() error = %v", err)
	}
	if reg.Mode() != thing.ModeSingle || reg.Name() != "Humidity Sensor" {
		t.Errorf("registry = %s %q", reg.Mode(), reg.Name())
	}
}

func TestBuildLoops(t *testing.T) {
	cfg, _ := config.Default()
	reg, err := buildRegistry(cfg, notify.NewDispatcher(8, nil))
	if err != nil {
		t.Fatal(err)
	}

	producer := sensor.NewSimulated(sensor.SimulatedConfig{Seed: 1})
	loops, err := buildLoops(cfg, reg, producer, nil)
	if err != nil {
		t.Fatalf("buildLoops() error = %v", err)
	}
	if len(loops) != 2 {
		t.Fatalf("len(loops) = %d, want 2", len(loops))
	}

	for _, l := range loops {
		if err := l.RunCycle(context.Background()); err != nil {
			t.Errorf("RunCycle() error = %v", err)
		}
	}
	h, _ := reg.Thing("temperature-sensor")
	if v, _ := h.PropertyValue("level"); v == 0 {
		t.Error("temperature level not updated")
	}
}

func TestMigrateDown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	t.Setenv("GRAYLOGIC_CONFIG", writeConfig(t, `
database:
  path: "`+dbPath+`"
logging:
  level: error
`))
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{Path: dbPath})
	if err != nil {
		t.Fatal(err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	db.Close()

	if err := migrateDown(ctx); err != nil {
		t.Fatalf("migrateDown() error = %v", err)
	}

	db, err = database.Open(ctx, database.Config{Path: dbPath})
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 || len(pending) != 1 {
		t.Errorf("applied = %d, pending = %d, want 0 and 1", len(applied), len(pending))
	}

	// Nothing left to roll back.
	if err := migrateDown(ctx); err != nil {
		t.Errorf("second migrateDown() error = %v", err)
	}
}
