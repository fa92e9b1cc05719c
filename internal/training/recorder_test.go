package training

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/frjar/frjarai/internal/infra"
	"github.com/frjar/frjarai/internal/store"
	"github.com/frjar/frjarai/pkg/models"
)

var cement = models.ProductStats{Name: "Cement 50kg", Unit: "Bag", MinPrice: 10, MaxPrice: 25, Average: 18}

func TestRecordAppendsAndPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "training_data.json")
	fixed := time.Date(2026, 10, 19, 6, 0, 0, 0, time.UTC)

	r, err := NewRecorder(ctx, store.NewJSONTraining(path),
		WithClock(func() time.Time { return fixed }), WithLogger(infra.DiscardLogger()))
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Record(ctx, cement, 19.4, "Riyadh", models.SourceAI); err != nil {
		t.Fatal(err)
	}
	if err := r.Record(ctx, cement, 19.4, "Riyadh", models.SourceAI); err != nil {
		t.Fatal(err)
	}

	if r.Len() != 2 {
		t.Fatalf("duplicates must be kept, Len=%d", r.Len())
	}
	ex := r.Examples()[0]
	if ex.Median != 18 || ex.AIPrice != 19.4 || ex.City != "Riyadh" || !ex.RecordedAt.Equal(fixed) {
		t.Fatalf("unexpected example: %+v", ex)
	}

	reloaded, err := NewRecorder(ctx, store.NewJSONTraining(path))
	if err != nil || reloaded.Len() != 2 {
		t.Fatalf("reload: len=%d err=%v", reloaded.Len(), err)
	}
}

func TestExamplesReturnsCopy(t *testing.T) {
	ctx := context.Background()
	r, _ := NewRecorder(ctx, store.NewJSONTraining(filepath.Join(t.TempDir(), "t.json")))
	r.Record(ctx, cement, 19, "", models.SourceLocalModel)

	ex := r.Examples()
	ex[0].AIPrice = -1
	if r.Examples()[0].AIPrice != 19 {
		t.Fatal("Examples must not expose internal storage")
	}
}

func TestCorruptSetResets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.json")
	os.WriteFile(path, []byte(`{"not": "a list"}`), 0o644)

	r, err := NewRecorder(context.Background(), store.NewJSONTraining(path), WithLogger(infra.DiscardLogger()))
	if err != nil {
		t.Fatalf("corrupt set must not be fatal: %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty set, got %d", r.Len())
	}
}

type failingStore struct{}

func (failingStore) Load(context.Context) ([]models.TrainingExample, error) { return nil, nil }
func (failingStore) Save(context.Context, []models.TrainingExample) error {
	return errors.New("disk full")
}

func TestPersistFailureReported(t *testing.T) {
	r, _ := NewRecorder(context.Background(), failingStore{}, WithLogger(infra.DiscardLogger()))
	if err := r.Record(context.Background(), cement, 19, "", models.SourceAI); err == nil {
		t.Fatal("expected persist error")
	}
	if r.Len() != 1 {
		t.Fatal("the in-memory set still grows on a persist failure")
	}
}

func TestConcurrentRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "t.json")
	r, _ := NewRecorder(ctx, store.NewJSONTraining(path))

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Record(ctx, cement, 20, "Jeddah", models.SourceAI)
		}()
	}
	wg.Wait()

	reloaded, _ := NewRecorder(ctx, store.NewJSONTraining(path))
	if reloaded.Len() != 25 {
		t.Fatalf("lost updates: persisted %d of 25", reloaded.Len())
	}
}
