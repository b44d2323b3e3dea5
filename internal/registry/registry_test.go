package registry

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lumenlabs/lumen-core/internal/device"
)

// MockRepository implements Repository for testing.
type MockRepository struct {
	mu      sync.Mutex
	saved   map[device.UnitID]Record
	deleted []device.UnitID
	listErr error
	saveErr error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{saved: make(map[device.UnitID]Record)}
}

func (m *MockRepository) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[rec.Identity.UnitID] = rec
	return nil
}

func (m *MockRepository) List(_ context.Context) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]Record, 0, len(m.saved))
	for _, rec := range m.saved {
		out = append(out, rec)
	}
	return out, nil
}

func (m *MockRepository) Delete(_ context.Context, unitID device.UnitID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, unitID)
	return nil
}

func testIdentity(id string) device.Identity {
	return device.Identity{
		UnitID:    device.UnitID(id),
		ProductID: "@lumen.lighting.rgb-e27",
		Class:     device.ClassBulb,
	}
}

func TestUpsertNewDevice(t *testing.T) {
	reg := New(nil)
	seen := time.Now()

	err := reg.Upsert(context.Background(), testIdentity("aabbccddeeff0011"), Reachability{
		LocalAddr: "192.168.1.50:3333",
		SeenAt:    seen,
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	rec, err := reg.Lookup("aabbccddeeff0011")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if rec.LocalAddr != "192.168.1.50:3333" {
		t.Errorf("LocalAddr = %q, want %q", rec.LocalAddr, "192.168.1.50:3333")
	}
	if !rec.LastSeen.Equal(seen) {
		t.Errorf("LastSeen = %v, want %v", rec.LastSeen, seen)
	}
	if rec.CloudKnown {
		t.Error("CloudKnown = true, want false")
	}
}

func TestUpsertEmptyUnitID(t *testing.T) {
	reg := New(nil)
	err := reg.Upsert(context.Background(), device.Identity{}, Reachability{})
	if !errors.Is(err, ErrEmptyUnitID) {
		t.Errorf("Upsert() error = %v, want ErrEmptyUnitID", err)
	}
}

func TestUpsertLaterObservationWins(t *testing.T) {
	reg := New(nil)
	identity := testIdentity("aabbccddeeff0011")
	base := time.Now()

	tests := []struct {
		name     string
		first    Reachability
		second   Reachability
		wantAddr string
	}{
		{
			name:     "newer replaces older",
			first:    Reachability{LocalAddr: "192.168.1.50:3333", SeenAt: base},
			second:   Reachability{LocalAddr: "192.168.1.99:3333", SeenAt: base.Add(time.Second)},
			wantAddr: "192.168.1.99:3333",
		},
		{
			name:     "older does not replace newer",
			first:    Reachability{LocalAddr: "192.168.1.50:3333", SeenAt: base.Add(time.Second)},
			second:   Reachability{LocalAddr: "192.168.1.99:3333", SeenAt: base},
			wantAddr: "192.168.1.50:3333",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg = New(nil)
			if err := reg.Upsert(context.Background(), identity, tt.first); err != nil {
				t.Fatalf("first Upsert() error = %v", err)
			}
			if err := reg.Upsert(context.Background(), identity, tt.second); err != nil {
				t.Fatalf("second Upsert() error = %v", err)
			}

			rec, err := reg.Lookup(identity.UnitID)
			if err != nil {
				t.Fatalf("Lookup() error = %v", err)
			}
			if rec.LocalAddr != tt.wantAddr {
				t.Errorf("LocalAddr = %q, want %q", rec.LocalAddr, tt.wantAddr)
			}
			if reg.Count() != 1 {
				t.Errorf("Count() = %d, want 1", reg.Count())
			}
		})
	}
}

func TestUpsertCloudKnownSticky(t *testing.T) {
	reg := New(nil)
	identity := testIdentity("aabbccddeeff0011")

	if err := reg.Upsert(context.Background(), identity, Reachability{CloudKnown: true, SeenAt: time.Now()}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	// A later local-only observation must not clear cloud knowledge.
	if err := reg.Upsert(context.Background(), identity, Reachability{LocalAddr: "192.168.1.50:3333", SeenAt: time.Now()}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	rec, err := reg.Lookup(identity.UnitID)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if !rec.CloudKnown {
		t.Error("CloudKnown = false, want true")
	}
	if rec.LocalAddr != "192.168.1.50:3333" {
		t.Errorf("LocalAddr = %q, want %q", rec.LocalAddr, "192.168.1.50:3333")
	}
}

func TestLookupNotFound(t *testing.T) {
	reg := New(nil)
	_, err := reg.Lookup("0000000000000000")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup() error = %v, want ErrNotFound", err)
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	reg := New(nil)
	unitID := device.UnitID("aabbccddeeff0011")
	if err := reg.SetKey(unitID, []byte("0123456789abcdef")); err != nil {
		t.Fatalf("SetKey() error = %v", err)
	}

	rec, err := reg.Lookup(unitID)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	rec.Key[0] = 0xFF
	rec.LocalAddr = "tampered"

	rec2, err := reg.Lookup(unitID)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if !bytes.Equal(rec2.Key, []byte("0123456789abcdef")) {
		t.Error("mutating a returned record changed registry state")
	}
	if rec2.LocalAddr == "tampered" {
		t.Error("mutating a returned record changed registry state")
	}
}

func TestSetKeyCreatesBareRecord(t *testing.T) {
	reg := New(nil)
	unitID := device.UnitID("aabbccddeeff0011")

	if err := reg.SetKey(unitID, []byte("0123456789abcdef")); err != nil {
		t.Fatalf("SetKey() error = %v", err)
	}

	rec, err := reg.Lookup(unitID)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if rec.Identity.Class != device.ClassUnknown {
		t.Errorf("Class = %q, want %q", rec.Identity.Class, device.ClassUnknown)
	}
	if !bytes.Equal(rec.Key, []byte("0123456789abcdef")) {
		t.Errorf("Key = %x, want %x", rec.Key, "0123456789abcdef")
	}

	if err := reg.SetKey("", []byte("0123456789abcdef")); !errors.Is(err, ErrEmptyUnitID) {
		t.Errorf("SetKey(empty) error = %v, want ErrEmptyUnitID", err)
	}
}

func TestPurgeStale(t *testing.T) {
	reg := New(nil)
	ctx := context.Background()
	old := time.Now().Add(-time.Hour)

	// Stale and cloud-known: demoted to cloud-only.
	if err := reg.Upsert(ctx, testIdentity("aaaaaaaaaaaaaaaa"), Reachability{LocalAddr: "192.168.1.50:3333", CloudKnown: true, SeenAt: old}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	// Stale and local-only: removed entirely.
	if err := reg.Upsert(ctx, testIdentity("bbbbbbbbbbbbbbbb"), Reachability{LocalAddr: "192.168.1.51:3333", SeenAt: old}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	// Fresh: untouched.
	if err := reg.Upsert(ctx, testIdentity("cccccccccccccccc"), Reachability{LocalAddr: "192.168.1.52:3333", SeenAt: time.Now()}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	touched := reg.PurgeStale(ctx, 10*time.Minute)
	if touched != 2 {
		t.Errorf("PurgeStale() = %d, want 2", touched)
	}

	rec, err := reg.Lookup("aaaaaaaaaaaaaaaa")
	if err != nil {
		t.Fatalf("Lookup(demoted) error = %v", err)
	}
	if rec.LocalAddr != "" || !rec.CloudKnown {
		t.Errorf("demoted record = %+v, want cloud-only", rec)
	}

	if _, err := reg.Lookup("bbbbbbbbbbbbbbbb"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Lookup(removed) error = %v, want ErrNotFound", err)
	}

	if rec, err := reg.Lookup("cccccccccccccccc"); err != nil || rec.LocalAddr == "" {
		t.Errorf("fresh record touched: rec = %+v, err = %v", rec, err)
	}
}

func TestConcurrentUpsertsSingleRecord(t *testing.T) {
	reg := New(nil)
	identity := testIdentity("aabbccddeeff0011")

	var wg sync.WaitGroup
	base := time.Now()
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = reg.Upsert(context.Background(), identity, Reachability{
				LocalAddr: "192.168.1.50:3333",
				SeenAt:    base.Add(time.Duration(n) * time.Millisecond),
			})
		}(i)
	}
	wg.Wait()

	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}

	rec, err := reg.Lookup(identity.UnitID)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	want := base.Add(49 * time.Millisecond)
	if !rec.LastSeen.Equal(want) {
		t.Errorf("LastSeen = %v, want %v (latest observation)", rec.LastSeen, want)
	}
}

func TestLoadCache(t *testing.T) {
	repo := NewMockRepository()
	repo.saved["aabbccddeeff0011"] = Record{
		Identity:   testIdentity("aabbccddeeff0011"),
		CloudKnown: true,
	}

	reg := New(repo)
	if err := reg.LoadCache(context.Background()); err != nil {
		t.Fatalf("LoadCache() error = %v", err)
	}
	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}

	repo.listErr = errors.New("disk gone")
	if err := New(repo).LoadCache(context.Background()); err == nil {
		t.Error("LoadCache() with failing repository: error = nil, want error")
	}
}

func TestUpsertPersists(t *testing.T) {
	repo := NewMockRepository()
	reg := New(repo)
	identity := testIdentity("aabbccddeeff0011")

	if err := reg.Upsert(context.Background(), identity, Reachability{LocalAddr: "192.168.1.50:3333", SeenAt: time.Now()}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	repo.mu.Lock()
	saved, ok := repo.saved[identity.UnitID]
	repo.mu.Unlock()
	if !ok {
		t.Fatal("upsert did not reach the repository")
	}
	if saved.LocalAddr != "192.168.1.50:3333" {
		t.Errorf("saved.LocalAddr = %q, want %q", saved.LocalAddr, "192.168.1.50:3333")
	}

	// Repository failures must not fail the upsert.
	repo.saveErr = errors.New("disk gone")
	if err := reg.Upsert(context.Background(), identity, Reachability{LocalAddr: "192.168.1.51:3333", SeenAt: time.Now()}); err != nil {
		t.Errorf("Upsert() with failing repository: error = %v, want nil", err)
	}
}

func TestGetStats(t *testing.T) {
	reg := New(nil)
	ctx := context.Background()
	now := time.Now()

	if err := reg.Upsert(ctx, testIdentity("aaaaaaaaaaaaaaaa"), Reachability{LocalAddr: "192.168.1.50:3333", SeenAt: now}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := reg.Upsert(ctx, device.Identity{UnitID: "bbbbbbbbbbbbbbbb", ProductID: "@lumen.cleaning.vc1", Class: device.ClassVacuum}, Reachability{CloudKnown: true, SeenAt: now}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	stats := reg.GetStats()
	if stats.Total != 2 {
		t.Errorf("Total = %d, want 2", stats.Total)
	}
	if stats.LocallyKnown != 1 {
		t.Errorf("LocallyKnown = %d, want 1", stats.LocallyKnown)
	}
	if stats.CloudKnown != 1 {
		t.Errorf("CloudKnown = %d, want 1", stats.CloudKnown)
	}
	if stats.ByClass[device.ClassBulb] != 1 || stats.ByClass[device.ClassVacuum] != 1 {
		t.Errorf("ByClass = %v, want one bulb and one vacuum", stats.ByClass)
	}
}
