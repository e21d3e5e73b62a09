package keys

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/akarpov91/vaultd/internal/cryptox"
	"github.com/akarpov91/vaultd/internal/server/models"
)

func testIdentity(subject string) *models.Identity {
	return &models.Identity{
		Subject: subject,
		Salt:    bytes.Repeat([]byte{0x2a}, cryptox.SaltSize),
	}
}

func TestMasterKey_Deterministic(t *testing.T) {
	d := NewDeriver("app-secret", cryptox.DefaultKDFIterations)
	identity := testIdentity("google|123")

	k1, err := d.MasterKey(context.Background(), identity)
	if err != nil {
		t.Fatalf("MasterKey error: %v", err)
	}
	k2, err := d.MasterKey(context.Background(), identity)
	if err != nil {
		t.Fatalf("MasterKey error: %v", err)
	}

	if len(k1) != cryptox.MasterKeySize {
		t.Fatalf("want %d byte key, got %d", cryptox.MasterKeySize, len(k1))
	}
	if !bytes.Equal(k1, k2) {
		t.Fatal("same identity produced different keys")
	}
}

func TestMasterKey_DiffersPerSubject(t *testing.T) {
	d := NewDeriver("app-secret", cryptox.DefaultKDFIterations)

	k1, err := d.MasterKey(context.Background(), testIdentity("google|123"))
	if err != nil {
		t.Fatalf("MasterKey error: %v", err)
	}
	k2, err := d.MasterKey(context.Background(), testIdentity("google|456"))
	if err != nil {
		t.Fatalf("MasterKey error: %v", err)
	}

	if bytes.Equal(k1, k2) {
		t.Fatal("different subjects produced the same key")
	}
}

func TestMasterKey_CancelledContext(t *testing.T) {
	d := NewDeriver("app-secret", cryptox.DefaultKDFIterations)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.MasterKey(ctx, testIdentity("google|123"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestMasterKey_ConcurrentCallsAgree(t *testing.T) {
	d := NewDeriver("app-secret", cryptox.DefaultKDFIterations)
	identity := testIdentity("google|123")

	want, err := d.MasterKey(context.Background(), identity)
	if err != nil {
		t.Fatalf("MasterKey error: %v", err)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key, err := d.MasterKey(context.Background(), identity)
			if err != nil {
				errCh <- err
				return
			}
			if !bytes.Equal(key, want) {
				errCh <- errors.New("key mismatch")
			}
		}()
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Fatalf("concurrent derivation: %v", err)
	}
}
