// Package keys turns an identity into its master encryption key. Derivation
// runs PBKDF2 with a large iteration count, so concurrency is capped to keep
// a burst of logins from saturating every core.
package keys

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"

	"github.com/akarpov91/vaultd/internal/cryptox"
	"github.com/akarpov91/vaultd/internal/server/models"
)

type Deriver struct {
	appSecret  string
	iterations int
	sem        *semaphore.Weighted
}

func NewDeriver(appSecret string, iterations int) *Deriver {
	return &Deriver{
		appSecret:  appSecret,
		iterations: iterations,
		sem:        semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
	}
}

// MasterKey derives the identity's AES key from its OIDC subject, the
// application secret, and the per-identity salt. The same identity always
// gets the same key. Blocks while the KDF slots are busy; honors ctx.
func (d *Deriver) MasterKey(ctx context.Context, identity *models.Identity) ([]byte, error) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer d.sem.Release(1)

	return cryptox.DeriveMasterKey(identity.Subject, d.appSecret, identity.Salt, d.iterations)
}
