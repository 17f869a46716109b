//go:build unit

package migrate_test

import (
	"context"
	"testing"

	"storefront/internal/infra/migrate"
	"storefront/internal/pkg/config"
	"storefront/internal/pkg/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := migrate.Apply(ctx, config.DBConfig{
		Host:     "127.0.0.1",
		Port:     "1",
		User:     "nobody",
		Password: "nothing",
		DBName:   "nowhere",
		SSLMode:  "disable",
	})
	require.Error(t, err)
	assert.True(t, errs.Is(err, context.Canceled), "got %v", err)
}
