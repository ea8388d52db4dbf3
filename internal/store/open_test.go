package store

import (
	"testing"
	"time"

	"github.com/dunamismax/imaginify/internal/config"
	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSelectsDriverWithoutConnecting(t *testing.T) {
	cases := []struct {
		cfg  config.DatabaseConfig
		want any
	}{
		{config.DatabaseConfig{Driver: config.StoreMemory}, &MemoryImageStore{}},
		{config.DatabaseConfig{Driver: config.StoreMongo, MongoURL: "mongodb://127.0.0.1:1", ConnTimeout: time.Second}, &MongoImageStore{}},
		{config.DatabaseConfig{Driver: config.StorePostgres, PostgresDSN: "postgres://127.0.0.1:1/x", ConnTimeout: time.Second}, &PostgresImageStore{}},
	}
	for _, tc := range cases {
		t.Run(tc.cfg.Driver, func(t *testing.T) {
			images, closeFn, err := Open(tc.cfg)
			require.NoError(t, err)
			assert.IsType(t, tc.want, images)
			assert.NoError(t, closeFn())
		})
	}

	_, _, err := Open(config.DatabaseConfig{Driver: "sqlite"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}
