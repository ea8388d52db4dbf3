package store

import (
	"database/sql"
	"fmt"

	"github.com/dunamismax/imaginify/internal/config"
	"github.com/dunamismax/imaginify/internal/domain"
	"github.com/dunamismax/imaginify/internal/lazy"
	"go.mongodb.org/mongo-driver/mongo"
)

// Open builds the image store selected by cfg.Driver. Database connections
// are made on first use; the returned close func releases them.
func Open(cfg config.DatabaseConfig) (ImageStore, func() error, error) {
	switch cfg.Driver {
	case config.StoreMongo:
		conn := lazy.New("mongodb", OpenMongo(cfg.MongoURL),
			lazy.WithClose(DisconnectMongo),
			lazy.WithTimeout[*mongo.Client](cfg.ConnTimeout),
		)
		return NewMongoImageStore(conn, cfg.MongoDB), conn.Close, nil
	case config.StorePostgres:
		conn := lazy.New("postgres", OpenPostgres(cfg.PostgresDSN),
			lazy.WithClose((*sql.DB).Close),
			lazy.WithTimeout[*sql.DB](cfg.ConnTimeout),
		)
		return NewPostgresImageStore(conn), conn.Close, nil
	case config.StoreMemory:
		return NewMemoryImageStore(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown image store %q", domain.ErrValidation, cfg.Driver)
	}
}
