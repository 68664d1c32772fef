package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type counter struct {
	ID    int64 `gorm:"primaryKey"`
	Value int
}

func setupDB(t *testing.T) *DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&counter{}))
	return Wrap(db, db)
}

func TestWithinTransaction(t *testing.T) {
	t.Run("nested calls join the outer transaction", func(t *testing.T) {
		db := setupDB(t)
		ctx := context.Background()

		boom := errors.New("boom")
		err := db.WithinTransaction(ctx, func(ctx context.Context) error {
			require.NoError(t, db.Write(ctx).Create(&counter{ID: 1, Value: 1}).Error)
			return db.WithinTransaction(ctx, func(ctx context.Context) error {
				require.NoError(t, db.Write(ctx).Create(&counter{ID: 2, Value: 2}).Error)
				return boom
			})
		})
		assert.ErrorIs(t, err, boom)

		var n int64
		require.NoError(t, db.Read(ctx).Model(&counter{}).Count(&n).Error)
		assert.Equal(t, int64(0), n)
	})

	t.Run("commit is visible outside", func(t *testing.T) {
		db := setupDB(t)
		ctx := context.Background()

		err := db.WithinTransaction(ctx, func(ctx context.Context) error {
			return db.Write(ctx).Create(&counter{ID: 1, Value: 5}).Error
		})
		require.NoError(t, err)

		var c counter
		require.NoError(t, db.Read(ctx).First(&c, 1).Error)
		assert.Equal(t, 5, c.Value)
	})

	t.Run("duplicate keys are translated", func(t *testing.T) {
		db := setupDB(t)
		ctx := context.Background()

		require.NoError(t, db.Write(ctx).Create(&counter{ID: 1}).Error)
		err := db.Write(ctx).Create(&counter{ID: 1}).Error
		assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	})
}

func TestPing(t *testing.T) {
	db := setupDB(t)
	assert.NoError(t, db.Ping(context.Background()))
}

func TestConfigDSN(t *testing.T) {
	c := Config{User: "vw", Host: "db", Port: "5432", Password: "secret", Database: "wallet"}
	assert.Equal(t, "host=db user=vw password=secret dbname=wallet port=5432 sslmode=disable", c.DSN())

	c.SSLMode = "require"
	c.LockTimeout = 3 * time.Second
	assert.Equal(t, "host=db user=vw password=secret dbname=wallet port=5432 sslmode=require lock_timeout=3000", c.DSN())
}
