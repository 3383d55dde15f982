package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/tebben/riool/settings"
)

var (
	dbPoolMap       = make(map[string]*pgxpool.Pool) // Pools by name
	dbPoolMutex     sync.Mutex                       // Guards dbPoolMap and poolLastUsed
	poolLastUsed    = make(map[string]time.Time)     // Last time each pool was requested
	cleanupInterval = 1 * time.Minute                // Interval to check for idle pools
)

// init starts the background cleanup of idle pools, commands that run
// without the server close their pools with CloseDBPools.
func init() {
	go periodicCleanup()
}

// periodicCleanup runs forever and closes pools that were not requested for
// two cleanup intervals and have no connections in use. Pools with acquired
// connections are kept until a later run.
func periodicCleanup() {
	idleDuration := 2 * cleanupInterval

	for {
		time.Sleep(cleanupInterval)

		dbPoolMutex.Lock()
		for name, pool := range dbPoolMap {
			lastUsed, ok := poolLastUsed[name]
			if ok && time.Since(lastUsed) <= idleDuration {
				continue
			}

			stats := pool.Stat()
			if stats.TotalConns() != stats.IdleConns() {
				log.Debugf("Pool %s is active, skipping cleanup", name)
				continue
			}

			pool.Close()
			delete(dbPoolMap, name)
			delete(poolLastUsed, name)
			log.Debugf("Closed idle database pool: %s", name)
		}
		dbPoolMutex.Unlock()
	}
}

// CloseDBPools closes every open pool and forgets them, the next GetDBPool
// call opens a new one. It is called when the server shuts down and at the
// end of the CLI commands.
func CloseDBPools() {
	dbPoolMutex.Lock()
	defer dbPoolMutex.Unlock()
	for _, pool := range dbPoolMap {
		pool.Close()
	}
	dbPoolMap = make(map[string]*pgxpool.Pool)
	poolLastUsed = make(map[string]time.Time)
}

// GetDBPool returns the pool with the given name, it is created from the
// connection string in config on first use and pinged before it is handed
// out. The last used time of the pool is updated on every call, callers
// should request the pool for every unit of work since idle pools are
// closed in the background.
func GetDBPool(name string, config settings.DatabaseConfig) (*pgxpool.Pool, error) {
	dbPoolMutex.Lock()
	defer dbPoolMutex.Unlock()

	if pool, ok := dbPoolMap[name]; ok {
		poolLastUsed[name] = time.Now()
		return pool, nil
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}
	if config.MaxConnections > 0 {
		poolConfig.MaxConns = config.MaxConnections
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database '%s': %w", name, err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error connecting to database '%s': %w", name, err)
	}

	log.Debugf("Opened new database pool: %s", name)
	dbPoolMap[name] = pool
	poolLastUsed[name] = time.Now()
	return pool, nil
}
