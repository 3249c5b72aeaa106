package inmemdb

import (
	"sync"

	"github.com/trezcool/trackademic/core/class"
	"github.com/trezcool/trackademic/core/task"
	"github.com/trezcool/trackademic/core/user"
)

// DB is an in-memory database, used for tests & local development.
type DB struct {
	mu      sync.RWMutex
	pkCount int64
	users   map[int64]*user.User
	classes map[int64]*class.Class
	tasks   map[int64]*task.Task
}

func Open() *DB {
	return &DB{
		users:   make(map[int64]*user.User),
		classes: make(map[int64]*class.Class),
		tasks:   make(map[int64]*task.Task),
	}
}

// nextPK must be called with the write lock held.
func (db *DB) nextPK() int64 {
	db.pkCount++
	return db.pkCount
}
