package postgres

import (
	"context"

	"github.com/upb/andon-board/config"
	"github.com/upb/andon-board/repositories"
	"go.uber.org/zap"
)

// RepositoryFactory creates and manages all repositories
type RepositoryFactory struct {
	db       *DB
	eventsDB *DB // Optional: separate DB for the call event trail
	logger   *zap.Logger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.Logger) (*RepositoryFactory, error) {
	db, err := NewDB(cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	f := &RepositoryFactory{db: db, logger: logger}

	if cfg.EventsDatabase != nil {
		eventsDB, err := NewDB(*cfg.EventsDatabase, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		f.eventsDB = eventsDB
	}

	return f, nil
}

// NewRepositoryFactoryFromDB builds a factory around an already open pool
func NewRepositoryFactoryFromDB(db *DB, logger *zap.Logger) *RepositoryFactory {
	return &RepositoryFactory{db: db, logger: logger}
}

// InitSchema creates the board schema and the events schema on whichever
// database holds call events.
func (f *RepositoryFactory) InitSchema(ctx context.Context) error {
	if err := f.db.InitSchema(ctx); err != nil {
		return err
	}
	return f.eventsStore().InitEventsSchema(ctx)
}

func (f *RepositoryFactory) eventsStore() *DB {
	if f.eventsDB != nil {
		return f.eventsDB
	}
	return f.db
}

// NewRepositories creates all repository instances
func (f *RepositoryFactory) NewRepositories() *repositories.Repositories {
	return &repositories.Repositories{
		Tenants:    NewTenantRepository(f.db, f.logger),
		Locations:  NewLocationRepository(f.db, f.logger),
		Machines:   NewMachineRepository(f.db, f.logger),
		Divisions:  NewDivisionRepository(f.db, f.logger),
		Users:      NewUserRepository(f.db, f.logger),
		Calls:      NewCallRepository(f.db, f.logger),
		Reports:    NewReportRepository(f.db, f.logger),
		CallEvents: NewCallEventRepository(f.eventsStore(), f.logger),
	}
}

// GetTransactionManager returns a transaction manager
func (f *RepositoryFactory) GetTransactionManager() repositories.TransactionManager {
	return NewTransactionManager(f.db, f.logger)
}

// GetDB returns the database connection
func (f *RepositoryFactory) GetDB() *DB {
	return f.db
}

// GetEventsDB returns the separate events database, or nil when call events
// share the main pool
func (f *RepositoryFactory) GetEventsDB() *DB {
	return f.eventsDB
}

// Close closes the database connection(s)
func (f *RepositoryFactory) Close() error {
	if f.eventsDB != nil {
		_ = f.eventsDB.Close()
	}
	return f.db.Close()
}
