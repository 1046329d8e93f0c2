package app

import (
	"context"

	"github.com/kanux/kanuxd/internal/remote"
	"github.com/kanux/kanuxd/internal/store"
	"go.uber.org/zap"
)

// DirectoryService resolves tenant records through the generic TTL cache, so
// company names stay available offline without a dedicated table.
type DirectoryService struct {
	db     *store.DB
	remote remote.Store
	net    Connectivity
	logger *zap.Logger
}

// NewDirectoryService creates a directory facade.
func NewDirectoryService(db *store.DB, rs remote.Store, net Connectivity, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{db: db, remote: rs, net: net, logger: logger}
}

// Company returns the tenant record for id. A cached copy is served for up to
// an hour; a miss while offline returns (nil, nil) rather than an error.
func (s *DirectoryService) Company(ctx context.Context, id string) (*remote.Company, error) {
	if id == "" {
		return nil, &ValidationError{Field: "company_id", Reason: "must not be empty"}
	}

	cacheKey := "company_" + id
	var cached remote.Company
	found, err := s.db.CacheGet(cacheKey, &cached)
	if err != nil {
		s.logger.Warn("company cache read failed", zap.Error(err))
	}
	if found {
		return &cached, nil
	}

	if !s.net.CurrentlyOnline() {
		return nil, nil
	}

	company, err := s.remote.FetchCompany(ctx, id)
	if err != nil {
		if remote.IsNetwork(err) {
			return nil, nil
		}
		return nil, err
	}
	if err := s.db.CacheSet(cacheKey, company, 0); err != nil {
		s.logger.Warn("company cache write failed", zap.Error(err))
	}
	return company, nil
}
