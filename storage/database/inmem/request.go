package inmemdb

import (
	"context"

	"github.com/trezcool/campus/core/request"
)

type requestRepository struct {
	db *DB
}

var _ request.Repository = (*requestRepository)(nil) // interface compliance check

func NewRequestRepository(db *DB) request.Repository {
	return &requestRepository{db: db}
}

func (repo *requestRepository) CreateRequest(_ context.Context, req request.Request) (request.Request, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.requests[req.ID] = &req
	return req, nil
}

func (repo *requestRepository) GetRequest(_ context.Context, id string) (request.Request, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if req, ok := repo.db.requests[id]; ok {
		return *req, nil
	}
	return request.Request{}, request.ErrNotFound
}

func (repo *requestRepository) QueryRequests(_ context.Context, filter request.Filter) ([]request.Request, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	return values(repo.db.requests, filter.Match,
		func(a, b request.Request) bool { return a.CreatedAt.After(b.CreatedAt) }), nil
}

func (repo *requestRepository) UpdateRequest(_ context.Context, req request.Request) (request.Request, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.requests[req.ID]; !ok {
		return request.Request{}, request.ErrNotFound
	}
	repo.db.requests[req.ID] = &req
	return req, nil
}
