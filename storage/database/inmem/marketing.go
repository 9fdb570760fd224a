package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/marketing"
)

type marketingRepository struct {
	db *DB
}

var _ marketing.Repository = (*marketingRepository)(nil) // interface compliance check

func NewMarketingRepository(db *DB) marketing.Repository {
	return &marketingRepository{db: db}
}

func (repo *marketingRepository) CreateLead(_ context.Context, lead marketing.Lead) (marketing.Lead, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.leads[lead.ID] = &lead
	return lead, nil
}

func (repo *marketingRepository) GetLead(_ context.Context, id string) (marketing.Lead, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if lead, ok := repo.db.leads[id]; ok {
		return *lead, nil
	}
	return marketing.Lead{}, marketing.ErrLeadNotFound
}

func (repo *marketingRepository) QueryLeads(_ context.Context, filter marketing.LeadFilter) ([]marketing.Lead, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	search := strings.ToLower(filter.Search)
	return values(repo.db.leads, func(lead marketing.Lead) bool {
		if search != "" && !strings.Contains(strings.ToLower(lead.Name), search) && !strings.Contains(lead.Email, search) {
			return false
		}
		return inOrEmpty(lead.Status, filter.Statuses) && inOrEmpty(lead.Source, filter.Sources)
	}, func(a, b marketing.Lead) bool {
		return a.Score > b.Score || (a.Score == b.Score && a.CreatedAt.Before(b.CreatedAt))
	}), nil
}

func (repo *marketingRepository) UpdateLead(_ context.Context, lead marketing.Lead) (marketing.Lead, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.leads[lead.ID]; !ok {
		return marketing.Lead{}, marketing.ErrLeadNotFound
	}
	repo.db.leads[lead.ID] = &lead
	return lead, nil
}

func (repo *marketingRepository) DeleteLead(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.leads[id]; !ok {
		return marketing.ErrLeadNotFound
	}
	delete(repo.db.leads, id)
	for actID, act := range repo.db.activities {
		if act.LeadID == id {
			delete(repo.db.activities, actID)
		}
	}
	return nil
}

func (repo *marketingRepository) CreateActivity(_ context.Context, act marketing.Activity) (marketing.Activity, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.leads[act.LeadID]; !ok {
		return marketing.Activity{}, marketing.ErrLeadNotFound
	}
	repo.db.activities[act.ID] = &act
	return act, nil
}

func (repo *marketingRepository) QueryActivities(_ context.Context, leadID string) ([]marketing.Activity, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	return values(repo.db.activities,
		func(act marketing.Activity) bool { return act.LeadID == leadID },
		func(a, b marketing.Activity) bool { return a.OccurredAt.Before(b.OccurredAt) }), nil
}

func (repo *marketingRepository) ConversionStats(_ context.Context) ([]marketing.ConversionStat, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	stats := marketing.ConversionStats(values(repo.db.leads, nil, nil))
	for i := range stats {
		stats[i].Rate = 0 // left to the service
	}
	return stats, nil
}

func (repo *marketingRepository) CreateCampaign(_ context.Context, camp marketing.Campaign) (marketing.Campaign, error) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.campaigns[camp.ID] = &camp
	return camp, nil
}

func (repo *marketingRepository) GetCampaign(_ context.Context, id string) (marketing.Campaign, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if camp, ok := repo.db.campaigns[id]; ok {
		return *camp, nil
	}
	return marketing.Campaign{}, marketing.ErrCampaignNotFound
}

func (repo *marketingRepository) QueryCampaigns(_ context.Context) ([]marketing.Campaign, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	return values(repo.db.campaigns, nil,
		func(a, b marketing.Campaign) bool { return a.CreatedAt.After(b.CreatedAt) }), nil
}

func (repo *marketingRepository) UpdateCampaign(_ context.Context, camp marketing.Campaign) (marketing.Campaign, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.campaigns[camp.ID]; !ok {
		return marketing.Campaign{}, marketing.ErrCampaignNotFound
	}
	repo.db.campaigns[camp.ID] = &camp
	return camp, nil
}

func (repo *marketingRepository) DeleteCampaign(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.campaigns[id]; !ok {
		return marketing.ErrCampaignNotFound
	}
	delete(repo.db.campaigns, id)
	return nil
}

type emailLogRepository struct {
	db *DB
}

var _ core.EmailLogRepository = (*emailLogRepository)(nil) // interface compliance check

func NewEmailLogRepository(db *DB) core.EmailLogRepository {
	return &emailLogRepository{db: db}
}

func (repo *emailLogRepository) CreateEmailLogs(_ context.Context, logs ...core.EmailLog) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.emailLogs = append(repo.db.emailLogs, logs...)
	return nil
}

func (repo *emailLogRepository) QueryEmailLogs(_ context.Context, filter core.EmailLogFilter) ([]core.EmailLog, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	logs := make([]core.EmailLog, 0)
	for i := len(repo.db.emailLogs) - 1; i >= 0; i-- { // newest first
		l := repo.db.emailLogs[i]
		if filter.Recipient != "" && l.Recipient != filter.Recipient {
			continue
		}
		if filter.Status != "" && l.Status != filter.Status {
			continue
		}
		if !filter.From.IsZero() && l.CreatedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && l.CreatedAt.After(filter.To) {
			continue
		}
		logs = append(logs, l)
	}
	return logs, nil
}
