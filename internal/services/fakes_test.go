package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rmgwatch/apiserver/internal/logging"
	"github.com/rmgwatch/apiserver/internal/store"
	"github.com/rmgwatch/apiserver/types"
)

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// captureSink records appended audit events; failErr makes every
// append fail.
type captureSink struct {
	mu      sync.Mutex
	events  []types.AuditEvent
	failErr error
}

func (c *captureSink) Append(_ context.Context, event types.AuditEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failErr != nil {
		return c.failErr
	}
	c.events = append(c.events, event)
	return nil
}

func (c *captureSink) actions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	actions := make([]string, 0, len(c.events))
	for _, event := range c.events {
		actions = append(actions, event.Action)
	}
	return actions
}

func (c *captureSink) last() (types.AuditEvent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.events) == 0 {
		return types.AuditEvent{}, false
	}
	return c.events[len(c.events)-1], true
}

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int]types.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: map[int]types.User{}, nextID: 1}
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	f.nextID++
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) UpdateProfile(_ context.Context, id int, username, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.Username = username
	user.Email = email
	f.users[id] = user
	return nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, id int, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	f.users[id] = user
	return nil
}

func (f *fakeUserRepo) UpdateLastLogin(_ context.Context, id int, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.LastLogin = &at
	f.users[id] = user
	return nil
}

func (f *fakeUserRepo) SetMFA(_ context.Context, id int, secret string, enabled, expectEnabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	if user.MFAEnabled != expectEnabled {
		return store.ErrConflict
	}
	user.MFASecret = secret
	user.MFAEnabled = enabled
	f.users[id] = user
	return nil
}

func (f *fakeUserRepo) SetVerified(_ context.Context, id int, verified bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return store.ErrNotFound
	}
	user.IsVerified = verified
	f.users[id] = user
	return nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserRepo) List(_ context.Context, offset, limit int) ([]types.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]types.User, 0, len(f.users))
	for _, user := range f.users {
		users = append(users, user)
	}
	return users, len(users), nil
}

func (f *fakeUserRepo) Count(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users), nil
}

func (f *fakeUserRepo) CountVerified(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, user := range f.users {
		if user.IsVerified {
			count++
		}
	}
	return count, nil
}

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]types.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[string]types.Session{}}
}

func (f *fakeSessionRepo) Create(_ context.Context, session types.Session) (types.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.ID] = session
	return session, nil
}

func (f *fakeSessionRepo) Get(_ context.Context, id string) (types.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return types.Session{}, store.ErrNotFound
	}
	return session, nil
}

func (f *fakeSessionRepo) Revoke(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	if session.RevokedAt == nil {
		session.RevokedAt = &at
		f.sessions[id] = session
	}
	return nil
}

type fakeEntityRepo struct {
	mu       sync.Mutex
	entities map[int]types.Entity
	nextID   int
}

func newFakeEntityRepo() *fakeEntityRepo {
	return &fakeEntityRepo{entities: map[int]types.Entity{}, nextID: 1}
}

func (f *fakeEntityRepo) List(_ context.Context, _ store.EntityFilter, offset, limit int) ([]types.Entity, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entities := make([]types.Entity, 0, len(f.entities))
	for _, entity := range f.entities {
		entities = append(entities, entity)
	}
	return entities, len(entities), nil
}

func (f *fakeEntityRepo) Get(_ context.Context, id int) (types.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entity, ok := f.entities[id]
	if !ok {
		return types.Entity{}, store.ErrNotFound
	}
	return entity, nil
}

func (f *fakeEntityRepo) FindByIdentity(_ context.Context, name, entityType, countryCode string) (types.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entity := range f.entities {
		if entity.Name == name && entity.EntityType == entityType && entity.CountryCode == countryCode {
			return entity, nil
		}
	}
	return types.Entity{}, store.ErrNotFound
}

func (f *fakeEntityRepo) Create(_ context.Context, entity types.Entity) (types.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entity.ID = f.nextID
	f.nextID++
	f.entities[entity.ID] = entity
	return entity, nil
}

func (f *fakeEntityRepo) Update(_ context.Context, entity types.Entity) (types.Entity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entities[entity.ID]; !ok {
		return types.Entity{}, store.ErrNotFound
	}
	f.entities[entity.ID] = entity
	return entity, nil
}

func (f *fakeEntityRepo) SetVerified(_ context.Context, id int, verified bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entity, ok := f.entities[id]
	if !ok {
		return store.ErrNotFound
	}
	entity.IsVerified = verified
	f.entities[id] = entity
	return nil
}

func (f *fakeEntityRepo) Count(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entities), nil
}

func (f *fakeEntityRepo) CountVerified(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, entity := range f.entities {
		if entity.IsVerified {
			count++
		}
	}
	return count, nil
}

func (f *fakeEntityRepo) CountByCountry(_ context.Context, countryCode string) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total, verified := 0, 0
	for _, entity := range f.entities {
		if entity.CountryCode != countryCode {
			continue
		}
		total++
		if entity.IsVerified {
			verified++
		}
	}
	return total, verified, nil
}

func (f *fakeEntityRepo) ListCountryCodes(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	codes := []string{}
	for _, entity := range f.entities {
		if !seen[entity.CountryCode] {
			seen[entity.CountryCode] = true
			codes = append(codes, entity.CountryCode)
		}
	}
	return codes, nil
}

type fakeReportRepo struct {
	mu      sync.Mutex
	reports map[int]types.FraudReport
	reviews []types.ReportReview
	nextID  int

	riskCounts map[string][3]int // country -> total, high, critical
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{
		reports:    map[int]types.FraudReport{},
		nextID:     1,
		riskCounts: map[string][3]int{},
	}
}

func (f *fakeReportRepo) Get(_ context.Context, id int) (types.FraudReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	report, ok := f.reports[id]
	if !ok {
		return types.FraudReport{}, store.ErrNotFound
	}
	return report, nil
}

func (f *fakeReportRepo) Create(_ context.Context, report types.FraudReport) (types.FraudReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	report.ID = f.nextID
	report.CreatedAt = time.Now()
	f.nextID++
	f.reports[report.ID] = report
	return report, nil
}

func (f *fakeReportRepo) UpdateStatus(_ context.Context, id int, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	report, ok := f.reports[id]
	if !ok {
		return store.ErrNotFound
	}
	report.Status = status
	f.reports[id] = report
	return nil
}

func (f *fakeReportRepo) ListByReporter(_ context.Context, reporterID, offset, limit int) ([]types.FraudReport, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reports := []types.FraudReport{}
	for _, report := range f.reports {
		if report.ReporterID != nil && *report.ReporterID == reporterID {
			reports = append(reports, report)
		}
	}
	return reports, len(reports), nil
}

func (f *fakeReportRepo) ListByStatus(_ context.Context, status string, offset, limit int) ([]types.FraudReport, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reports := []types.FraudReport{}
	for _, report := range f.reports {
		if status == "" || report.Status == status {
			reports = append(reports, report)
		}
	}
	return reports, len(reports), nil
}

func (f *fakeReportRepo) ListByEntity(_ context.Context, entityID, limit int) ([]types.FraudReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reports := []types.FraudReport{}
	for _, report := range f.reports {
		if report.EntityID != nil && *report.EntityID == entityID {
			reports = append(reports, report)
		}
	}
	return reports, nil
}

func (f *fakeReportRepo) Count(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reports), nil
}

func (f *fakeReportRepo) CountByStatus(_ context.Context, status string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, report := range f.reports {
		if report.Status == status {
			count++
		}
	}
	return count, nil
}

func (f *fakeReportRepo) CountByCountryRisk(_ context.Context, countryCode string) (int, int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := f.riskCounts[countryCode]
	return counts[0], counts[1], counts[2], nil
}

func (f *fakeReportRepo) FraudTypeDistribution(_ context.Context, countryCode string) ([]store.FraudTypeCount, error) {
	return nil, nil
}

func (f *fakeReportRepo) CreateReview(_ context.Context, review types.ReportReview) (types.ReportReview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	review.ID = len(f.reviews) + 1
	review.CreatedAt = time.Now()
	f.reviews = append(f.reviews, review)
	return review, nil
}

type fakeCountryRepo struct {
	mu       sync.Mutex
	profiles map[string]types.CountryProfile
}

func newFakeCountryRepo() *fakeCountryRepo {
	return &fakeCountryRepo{profiles: map[string]types.CountryProfile{}}
}

func (f *fakeCountryRepo) List(_ context.Context) ([]types.CountryProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	profiles := make([]types.CountryProfile, 0, len(f.profiles))
	for _, profile := range f.profiles {
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

func (f *fakeCountryRepo) GetByCode(_ context.Context, countryCode string) (types.CountryProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	profile, ok := f.profiles[countryCode]
	if !ok {
		return types.CountryProfile{}, store.ErrNotFound
	}
	return profile, nil
}

func (f *fakeCountryRepo) Upsert(_ context.Context, profile types.CountryProfile) (types.CountryProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[profile.CountryCode] = profile
	return profile, nil
}

// capturePublisher records published events in order.
type capturePublisher struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
	failErr  error
}

func (c *capturePublisher) Publish(_ context.Context, channel string, data []byte, _ map[string]string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failErr != nil {
		return "", c.failErr
	}
	c.channels = append(c.channels, channel)
	c.payloads = append(c.payloads, data)
	return "msg-1", nil
}

// captureEvidenceStore keeps uploaded objects in memory.
type captureEvidenceStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failErr error
}

func newCaptureEvidenceStore() *captureEvidenceStore {
	return &captureEvidenceStore{objects: map[string][]byte{}}
}

func (c *captureEvidenceStore) Put(_ context.Context, key string, data []byte, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failErr != nil {
		return c.failErr
	}
	c.objects[key] = data
	return nil
}
