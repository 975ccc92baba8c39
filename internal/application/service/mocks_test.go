package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/garyjia/expense-approvals/internal/application/port"
	"github.com/garyjia/expense-approvals/internal/domain/entity"
)

// memStore is an in-memory backing for the repository mocks
type memStore struct {
	mu          sync.Mutex
	companies   map[string]*entity.Company
	profiles    map[string]*entity.Profile
	expenses    map[string]*entity.Expense
	approvals   map[string]*entity.Approval
	approvalSeq []string
	rules       []*entity.ApprovalRule
	logs        []*entity.DecisionLog
	credentials map[string]string
	revoked     map[string]time.Time
}

func newMemStore() *memStore {
	return &memStore{
		companies:   make(map[string]*entity.Company),
		profiles:    make(map[string]*entity.Profile),
		expenses:    make(map[string]*entity.Expense),
		approvals:   make(map[string]*entity.Approval),
		credentials: make(map[string]string),
		revoked:     make(map[string]time.Time),
	}
}

type mockCompanyRepo struct{ s *memStore }

func (m mockCompanyRepo) Create(ctx context.Context, c *entity.Company) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *c
	m.s.companies[c.ID] = &cp
	return nil
}

func (m mockCompanyRepo) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if c, ok := m.s.companies[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m mockCompanyRepo) Update(ctx context.Context, c *entity.Company) error {
	return m.Create(ctx, c)
}

type mockProfileRepo struct{ s *memStore }

func (m mockProfileRepo) Create(ctx context.Context, p *entity.Profile) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *p
	cp.Roles = append([]entity.Role(nil), p.Roles...)
	m.s.profiles[p.ID] = &cp
	return nil
}

func (m mockProfileRepo) GetByID(ctx context.Context, id string) (*entity.Profile, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if p, ok := m.s.profiles[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (m mockProfileRepo) GetByEmail(ctx context.Context, email string) (*entity.Profile, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, p := range m.s.profiles {
		if p.Email == email {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (m mockProfileRepo) ListByCompany(ctx context.Context, companyID string) ([]*entity.Profile, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*entity.Profile
	for _, p := range m.s.profiles {
		if p.CompanyID == companyID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (m mockProfileRepo) Update(ctx context.Context, p *entity.Profile) error {
	return m.Create(ctx, p)
}

func (m mockProfileRepo) SetRoles(ctx context.Context, userID string, roles []entity.Role) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if p, ok := m.s.profiles[userID]; ok {
		p.Roles = append([]entity.Role(nil), roles...)
	}
	return nil
}

type mockExpenseRepo struct {
	s         *memStore
	createErr error
}

func (m *mockExpenseRepo) Create(ctx context.Context, e *entity.Expense) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	cp := *e
	m.s.expenses[e.ID] = &cp
	return nil
}

func (m *mockExpenseRepo) GetByID(ctx context.Context, id string) (*entity.Expense, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if e, ok := m.s.expenses[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (m *mockExpenseRepo) List(ctx context.Context, f port.ExpenseFilter) ([]*entity.Expense, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*entity.Expense
	for _, e := range m.s.expenses {
		if e.CompanyID != f.CompanyID {
			continue
		}
		if f.EmployeeID != "" && e.EmployeeID != f.EmployeeID {
			continue
		}
		if f.ManagerID != "" && !m.s.hasApprover(e.ID, f.ManagerID) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memStore) hasApprover(expenseID, approverID string) bool {
	for _, a := range s.approvals {
		if a.ExpenseID == expenseID && a.ApproverID == approverID {
			return true
		}
	}
	return false
}

func (m *mockExpenseRepo) UpdateStatus(ctx context.Context, id string, status entity.ExpenseStatus, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.expenses[id]
	if !ok {
		return entity.ErrNotFound
	}
	e.Status = status
	e.UpdatedAt = at
	return nil
}

func (m *mockExpenseRepo) MarkOverridden(ctx context.Context, id string, status entity.ExpenseStatus, adminID string, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.expenses[id]
	if !ok {
		return entity.ErrNotFound
	}
	e.Status = status
	e.OverriddenBy = &adminID
	e.UpdatedAt = at
	return nil
}

func (m *mockExpenseRepo) ReceiptReferenced(ctx context.Context, path string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, e := range m.s.expenses {
		if e.ReceiptPath == path {
			return true, nil
		}
	}
	return false, nil
}

type mockApprovalRepo struct{ s *memStore }

func (m mockApprovalRepo) CreateBatch(ctx context.Context, approvals []*entity.Approval) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, a := range approvals {
		cp := *a
		m.s.approvals[a.ID] = &cp
		m.s.approvalSeq = append(m.s.approvalSeq, a.ID)
	}
	return nil
}

func (m mockApprovalRepo) GetByID(ctx context.Context, id string) (*entity.Approval, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if a, ok := m.s.approvals[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, nil
}

func (m mockApprovalRepo) ListByExpense(ctx context.Context, expenseID string) ([]*entity.Approval, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*entity.Approval
	for _, id := range m.s.approvalSeq {
		if a := m.s.approvals[id]; a.ExpenseID == expenseID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SequenceOrder < out[j].SequenceOrder })
	return out, nil
}

func (m mockApprovalRepo) ListPendingByApprover(ctx context.Context, approverID string) ([]*entity.Approval, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*entity.Approval
	for _, id := range m.s.approvalSeq {
		if a := m.s.approvals[id]; a.ApproverID == approverID && a.Status == entity.ApprovalStatusPending {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m mockApprovalRepo) CompareAndSwap(ctx context.Context, a *entity.Approval, expected time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.approvals[a.ID]
	if !ok || !stored.UpdatedAt.Equal(expected) {
		return entity.ErrConflict
	}
	cp := *a
	m.s.approvals[a.ID] = &cp
	return nil
}

type mockRuleRepo struct{ s *memStore }

func (m mockRuleRepo) Create(ctx context.Context, r *entity.ApprovalRule) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.rules = append(m.s.rules, r)
	return nil
}

func (m mockRuleRepo) ListByCompany(ctx context.Context, companyID string) ([]*entity.ApprovalRule, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*entity.ApprovalRule
	for _, r := range m.s.rules {
		if r.CompanyID == companyID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SequenceOrder < out[j].SequenceOrder })
	return out, nil
}

func (m mockRuleRepo) Delete(ctx context.Context, companyID, id string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for i, r := range m.s.rules {
		if r.ID == id && r.CompanyID == companyID {
			m.s.rules = append(m.s.rules[:i], m.s.rules[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type mockLogRepo struct{ s *memStore }

func (m mockLogRepo) Create(ctx context.Context, l *entity.DecisionLog) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	l.ID = int64(len(m.s.logs) + 1)
	m.s.logs = append(m.s.logs, l)
	return nil
}

func (m mockLogRepo) ListByExpense(ctx context.Context, expenseID string) ([]*entity.DecisionLog, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*entity.DecisionLog
	for _, l := range m.s.logs {
		if l.ExpenseID == expenseID {
			out = append(out, l)
		}
	}
	return out, nil
}

type mockCredentialRepo struct{ s *memStore }

func (m mockCredentialRepo) Create(ctx context.Context, userID, hash string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.credentials[userID] = hash
	return nil
}

func (m mockCredentialRepo) GetHash(ctx context.Context, userID string) (string, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.credentials[userID], nil
}

type mockSessionRepo struct{ s *memStore }

func (m mockSessionRepo) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.revoked[tokenID] = expiresAt
	return nil
}

func (m mockSessionRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	_, ok := m.s.revoked[tokenID]
	return ok, nil
}

func (m mockSessionRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

// mockTxManager restores the store when fn fails
type mockTxManager struct {
	s *memStore
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	saved := m.s.snapshot()
	if err := fn(ctx); err != nil {
		m.s.restore(saved)
		return err
	}
	return nil
}

func (s *memStore) snapshot() *memStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := newMemStore()
	for k, v := range s.companies {
		c := *v
		cp.companies[k] = &c
	}
	for k, v := range s.profiles {
		p := *v
		cp.profiles[k] = &p
	}
	for k, v := range s.expenses {
		e := *v
		cp.expenses[k] = &e
	}
	for k, v := range s.approvals {
		a := *v
		cp.approvals[k] = &a
	}
	for k, v := range s.credentials {
		cp.credentials[k] = v
	}
	cp.approvalSeq = append(cp.approvalSeq, s.approvalSeq...)
	cp.rules = append(cp.rules, s.rules...)
	cp.logs = append(cp.logs, s.logs...)
	return cp
}

func (s *memStore) restore(from *memStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.companies = from.companies
	s.profiles = from.profiles
	s.expenses = from.expenses
	s.approvals = from.approvals
	s.credentials = from.credentials
	s.approvalSeq = from.approvalSeq
	s.rules = from.rules
	s.logs = from.logs
}

type mockStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
	deleted   []string
}

func newMockStorage() *mockStorage {
	return &mockStorage{objects: make(map[string][]byte)}
}

func (m *mockStorage) Upload(ctx context.Context, bucket, path string, content []byte, contentType string) (string, error) {
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = content
	return path, nil
}

func (m *mockStorage) PublicURL(bucket, path string) string {
	return "https://files.example.com/" + bucket + "/" + path
}

func (m *mockStorage) Delete(ctx context.Context, bucket, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	m.deleted = append(m.deleted, path)
	return nil
}

func (m *mockStorage) List(ctx context.Context, bucket, prefix string) ([]port.ObjectInfo, error) {
	return nil, nil
}

type mockExporter struct {
	exported int
}

func (m *mockExporter) Export(company *entity.Company, expenses []*entity.Expense) ([]byte, error) {
	m.exported = len(expenses)
	return []byte(fmt.Sprintf("%s:%d", company.Name, len(expenses))), nil
}

func (m *mockExporter) ContentType() string   { return "text/plain" }
func (m *mockExporter) FileExtension() string { return "txt" }

type mockHasher struct{}

func (mockHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }

func (mockHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return errors.New("mismatch")
	}
	return nil
}

// mockTokens encodes claims into the token string
type mockTokens struct {
	mu  sync.Mutex
	seq int
}

func (m *mockTokens) Issue(userID, companyID string, roles []entity.Role) (string, *port.TokenClaims, error) {
	m.mu.Lock()
	m.seq++
	jti := fmt.Sprintf("jti-%d", m.seq)
	m.mu.Unlock()

	claims := &port.TokenClaims{TokenID: jti, UserID: userID, CompanyID: companyID, Roles: roles, ExpiresAt: time.Now().Add(time.Hour)}
	return strings.Join([]string{jti, userID, companyID}, "|"), claims, nil
}

func (m *mockTokens) Parse(token string) (*port.TokenClaims, error) {
	parts := strings.Split(token, "|")
	if len(parts) != 3 {
		return nil, errors.New("malformed token")
	}
	return &port.TokenClaims{TokenID: parts[0], UserID: parts[1], CompanyID: parts[2], ExpiresAt: time.Now().Add(time.Hour)}, nil
}

type noopLogger struct{}

func (noopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (noopLogger) Error(msg string, keysAndValues ...interface{}) {}
