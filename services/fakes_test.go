package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blackbirdcodelabs/jnanagni-backend/models"
	"github.com/blackbirdcodelabs/jnanagni-backend/repositories"
)

// In-memory repository doubles. They reproduce the store's semantics the
// services rely on: unique constraints, the accept-member capacity check under
// lock, and the forward-only certificate round guard.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newVerifiedUser(users *fakeUserRepo, name, email, jnanagniID string) *models.User {
	return users.add(&models.User{
		Name:       name,
		Email:      email,
		JnanagniID: jnanagniID,
		Role:       models.RoleStudent,
		Payment:    models.PaymentVerified,
		IsVerified: true,
	})
}

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]*models.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]*models.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repositories.ErrUserEmailConflict
		}
		if u.JnanagniID == user.JnanagniID {
			return repositories.ErrUserJnanagniIDConflict
		}
	}
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now()
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	clone := *u
	return &clone, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (f *fakeUserRepo) GetByJnanagniID(_ context.Context, jnanagniID string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.JnanagniID == strings.ToUpper(jnanagniID) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (f *fakeUserRepo) UpdatePaymentStatus(_ context.Context, id int, status models.PaymentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.Payment = status
	return nil
}

func (f *fakeUserRepo) UpdateSpecialRoles(_ context.Context, id int, roles []models.SpecialRole) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.SpecialRoles = roles
	return nil
}

func (f *fakeUserRepo) SetVerified(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.IsVerified = true
	return nil
}

func (f *fakeUserRepo) add(u *models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	u.ID = f.nextID
	f.users[u.ID] = u
	clone := *u
	return &clone
}

type fakeEventRepo struct {
	mu          sync.Mutex
	nextID      int
	nextRoundID int
	events      map[int]*models.Event
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[int]*models.Event)}
}

func (f *fakeEventRepo) Create(_ context.Context, event *models.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.Slug == event.Slug {
			return repositories.ErrEventSlugConflict
		}
	}
	f.nextID++
	event.ID = f.nextID
	event.CreatedAt = time.Now()
	clone := *event
	f.events[event.ID] = &clone
	return nil
}

func (f *fakeEventRepo) GetByID(_ context.Context, id int) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, repositories.ErrEventNotFound
	}
	clone := *e
	clone.Rounds = append([]models.Round(nil), e.Rounds...)
	sort.Slice(clone.Rounds, func(i, j int) bool {
		return clone.Rounds[i].SequenceNumber < clone.Rounds[j].SequenceNumber
	})
	return &clone, nil
}

func (f *fakeEventRepo) List(_ context.Context) ([]*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	events := make([]*models.Event, 0, len(f.events))
	for _, e := range f.events {
		clone := *e
		events = append(events, &clone)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	return events, nil
}

func (f *fakeEventRepo) SetRegistrationOpen(_ context.Context, id int, open bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return repositories.ErrEventNotFound
	}
	e.IsRegistrationOpen = open
	return nil
}

func (f *fakeEventRepo) CreateRound(_ context.Context, round *models.Round) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[round.EventID]
	if !ok {
		return repositories.ErrEventNotFound
	}
	maxSeq := 0
	for _, r := range e.Rounds {
		if r.SequenceNumber > maxSeq {
			maxSeq = r.SequenceNumber
		}
	}
	f.nextRoundID++
	round.ID = f.nextRoundID
	round.SequenceNumber = maxSeq + 1
	round.CreatedAt = time.Now()
	e.Rounds = append(e.Rounds, *round)
	return nil
}

func (f *fakeEventRepo) GetRound(_ context.Context, eventID, roundID int) (*models.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[eventID]
	if !ok {
		return nil, repositories.ErrRoundNotFound
	}
	for i := range e.Rounds {
		if e.Rounds[i].ID == roundID {
			clone := e.Rounds[i]
			return &clone, nil
		}
	}
	return nil, repositories.ErrRoundNotFound
}

func (f *fakeEventRepo) ListRounds(_ context.Context, eventID int) ([]models.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[eventID]
	if !ok {
		return []models.Round{}, nil
	}
	rounds := append([]models.Round(nil), e.Rounds...)
	sort.Slice(rounds, func(i, j int) bool { return rounds[i].SequenceNumber < rounds[j].SequenceNumber })
	return rounds, nil
}

func (f *fakeEventRepo) ActivateRound(_ context.Context, eventID, roundID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[eventID]
	if !ok {
		return repositories.ErrEventNotFound
	}
	// Nothing may be flipped unless the target round exists.
	found := false
	for i := range e.Rounds {
		if e.Rounds[i].ID == roundID {
			found = true
			break
		}
	}
	if !found {
		return repositories.ErrRoundNotFound
	}
	for i := range e.Rounds {
		e.Rounds[i].IsActive = e.Rounds[i].ID == roundID
	}
	return nil
}

func (f *fakeEventRepo) SetRoundResultsPublished(_ context.Context, roundID int, published bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		for i := range e.Rounds {
			if e.Rounds[i].ID == roundID {
				e.Rounds[i].ResultsPublished = published
				return nil
			}
		}
	}
	return repositories.ErrRoundNotFound
}

func (f *fakeEventRepo) DeleteRound(_ context.Context, eventID, roundID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[eventID]
	if !ok {
		return repositories.ErrRoundNotFound
	}
	deletedSeq := -1
	for i := range e.Rounds {
		if e.Rounds[i].ID == roundID {
			deletedSeq = e.Rounds[i].SequenceNumber
			e.Rounds = append(e.Rounds[:i], e.Rounds[i+1:]...)
			break
		}
	}
	if deletedSeq == -1 {
		return repositories.ErrRoundNotFound
	}
	for i := range e.Rounds {
		if e.Rounds[i].SequenceNumber > deletedSeq {
			e.Rounds[i].SequenceNumber--
		}
	}
	return nil
}

func (f *fakeEventRepo) add(e *models.Event) *models.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	e.ID = f.nextID
	for i := range e.Rounds {
		f.nextRoundID++
		e.Rounds[i].ID = f.nextRoundID
		e.Rounds[i].EventID = e.ID
	}
	f.events[e.ID] = e
	clone := *e
	return &clone
}

type fakeRegistrationRepo struct {
	mu           sync.Mutex
	nextID       int
	nextMemberID int
	regs         map[int]*models.Registration
}

func newFakeRegistrationRepo() *fakeRegistrationRepo {
	return &fakeRegistrationRepo{regs: make(map[int]*models.Registration)}
}

func cloneRegistration(reg *models.Registration) *models.Registration {
	clone := *reg
	clone.TeamMembers = append([]models.TeamMember(nil), reg.TeamMembers...)
	return &clone
}

func (f *fakeRegistrationRepo) Create(_ context.Context, reg *models.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	reg.ID = f.nextID
	reg.CreatedAt = time.Now()
	f.regs[reg.ID] = cloneRegistration(reg)
	return nil
}

func (f *fakeRegistrationRepo) GetByID(_ context.Context, id int) (*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.regs[id]
	if !ok {
		return nil, repositories.ErrRegistrationNotFound
	}
	return cloneRegistration(reg), nil
}

func (f *fakeRegistrationRepo) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.regs[id]; !ok {
		return repositories.ErrRegistrationNotFound
	}
	delete(f.regs, id)
	return nil
}

func (f *fakeRegistrationRepo) UpdateStatus(_ context.Context, id int, status models.RegistrationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.regs[id]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	reg.Status = status
	return nil
}

func (f *fakeRegistrationRepo) UpdateSubmissionData(_ context.Context, id int, data models.SubmissionData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.regs[id]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	reg.SubmissionData = data
	return nil
}

func (f *fakeRegistrationRepo) FindActiveSlot(_ context.Context, eventID, userID int) (*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, reg := range f.regs {
		if reg.EventID != eventID || reg.Status != models.RegistrationActive {
			continue
		}
		if reg.RegisteredBy == userID {
			return cloneRegistration(reg), nil
		}
		for _, m := range reg.TeamMembers {
			if m.Status == models.MemberAccepted && m.UserID != nil && *m.UserID == userID {
				return cloneRegistration(reg), nil
			}
		}
	}
	return nil, repositories.ErrRegistrationNotFound
}

func (f *fakeRegistrationRepo) CountActiveByEvent(_ context.Context, eventID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, reg := range f.regs {
		if reg.EventID == eventID && reg.Status == models.RegistrationActive {
			count++
		}
	}
	return count, nil
}

func (f *fakeRegistrationRepo) CountActiveByIDs(_ context.Context, eventID int, ids []int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, id := range ids {
		if reg, ok := f.regs[id]; ok && reg.EventID == eventID && reg.Status == models.RegistrationActive {
			count++
		}
	}
	return count, nil
}

func (f *fakeRegistrationRepo) ListByEvent(_ context.Context, eventID, limit, offset int) ([]*models.Registration, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := make([]*models.Registration, 0)
	for _, reg := range f.regs {
		if reg.EventID == eventID {
			all = append(all, cloneRegistration(reg))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	if offset >= total {
		return []*models.Registration{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (f *fakeRegistrationRepo) ListActiveByUser(_ context.Context, userID int) ([]*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	regs := make([]*models.Registration, 0)
	for _, reg := range f.regs {
		if reg.Status != models.RegistrationActive {
			continue
		}
		if reg.RegisteredBy == userID {
			regs = append(regs, cloneRegistration(reg))
			continue
		}
		for _, m := range reg.TeamMembers {
			if m.Status == models.MemberAccepted && m.UserID != nil && *m.UserID == userID {
				regs = append(regs, cloneRegistration(reg))
				break
			}
		}
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].ID < regs[j].ID })
	return regs, nil
}

func (f *fakeRegistrationRepo) ListPendingInvites(_ context.Context, userID int, email string) ([]*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	regs := make([]*models.Registration, 0)
	for _, reg := range f.regs {
		for _, m := range reg.TeamMembers {
			if m.Status != models.MemberPending {
				continue
			}
			if (m.UserID != nil && *m.UserID == userID) ||
				(m.UserID == nil && strings.EqualFold(m.Email, email)) {
				regs = append(regs, cloneRegistration(reg))
				break
			}
		}
	}
	sort.Slice(regs, func(i, j int) bool { return regs[i].ID < regs[j].ID })
	return regs, nil
}

func (f *fakeRegistrationRepo) AddMember(_ context.Context, member *models.TeamMember) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.regs[member.RegistrationID]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	f.nextMemberID++
	member.ID = f.nextMemberID
	member.InvitedAt = time.Now()
	reg.TeamMembers = append(reg.TeamMembers, *member)
	return nil
}

func (f *fakeRegistrationRepo) AcceptMember(_ context.Context, registrationID, userID int, email string, data models.SubmissionData, maxTeamSize int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.regs[registrationID]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	member := reg.FindMember(userID, email)
	if member == nil {
		return repositories.ErrMemberNotFound
	}
	if member.Status != models.MemberPending {
		return repositories.ErrMemberAlreadyResponded
	}
	if maxTeamSize > 0 && reg.EffectiveSize() >= maxTeamSize {
		return repositories.ErrTeamCapacityReached
	}
	member.Status = models.MemberAccepted
	member.UserID = &userID
	if data != nil {
		member.SubmissionData = data
	}
	return nil
}

func (f *fakeRegistrationRepo) RejectMember(_ context.Context, registrationID, userID int, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.regs[registrationID]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	member := reg.FindMember(userID, email)
	if member == nil {
		return repositories.ErrMemberNotFound
	}
	member.Status = models.MemberRejected
	member.UserID = &userID
	return nil
}

func (f *fakeRegistrationRepo) RemoveMember(_ context.Context, registrationID, memberUserID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.regs[registrationID]
	if !ok {
		return repositories.ErrRegistrationNotFound
	}
	for i := range reg.TeamMembers {
		m := reg.TeamMembers[i]
		if m.UserID != nil && *m.UserID == memberUserID {
			reg.TeamMembers = append(reg.TeamMembers[:i], reg.TeamMembers[i+1:]...)
			return nil
		}
	}
	return repositories.ErrMemberNotFound
}

type resultKey struct{ eventID, roundID int }

type fakeResultRepo struct {
	mu      sync.Mutex
	nextID  int
	results map[resultKey]*models.Result
}

func newFakeResultRepo() *fakeResultRepo {
	return &fakeResultRepo{results: make(map[resultKey]*models.Result)}
}

func cloneResult(r *models.Result) *models.Result {
	clone := *r
	clone.Entries = append([]models.ResultEntry(nil), r.Entries...)
	clone.Qualified = append([]int(nil), r.Qualified...)
	return &clone
}

func (f *fakeResultRepo) Upsert(_ context.Context, result *models.Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := resultKey{result.EventID, result.RoundID}
	if existing, ok := f.results[key]; ok {
		existing.RoundName = result.RoundName
		existing.RoundSequenceNumber = result.RoundSequenceNumber
		existing.Entries = append([]models.ResultEntry(nil), result.Entries...)
		existing.Qualified = append([]int(nil), result.Qualified...)
		result.ID = existing.ID
		result.Published = existing.Published
		result.CreatedAt = existing.CreatedAt
		return nil
	}
	f.nextID++
	result.ID = f.nextID
	result.Published = false
	result.CreatedAt = time.Now()
	f.results[key] = cloneResult(result)
	return nil
}

func (f *fakeResultRepo) FindByEventAndRound(_ context.Context, eventID, roundID int) (*models.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[resultKey{eventID, roundID}]
	if !ok {
		return nil, repositories.ErrResultNotFound
	}
	return cloneResult(r), nil
}

func (f *fakeResultRepo) ListByEvent(_ context.Context, eventID int) ([]*models.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	results := make([]*models.Result, 0)
	for key, r := range f.results {
		if key.eventID == eventID {
			results = append(results, cloneResult(r))
		}
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].RoundSequenceNumber < results[j].RoundSequenceNumber
	})
	return results, nil
}

func (f *fakeResultRepo) SetPublished(_ context.Context, eventID, roundID int, publishedBy *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[resultKey{eventID, roundID}]
	if !ok {
		return repositories.ErrResultNotFound
	}
	if r.Published {
		return repositories.ErrResultAlreadyPublished
	}
	now := time.Now()
	r.Published = true
	r.PublishedBy = publishedBy
	r.PublishedAt = &now
	return nil
}

func (f *fakeResultRepo) SetUnpublished(_ context.Context, eventID, roundID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[resultKey{eventID, roundID}]
	if !ok {
		return repositories.ErrResultNotFound
	}
	if !r.Published {
		return repositories.ErrResultNotPublished
	}
	r.Published = false
	r.PublishedBy = nil
	r.PublishedAt = nil
	return nil
}

func (f *fakeResultRepo) Delete(_ context.Context, eventID, roundID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := resultKey{eventID, roundID}
	if _, ok := f.results[key]; !ok {
		return repositories.ErrResultNotFound
	}
	delete(f.results, key)
	return nil
}

type attendanceKey struct{ eventID, roundID, userID int }

type fakeAttendanceRepo struct {
	mu      sync.Mutex
	nextID  int
	records map[attendanceKey]*models.Attendance
}

func newFakeAttendanceRepo() *fakeAttendanceRepo {
	return &fakeAttendanceRepo{records: make(map[attendanceKey]*models.Attendance)}
}

func (f *fakeAttendanceRepo) Create(_ context.Context, att *models.Attendance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := attendanceKey{att.EventID, att.RoundID, att.UserID}
	if _, ok := f.records[key]; ok {
		return repositories.ErrAttendanceConflict
	}
	f.nextID++
	att.ID = f.nextID
	att.CreatedAt = time.Now()
	clone := *att
	f.records[key] = &clone
	return nil
}

func (f *fakeAttendanceRepo) Find(_ context.Context, eventID, roundID, userID int) (*models.Attendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	att, ok := f.records[attendanceKey{eventID, roundID, userID}]
	if !ok {
		return nil, repositories.ErrAttendanceNotFound
	}
	clone := *att
	return &clone, nil
}

func (f *fakeAttendanceRepo) Delete(_ context.Context, eventID, roundID, userID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := attendanceKey{eventID, roundID, userID}
	if _, ok := f.records[key]; !ok {
		return repositories.ErrAttendanceNotFound
	}
	delete(f.records, key)
	return nil
}

func (f *fakeAttendanceRepo) CountByRegistration(_ context.Context, registrationID, eventID, roundID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, att := range f.records {
		if att.RegistrationID == registrationID && att.EventID == eventID && att.RoundID == roundID {
			count++
		}
	}
	return count, nil
}

func (f *fakeAttendanceRepo) ListByRound(_ context.Context, eventID, roundID int) ([]*models.Attendance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	records := make([]*models.Attendance, 0)
	for _, att := range f.records {
		if att.EventID == eventID && att.RoundID == roundID {
			clone := *att
			records = append(records, &clone)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (f *fakeAttendanceRepo) StatsByRound(_ context.Context, eventID, roundID int) ([]models.TeamAttendanceStat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byReg := make(map[int]*models.TeamAttendanceStat)
	for _, att := range f.records {
		if att.EventID != eventID || att.RoundID != roundID {
			continue
		}
		stat, ok := byReg[att.RegistrationID]
		if !ok {
			stat = &models.TeamAttendanceStat{RegistrationID: att.RegistrationID}
			byReg[att.RegistrationID] = stat
		}
		stat.PresentCount++
		stat.PresentUserIDs = append(stat.PresentUserIDs, att.UserID)
	}
	stats := make([]models.TeamAttendanceStat, 0, len(byReg))
	for _, stat := range byReg {
		stats = append(stats, *stat)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].RegistrationID < stats[j].RegistrationID })
	return stats, nil
}

type memberKey struct{ registrationID, userID int }

type fakeCertificateRepo struct {
	mu       sync.Mutex
	nextID   int
	byMember map[memberKey]*models.Certificate
	byCertID map[string]*models.Certificate
}

func newFakeCertificateRepo() *fakeCertificateRepo {
	return &fakeCertificateRepo{
		byMember: make(map[memberKey]*models.Certificate),
		byCertID: make(map[string]*models.Certificate),
	}
}

func (f *fakeCertificateRepo) Create(_ context.Context, cert *models.Certificate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byCertID[cert.CertificateID]; ok {
		return repositories.ErrCertificateIDConflict
	}
	key := memberKey{cert.RegistrationID, cert.UserID}
	if _, ok := f.byMember[key]; ok {
		return repositories.ErrCertificateConflict
	}
	f.nextID++
	cert.ID = f.nextID
	cert.CreatedAt = time.Now()
	clone := *cert
	f.byMember[key] = &clone
	f.byCertID[cert.CertificateID] = &clone
	return nil
}

func (f *fakeCertificateRepo) FindByMember(_ context.Context, registrationID, userID int) (*models.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cert, ok := f.byMember[memberKey{registrationID, userID}]
	if !ok {
		return nil, repositories.ErrCertificateNotFound
	}
	clone := *cert
	return &clone, nil
}

func (f *fakeCertificateRepo) FindByCertificateID(_ context.Context, certificateID string) (*models.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cert, ok := f.byCertID[strings.ToUpper(certificateID)]
	if !ok {
		return nil, repositories.ErrCertificateNotFound
	}
	clone := *cert
	return &clone, nil
}

func (f *fakeCertificateRepo) ListByUser(_ context.Context, userID int) ([]*models.Certificate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	certs := make([]*models.Certificate, 0)
	for _, cert := range f.byMember {
		if cert.UserID == userID {
			clone := *cert
			certs = append(certs, &clone)
		}
	}
	sort.Slice(certs, func(i, j int) bool { return certs[i].ID < certs[j].ID })
	return certs, nil
}

func (f *fakeCertificateRepo) AdvanceRound(_ context.Context, registrationID, userID int, roundName string, roundSeq int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cert, ok := f.byMember[memberKey{registrationID, userID}]
	if !ok {
		return nil
	}
	if cert.RoundReachedSeq < roundSeq {
		cert.RoundReached = roundName
		cert.RoundReachedSeq = roundSeq
	}
	return nil
}

func (f *fakeCertificateRepo) MarkWinner(_ context.Context, registrationID, userID int, certType models.CertificateType, winnerRank int, roundName string, roundSeq int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cert, ok := f.byMember[memberKey{registrationID, userID}]
	if !ok {
		return repositories.ErrCertificateNotFound
	}
	cert.Type = certType
	cert.IsWinner = true
	cert.WinnerRank = &winnerRank
	cert.Rank = &winnerRank
	cert.RoundReached = roundName
	if roundSeq > cert.RoundReachedSeq {
		cert.RoundReachedSeq = roundSeq
	}
	cert.IsGenerated = true
	if cert.IssuedAt == nil {
		now := time.Now()
		cert.IssuedAt = &now
	}
	return nil
}

func (f *fakeCertificateRepo) SetFile(_ context.Context, id int, fileKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cert := range f.byMember {
		if cert.ID == id {
			cert.FileKey = &fileKey
			cert.IsGenerated = true
			if cert.IssuedAt == nil {
				now := time.Now()
				cert.IssuedAt = &now
			}
			return nil
		}
	}
	return repositories.ErrCertificateNotFound
}
