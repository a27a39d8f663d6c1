package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/RahulSriwastaw/backend/internal/apperror"
	"github.com/RahulSriwastaw/backend/internal/model"
)

// fakeUserRepo is an in-memory UserRepository with the same uniqueness
// semantics as the real store, plus hooks for injecting failures.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
	seq   int

	// failNextCreate makes the next Create return a duplicate-key error
	// without storing anything, simulating a lost uniqueness race. If
	// raceWinner is set it is inserted first, as the record the
	// concurrent winner committed.
	failNextCreate bool
	raceWinner     *model.User

	findErr   error
	createErr error
	updateErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) put(u *model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		f.seq++
		u.ID = fmt.Sprintf("user-%d", f.seq)
	}
	cp := *u
	f.users[u.ID] = &cp
}

func (f *fakeUserRepo) get(id string) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp
	}
	return nil
}

func (f *fakeUserRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

func (f *fakeUserRepo) FindByIdentityKeys(ctx context.Context, externalUID, email string) (*model.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var byEmail *model.User
	for _, u := range f.users {
		if externalUID != "" && u.ExternalUID == externalUID {
			cp := *u
			return &cp, nil
		}
		if strings.EqualFold(u.Email, email) {
			byEmail = u
		}
	}
	if byEmail != nil {
		cp := *byEmail
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if u := f.get(id); u != nil {
		return u, nil
	}
	return nil, apperror.NotFound("user", id)
}

func (f *fakeUserRepo) Create(ctx context.Context, u *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	if f.failNextCreate {
		f.failNextCreate = false
		winner := f.raceWinner
		f.raceWinner = nil
		f.mu.Unlock()
		if winner != nil {
			f.put(winner)
		}
		return apperror.DuplicateKey("email")
	}
	for _, existing := range f.users {
		if strings.EqualFold(existing.Email, u.Email) {
			f.mu.Unlock()
			return apperror.DuplicateKey("email")
		}
		if u.ExternalUID != "" && existing.ExternalUID == u.ExternalUID {
			f.mu.Unlock()
			return apperror.DuplicateKey("external_uid")
		}
	}
	f.mu.Unlock()
	f.put(u)
	return nil
}

func (f *fakeUserRepo) Update(ctx context.Context, u *model.User) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.ID]; !ok {
		return apperror.NotFound("user", u.ID)
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeUserRepo) Ping(ctx context.Context) error { return nil }

// fakeTemplateRepo is an in-memory TemplateRepository with an injectable
// failure.
type fakeTemplateRepo struct {
	templates []model.Template
	err       error
}

func (f *fakeTemplateRepo) ListApproved(ctx context.Context) ([]model.Template, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.templates, nil
}

func (f *fakeTemplateRepo) GetByID(ctx context.Context, id string) (*model.Template, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.templates {
		if f.templates[i].ID == id {
			return &f.templates[i], nil
		}
	}
	return nil, apperror.NotFound("template", id)
}
