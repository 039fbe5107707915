package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/vulpemventures/green-cosigner/internal/core/domain"
)

type accountInmemoryStore struct {
	accounts map[uint16]domain.Account
	lock     *sync.RWMutex
}

type accountRepository struct {
	store            *accountInmemoryStore
	chEvents         chan domain.AccountEvent
	externalChEvents chan domain.AccountEvent
	chLock           *sync.Mutex
}

func NewAccountRepository() domain.AccountRepository {
	return newAccountRepository()
}

func newAccountRepository() *accountRepository {
	return &accountRepository{
		store: &accountInmemoryStore{
			accounts: make(map[uint16]domain.Account),
			lock:     &sync.RWMutex{},
		},
		chEvents:         make(chan domain.AccountEvent),
		externalChEvents: make(chan domain.AccountEvent),
		chLock:           &sync.Mutex{},
	}
}

func (r *accountRepository) AddAccount(
	_ context.Context, account *domain.Account,
) error {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	if _, ok := r.store.accounts[account.Pointer]; ok {
		return domain.ErrAccountAlreadyExists
	}
	r.store.accounts[account.Pointer] = *account

	go r.publishEvent(domain.AccountEvent{
		EventType: domain.AccountAdded,
		Account:   *account,
	})
	return nil
}

func (r *accountRepository) GetAccount(
	_ context.Context, pointer uint16,
) (*domain.Account, error) {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	account, ok := r.store.accounts[pointer]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &account, nil
}

func (r *accountRepository) ListAccounts(
	_ context.Context,
) ([]domain.Account, error) {
	r.store.lock.RLock()
	defer r.store.lock.RUnlock()

	accounts := make([]domain.Account, 0, len(r.store.accounts))
	for _, account := range r.store.accounts {
		accounts = append(accounts, account)
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		return accounts[i].Pointer < accounts[j].Pointer
	})
	return accounts, nil
}

func (r *accountRepository) DeleteAccount(
	_ context.Context, pointer uint16,
) error {
	r.store.lock.Lock()
	defer r.store.lock.Unlock()

	account, ok := r.store.accounts[pointer]
	if !ok {
		return domain.ErrAccountNotFound
	}
	delete(r.store.accounts, pointer)

	go r.publishEvent(domain.AccountEvent{
		EventType: domain.AccountDeleted,
		Account:   account,
	})
	return nil
}

func (r *accountRepository) GetEventChannel() chan domain.AccountEvent {
	return r.externalChEvents
}

func (r *accountRepository) publishEvent(event domain.AccountEvent) {
	r.chLock.Lock()
	defer r.chLock.Unlock()

	r.chEvents <- event
	// send over channel without blocking in case nobody is listening.
	select {
	case r.externalChEvents <- event:
	default:
	}
}

func (r *accountRepository) close() {
	close(r.chEvents)
	close(r.externalChEvents)
}
