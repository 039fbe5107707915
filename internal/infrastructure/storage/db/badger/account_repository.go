package dbbadger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
	"github.com/vulpemventures/green-cosigner/internal/core/domain"
)

type accountRepository struct {
	store            *badgerhold.Store
	chEvents         chan domain.AccountEvent
	externalChEvents chan domain.AccountEvent
	lock             *sync.Mutex

	log func(format string, a ...interface{})
}

func NewAccountRepository(store *badgerhold.Store) domain.AccountRepository {
	return newAccountRepository(store)
}

func newAccountRepository(store *badgerhold.Store) *accountRepository {
	chEvents := make(chan domain.AccountEvent, 10)
	externalChEvents := make(chan domain.AccountEvent, 10)
	lock := &sync.Mutex{}
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("account repository: %s", format)
		log.Debugf(format, a...)
	}
	return &accountRepository{store, chEvents, externalChEvents, lock, logFn}
}

func (r *accountRepository) AddAccount(
	ctx context.Context, account *domain.Account,
) error {
	if err := r.insertAccount(ctx, account); err != nil {
		return err
	}

	go r.publishEvent(domain.AccountEvent{
		EventType: domain.AccountAdded,
		Account:   *account,
	})
	return nil
}

func (r *accountRepository) GetAccount(
	ctx context.Context, pointer uint16,
) (*domain.Account, error) {
	return r.getAccount(ctx, pointer)
}

func (r *accountRepository) ListAccounts(
	ctx context.Context,
) ([]domain.Account, error) {
	accounts, err := r.findAccounts(ctx, &badgerhold.Query{})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(accounts, func(i, j int) bool {
		return accounts[i].Pointer < accounts[j].Pointer
	})
	return accounts, nil
}

func (r *accountRepository) DeleteAccount(
	ctx context.Context, pointer uint16,
) error {
	account, err := r.getAccount(ctx, pointer)
	if err != nil {
		return err
	}
	if err := r.deleteAccount(ctx, pointer); err != nil {
		return err
	}

	go r.publishEvent(domain.AccountEvent{
		EventType: domain.AccountDeleted,
		Account:   *account,
	})
	return nil
}

func (r *accountRepository) GetEventChannel() chan domain.AccountEvent {
	return r.externalChEvents
}

func (r *accountRepository) insertAccount(
	ctx context.Context, account *domain.Account,
) error {
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxInsert(tx, account.Pointer, *account)
	} else {
		err = r.store.Insert(account.Pointer, *account)
	}
	if err != nil {
		if err == badgerhold.ErrKeyExists {
			return domain.ErrAccountAlreadyExists
		}
		return err
	}
	return nil
}

func (r *accountRepository) getAccount(
	ctx context.Context, pointer uint16,
) (*domain.Account, error) {
	var account domain.Account
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxGet(tx, pointer, &account)
	} else {
		err = r.store.Get(pointer, &account)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *accountRepository) findAccounts(
	ctx context.Context, query *badgerhold.Query,
) ([]domain.Account, error) {
	var list []domain.Account
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxFind(tx, &list, query)
	} else {
		err = r.store.Find(&list, query)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return list, nil
}

func (r *accountRepository) deleteAccount(
	ctx context.Context, pointer uint16,
) error {
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxDelete(tx, pointer, domain.Account{})
	} else {
		err = r.store.Delete(pointer, domain.Account{})
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return domain.ErrAccountNotFound
		}
		return err
	}
	return nil
}

func (r *accountRepository) publishEvent(event domain.AccountEvent) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.log("publish event %s", event.EventType)
	r.chEvents <- event
	// send over channel without blocking in case nobody is listening.
	select {
	case r.externalChEvents <- event:
	default:
	}
}

func (r *accountRepository) close() {
	r.store.Close()
	close(r.chEvents)
	close(r.externalChEvents)
}
