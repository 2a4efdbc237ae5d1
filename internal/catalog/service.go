package catalog

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long a fetched catalog is served from memory before the
// next Load refreshes it.
const DefaultTTL = time.Minute

// Source is the remote storefront catalog.
type Source interface {
	StoreCategories(ctx context.Context) ([]Category, error)
	StoreProducts(ctx context.Context) ([]Product, error)
}

type Service struct {
	src   Source
	cache Cache // optional
	ttl   time.Duration
	now   func() time.Time
	sfg   singleflight.Group

	mu        sync.RWMutex
	last      *Snapshot
	fetchedAt time.Time
}

type Option func(*Service)

func WithTTL(d time.Duration) Option { return func(s *Service) { s.ttl = d } }

func NewService(src Source, cache Cache, opts ...Option) *Service {
	s := &Service{src: src, cache: cache, ttl: DefaultTTL, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Load returns the storefront catalog. A fresh in-memory copy is served
// without a remote call and concurrent refreshes share one fetch. When a
// refresh fails the last good copy is served instead; with none, an empty
// snapshot is returned alongside the error so the ordering screen can still
// render.
func (s *Service) Load(ctx context.Context) (*Snapshot, error) {
	last, fresh := s.memory()
	if fresh {
		return last, nil
	}

	v, err, _ := s.sfg.Do("catalog", func() (interface{}, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		if last != nil {
			log.Printf("catalog refresh failed, serving last good copy: %v", err)
			return last, nil
		}
		log.Printf("failed to fetch catalog: %v", err)
		return &Snapshot{Categories: []Category{}, Products: []Product{}}, err
	}
	return v.(*Snapshot), nil
}

func (s *Service) memory() (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil, false
	}
	return s.last, s.now().Sub(s.fetchedAt) < s.ttl
}

func (s *Service) remember(snap *Snapshot) {
	s.mu.Lock()
	s.last = snap
	s.fetchedAt = s.now()
	s.mu.Unlock()
}

func (s *Service) fetch(ctx context.Context) (*Snapshot, error) {
	if s.cache != nil {
		snap, err := s.cache.Get(ctx)
		if err == nil {
			s.remember(snap)
			return snap, nil
		}
		if !errors.Is(err, ErrCacheMiss) {
			log.Printf("catalog cache get error: %v", err)
		}
	}

	cats, err := s.src.StoreCategories(ctx)
	if err != nil {
		return nil, err
	}
	prods, err := s.src.StoreProducts(ctx)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Categories: cats, Products: prods}
	s.remember(snap)

	if s.cache != nil {
		go func() {
			cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.cache.Set(cctx, snap); err != nil {
				log.Printf("catalog cache set error: %v", err)
			}
		}()
	}
	return snap, nil
}
