package service

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/AnTengye/contractchat/model"
)

// ManifestStore keeps recent upload manifests in memory so the results screen
// can be shown again. It is not persisted.
type ManifestStore struct {
	manifests    map[string]*model.UploadManifest
	mu           sync.RWMutex
	maxManifests int // Maximum manifests to keep, 0 = unlimited
}

func NewManifestStore(maxManifests int) *ManifestStore {
	if maxManifests < 0 {
		maxManifests = 0
	}
	return &ManifestStore{
		manifests:    make(map[string]*model.UploadManifest),
		maxManifests: maxManifests,
	}
}

func (s *ManifestStore) Save(m *model.UploadManifest) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.manifests[m.ID] = m
	s.cleanupIfNeeded()
}

func (s *ManifestStore) Get(id string) *model.UploadManifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifests[id]
}

// List returns manifests newest first.
func (s *ManifestStore) List() []*model.UploadManifest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(true)
}

func (s *ManifestStore) Latest() *model.UploadManifest {
	list := s.List()
	if len(list) == 0 {
		return nil
	}
	return list[0]
}

// Clear drops every manifest.
func (s *ManifestStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifests = make(map[string]*model.UploadManifest)
}

func (s *ManifestStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.manifests)
}

func (s *ManifestStore) sorted(newestFirst bool) []*model.UploadManifest {
	out := make([]*model.UploadManifest, 0, len(s.manifests))
	for _, m := range s.manifests {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if newestFirst {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// cleanupIfNeeded drops the oldest manifests beyond maxManifests.
// Must be called with lock held.
func (s *ManifestStore) cleanupIfNeeded() {
	if s.maxManifests <= 0 || len(s.manifests) <= s.maxManifests {
		return
	}

	oldest := s.sorted(false)
	for _, m := range oldest[:len(oldest)-s.maxManifests] {
		slog.Debug("evicting upload manifest", "manifest_id", m.ID, "created_at", m.CreatedAt)
		delete(s.manifests, m.ID)
	}
}
