package srv

import (
	"errors"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/KennethTeo2002/ntu-x-base-hackathon-2025/storai"
)

// ErrNotFound is returned when a story or room id is unknown.
var ErrNotFound = errors.New("not found")

// StoryStore holds generated stories in process memory. On a fixed
// wall-clock interval the whole store is wiped: no story survives longer
// than the clear interval. That is a deliberate simplification, not an
// eviction policy.
type StoryStore struct {
	mu    sync.Mutex
	cache *cache.Cache
	done  chan struct{}
}

func NewStoryStore(clearInterval time.Duration) *StoryStore {
	s := &StoryStore{
		cache: cache.New(cache.NoExpiration, 0),
		done:  make(chan struct{}),
	}
	if clearInterval > 0 {
		go s.sweep(clearInterval)
	}
	return s
}

func (s *StoryStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			count := s.cache.ItemCount()
			s.cache.Flush()
			s.mu.Unlock()
			log.Info().Int("stories", count).Msg("story store cleared")
		case <-s.done:
			return
		}
	}
}

// Close stops the periodic sweep.
func (s *StoryStore) Close() {
	close(s.done)
}

func (s *StoryStore) Put(story *storai.Story) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(story.ID, story, cache.NoExpiration)
}

// Get returns a copy of the story. Callers read it freely while
// concurrent appends mutate the stored original under the mutex.
func (s *StoryStore) Get(id string) (*storai.Story, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache.Get(id)
	if !ok {
		return nil, false
	}
	return cloneStory(v.(*storai.Story)), true
}

// AppendChapter appends one chapter to a story, assigning its index from
// the chapter count at append time so concurrent appends to one story get
// distinct, sequential indexes. Chapters are append-only and ordered by
// generation time. The appended chapter is returned with its index set.
func (s *StoryStore) AppendChapter(id string, ch storai.Chapter) (storai.Chapter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache.Get(id)
	if !ok {
		return storai.Chapter{}, ErrNotFound
	}
	story := v.(*storai.Story)
	ch.Index = len(story.Chapters)
	story.Chapters = append(story.Chapters, ch)
	s.cache.Set(id, story, cache.NoExpiration)
	return ch, nil
}

// Stories returns a snapshot of every stored story, for the library view.
func (s *StoryStore) Stories() []*storai.Story {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.cache.Items()
	stories := make([]*storai.Story, 0, len(items))
	for _, item := range items {
		stories = append(stories, cloneStory(item.Object.(*storai.Story)))
	}
	return stories
}

func cloneStory(story *storai.Story) *storai.Story {
	clone := *story
	clone.Chapters = append([]storai.Chapter(nil), story.Chapters...)
	return &clone
}

// Entry is one uploaded room entry: an image URL plus its paragraph.
type Entry struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

// RoomStore maps room ids to their uploaded entries, with the same
// full-clear semantics as the story store.
type RoomStore struct {
	mu    sync.Mutex
	cache *cache.Cache
	done  chan struct{}
}

func NewRoomStore(clearInterval time.Duration) *RoomStore {
	r := &RoomStore{
		cache: cache.New(cache.NoExpiration, 0),
		done:  make(chan struct{}),
	}
	if clearInterval > 0 {
		go r.sweep(clearInterval)
	}
	return r
}

func (r *RoomStore) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.mu.Lock()
			r.cache.Flush()
			r.mu.Unlock()
		case <-r.done:
			return
		}
	}
}

func (r *RoomStore) Close() {
	close(r.done)
}

// Append adds one entry to a room, creating the room on first use.
func (r *RoomStore) Append(roomID string, e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var entries []Entry
	if v, ok := r.cache.Get(roomID); ok {
		entries = v.([]Entry)
	}
	r.cache.Set(roomID, append(entries, e), cache.NoExpiration)
}

func (r *RoomStore) Entries(roomID string) ([]Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.cache.Get(roomID)
	if !ok {
		return nil, false
	}
	entries := v.([]Entry)
	return entries, len(entries) > 0
}
