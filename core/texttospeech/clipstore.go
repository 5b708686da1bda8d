package texttospeech

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const (
	clipRefPrefix       = "clip:"
	DefaultClipCapacity = 256
)

// ClipStore keeps synthesized clips in memory so they can be served by
// reference. When full, the oldest clip is evicted.
type ClipStore struct {
	mu       sync.Mutex
	clips    map[AudioRef][]byte
	order    []AudioRef
	capacity int
}

func NewClipStore(capacity int) *ClipStore {
	if capacity <= 0 {
		capacity = DefaultClipCapacity
	}
	return &ClipStore{clips: map[AudioRef][]byte{}, capacity: capacity}
}

func (s *ClipStore) Put(audio []byte) AudioRef {
	ref := AudioRef(clipRefPrefix + uuid.NewString())

	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.order) >= s.capacity {
		delete(s.clips, s.order[0])
		s.order = s.order[1:]
	}
	s.clips[ref] = bytes.Clone(audio)
	s.order = append(s.order, ref)
	return ref
}

func (s *ClipStore) Open(_ context.Context, ref AudioRef) (io.ReadCloser, error) {
	if !IsClipRef(ref) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAudioRef, ref)
	}

	s.mu.Lock()
	clip, ok := s.clips[ref]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAudioRef, ref)
	}

	return io.NopCloser(bytes.NewReader(clip)), nil
}

func (s *ClipStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clips)
}

func IsClipRef(ref AudioRef) bool {
	return strings.HasPrefix(string(ref), clipRefPrefix)
}
