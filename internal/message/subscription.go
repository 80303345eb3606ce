package message

import (
	"math"
	"slices"
	"strings"
)

// Subscription is the set of chunks a peer wants drawing updates for. A new
// Subscription replaces the previous one wholesale.
type Subscription struct {
	chunks map[ChunkCoordinates]struct{}
}

func EmptySubscription() Subscription {
	return Subscription{chunks: make(map[ChunkCoordinates]struct{})}
}

// SubscriptionOf builds a subscription from the given chunks, dropping duplicates.
func SubscriptionOf(chunks ...ChunkCoordinates) Subscription {
	s := Subscription{chunks: make(map[ChunkCoordinates]struct{}, len(chunks))}
	for _, c := range chunks {
		s.chunks[c] = struct{}{}
	}
	return s
}

// SubscriptionFromSet copies set into a new subscription.
func SubscriptionFromSet(set map[ChunkCoordinates]struct{}) Subscription {
	s := Subscription{chunks: make(map[ChunkCoordinates]struct{}, len(set))}
	for c := range set {
		s.chunks[c] = struct{}{}
	}
	return s
}

// SubscriptionAround returns the square of chunks within radius of center.
// Chunks past the int32 range are left out.
func SubscriptionAround(center ChunkCoordinates, radius int32) Subscription {
	if radius < 0 {
		radius = 0
	}
	return SubscriptionBetween(center, center, radius)
}

// SubscriptionBetween returns every chunk in the rectangle spanned by lo and
// hi, grown by margin on each side and clamped to the int32 range.
func SubscriptionBetween(lo, hi ChunkCoordinates, margin int32) Subscription {
	m := int64(max(margin, 0))
	minX, maxX := clampSpan(int64(min(lo.X, hi.X))-m, int64(max(lo.X, hi.X))+m)
	minY, maxY := clampSpan(int64(min(lo.Y, hi.Y))-m, int64(max(lo.Y, hi.Y))+m)
	s := EmptySubscription()
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			s.chunks[ChunkCoordinates{X: int32(x), Y: int32(y)}] = struct{}{}
		}
	}
	return s
}

func clampSpan(lo, hi int64) (int64, int64) {
	return max(lo, math.MinInt32), min(hi, math.MaxInt32)
}

func (s Subscription) Contains(c ChunkCoordinates) bool {
	_, ok := s.chunks[c]
	return ok
}

func (s Subscription) Len() int {
	return len(s.chunks)
}

// Chunks returns the members sorted by x, then y.
func (s Subscription) Chunks() []ChunkCoordinates {
	out := make([]ChunkCoordinates, 0, len(s.chunks))
	for c := range s.chunks {
		out = append(out, c)
	}
	sortChunks(out)
	return out
}

// MissingFrom returns the chunks in s that other lacks, sorted.
func (s Subscription) MissingFrom(other Subscription) []ChunkCoordinates {
	var out []ChunkCoordinates
	for c := range s.chunks {
		if !other.Contains(c) {
			out = append(out, c)
		}
	}
	sortChunks(out)
	return out
}

// MissingFromSelf returns the chunks in other that s lacks, sorted.
func (s Subscription) MissingFromSelf(other Subscription) []ChunkCoordinates {
	return other.MissingFrom(s)
}

// Intersects reports whether any chunk is in s.
func (s Subscription) Intersects(chunks []ChunkCoordinates) bool {
	for _, c := range chunks {
		if s.Contains(c) {
			return true
		}
	}
	return false
}

func (s Subscription) Equal(other Subscription) bool {
	if len(s.chunks) != len(other.chunks) {
		return false
	}
	for c := range s.chunks {
		if !other.Contains(c) {
			return false
		}
	}
	return true
}

func (s Subscription) String() string {
	var b strings.Builder
	b.WriteString("Subscription[")
	for i, c := range s.Chunks() {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(c.String())
	}
	b.WriteByte(']')
	return b.String()
}

func sortChunks(chunks []ChunkCoordinates) {
	slices.SortFunc(chunks, func(a, b ChunkCoordinates) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		}
		return 0
	})
}
