package main

import (
	"math/rand"
)

// Page holds one committed page of a book.
type Page struct {
	Author string `json:"author"`
	Mode   string `json:"mode"`
	Value  string `json:"value"`
	Filled bool   `json:"filled"`
}

// Book belongs to one player who was present at game start. Owners is the
// page-assignment row computed once by generateAssignments and never altered
// afterward, even if a player later disconnects.
type Book struct {
	Owner     string   `json:"owner"`
	Title     string   `json:"title"`
	Owners    []string `json:"owners"`
	Pages     []Page   `json:"pages"`
	Presented bool     `json:"presented"`
}

const maxShuffleAttempts = 16

// generateAssignments produces the page-rotation matrix for a game: a map
// from each player to the ordered list of authors for that player's book.
// Slot 0 of every book is its owner. Each round index forms a permutation of
// the roster, so every player authors exactly one page per round.
//
// Normal order rotates the roster cyclically, which guarantees no player
// authors two consecutive pages of the same book. Random order shuffles each
// round and repairs collisions against the previous round; it degenerates
// with three or fewer players, so small rosters always use Normal.
func generateAssignments(players []string, pageCount int, order string, rng *rand.Rand) map[string][]string {
	books := make(map[string][]string, len(players))
	for _, id := range players {
		books[id] = append(make([]string, 0, pageCount), id)
	}

	if order == orderNormal || len(players) <= 3 {
		for i := 1; i < pageCount; i++ {
			for b, owner := range players {
				books[owner] = append(books[owner], players[(b+i)%len(players)])
			}
		}
		return books
	}

	prev := append([]string(nil), players...)
	for i := 1; i < pageCount; i++ {
		next := nextRandomRound(prev, rng)
		for j, owner := range players {
			books[owner] = append(books[owner], next[j])
		}
		prev = next
	}

	return books
}

// nextRandomRound draws a permutation of prev with no fixed points, i.e. no
// position keeps the same author as the previous round. A single random
// swap per detected collision usually suffices, but the swap can reintroduce
// a collision at the partner index, so the result is re-verified and the
// shuffle retried. The rotation fallback is collision-free by construction.
func nextRandomRound(prev []string, rng *rand.Rand) []string {
	for attempt := 0; attempt < maxShuffleAttempts; attempt++ {
		next := append([]string(nil), prev...)
		shuffle(next, rng)

		for j := range next {
			if next[j] != prev[j] {
				continue
			}
			swap := rng.Intn(len(next) - 1)
			if swap >= j {
				swap++
			}
			next[j], next[swap] = next[swap], next[j]
		}

		if !hasFixedPoint(prev, next) {
			return next
		}
	}

	next := make([]string, len(prev))
	for j := range prev {
		next[j] = prev[(j+1)%len(prev)]
	}
	return next
}

func hasFixedPoint(prev, next []string) bool {
	for j := range next {
		if next[j] == prev[j] {
			return true
		}
	}
	return false
}

// shuffle is an in-place Fisher-Yates shuffle.
func shuffle(values []string, rng *rand.Rand) {
	for m := len(values); m > 0; {
		i := rng.Intn(m)
		m--
		values[m], values[i] = values[i], values[m]
	}
}

func newBook(owner, ownerName string, authors []string, pageCount int) *Book {
	return &Book{
		Owner:  owner,
		Title:  ownerName + "'s book",
		Owners: authors,
		Pages:  make([]Page, pageCount),
	}
}
