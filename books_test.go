package main

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func rosterOf(n int) []string {
	players := make([]string, n)
	for i := range players {
		players[i] = fmt.Sprintf("player%02d", i)
	}
	return players
}

// requireValidAssignment checks the invariants every assignment matrix must
// hold: one book per player, pageCount slots per book, the owner in slot 0,
// and each round index forming a permutation of the roster.
func requireValidAssignment(t *testing.T, players []string, pageCount int, books map[string][]string) {
	t.Helper()

	require.Len(t, books, len(players))

	for _, owner := range players {
		authors, ok := books[owner]
		require.True(t, ok, "missing book for %s", owner)
		require.Len(t, authors, pageCount)
		require.Equal(t, owner, authors[0], "slot 0 must be the owner")
	}

	for round := 0; round < pageCount; round++ {
		seen := make(map[string]bool, len(players))
		for _, owner := range players {
			author := books[owner][round]
			require.False(t, seen[author], "author %s repeated in round %d", author, round)
			seen[author] = true
		}
	}
}

func TestNormalOrderRotation(t *testing.T) {
	players := []string{"aa", "bb", "cc", "dd"}
	books := generateAssignments(players, 4, orderNormal, testRNG(1))

	assert.Equal(t, []string{"aa", "bb", "cc", "dd"}, books["aa"])
	assert.Equal(t, []string{"bb", "cc", "dd", "aa"}, books["bb"])
	assert.Equal(t, []string{"cc", "dd", "aa", "bb"}, books["cc"])
	assert.Equal(t, []string{"dd", "aa", "bb", "cc"}, books["dd"])
}

func TestNormalOrderProperties(t *testing.T) {
	for n := 2; n <= 6; n++ {
		for pageCount := 2; pageCount <= 8; pageCount++ {
			players := rosterOf(n)
			books := generateAssignments(players, pageCount, orderNormal, testRNG(1))
			requireValidAssignment(t, players, pageCount, books)
		}
	}
}

func TestRandomOrderForcedNormalForSmallRosters(t *testing.T) {
	// Random with three or fewer players degenerates, so the cyclic
	// rotation is used instead regardless of the requested order.
	players := rosterOf(3)
	random := generateAssignments(players, 6, orderRandom, testRNG(7))
	normal := generateAssignments(players, 6, orderNormal, testRNG(7))
	assert.Equal(t, normal, random)
}

func TestRandomOrderNoAdjacentAuthors(t *testing.T) {
	for n := 4; n <= 8; n++ {
		for seed := int64(0); seed < 50; seed++ {
			players := rosterOf(n)
			books := generateAssignments(players, 10, orderRandom, testRNG(seed))
			requireValidAssignment(t, players, 10, books)

			for owner, authors := range books {
				for i := 1; i < len(authors); i++ {
					require.NotEqual(t, authors[i-1], authors[i],
						"book %s has the same author on pages %d and %d (n=%d seed=%d)",
						owner, i-1, i, n, seed)
				}
			}
		}
	}
}

func TestNextRandomRoundNoFixedPoint(t *testing.T) {
	prev := rosterOf(5)
	for seed := int64(0); seed < 200; seed++ {
		next := nextRandomRound(prev, testRNG(seed))
		require.Len(t, next, len(prev))
		require.False(t, hasFixedPoint(prev, next), "seed %d", seed)
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	values := rosterOf(10)
	shuffled := append([]string(nil), values...)
	shuffle(shuffled, testRNG(3))

	assert.ElementsMatch(t, values, shuffled)
}

func TestNewBookDefaults(t *testing.T) {
	book := newBook("aa", "Alice", []string{"aa", "bb", "cc"}, 3)
	assert.Equal(t, "Alice's book", book.Title)
	assert.Len(t, book.Pages, 3)
	assert.False(t, book.Presented)
	for _, page := range book.Pages {
		assert.False(t, page.Filled)
	}
}
