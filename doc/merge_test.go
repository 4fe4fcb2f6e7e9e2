package doc

import "testing"

func TestSupersedes(t *testing.T) {
	lowAuthor := []byte{0x01}
	highAuthor := []byte{0xFF}

	cases := []struct {
		name     string
		incoming *Entry
		current  *Entry
		want     bool
	}{
		{
			name:     "no current entry",
			incoming: &Entry{Timestamp: 1, Author: lowAuthor},
			current:  nil,
			want:     true,
		},
		{
			name:     "newer timestamp wins",
			incoming: &Entry{Timestamp: 2, Author: lowAuthor},
			current:  &Entry{Timestamp: 1, Author: highAuthor},
			want:     true,
		},
		{
			name:     "older timestamp loses",
			incoming: &Entry{Timestamp: 1, Author: highAuthor},
			current:  &Entry{Timestamp: 2, Author: lowAuthor},
			want:     false,
		},
		{
			name:     "tie broken by higher author",
			incoming: &Entry{Timestamp: 5, Author: highAuthor},
			current:  &Entry{Timestamp: 5, Author: lowAuthor},
			want:     true,
		},
		{
			name:     "tie with lower author loses",
			incoming: &Entry{Timestamp: 5, Author: lowAuthor},
			current:  &Entry{Timestamp: 5, Author: highAuthor},
			want:     false,
		},
		{
			name:     "identical entry does not supersede itself",
			incoming: &Entry{Timestamp: 5, Author: lowAuthor},
			current:  &Entry{Timestamp: 5, Author: lowAuthor},
			want:     false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Supersedes(tc.incoming, tc.current); got != tc.want {
				t.Fatalf("Supersedes = %v, want %v", got, tc.want)
			}
		})
	}
}

// Applying the same set of entries in any order must converge on the same
// winner.
func TestSupersedes_OrderIndependent(t *testing.T) {
	entries := []*Entry{
		{Timestamp: 1, Author: []byte{0x10}},
		{Timestamp: 3, Author: []byte{0x01}},
		{Timestamp: 2, Author: []byte{0xFF}},
		{Timestamp: 3, Author: []byte{0x02}},
	}

	reduce := func(order []int) *Entry {
		var current *Entry
		for _, i := range order {
			if Supersedes(entries[i], current) {
				current = entries[i]
			}
		}
		return current
	}

	orders := [][]int{
		{0, 1, 2, 3},
		{3, 2, 1, 0},
		{1, 3, 0, 2},
		{2, 0, 3, 1},
	}
	want := reduce(orders[0])
	for _, order := range orders[1:] {
		got := reduce(order)
		if got != want {
			t.Fatalf("order %v converged on ts=%d author=%x, want ts=%d author=%x",
				order, got.Timestamp, got.Author, want.Timestamp, want.Author)
		}
	}
	if want.Timestamp != 3 || want.Author[0] != 0x02 {
		t.Fatalf("unexpected winner: ts=%d author=%x", want.Timestamp, want.Author)
	}
}
