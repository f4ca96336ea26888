package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tokenwatch/internal/discovery"
	"tokenwatch/internal/seen"
)

func ent(symbol, addr string) discovery.Entity {
	return discovery.Entity{Symbol: symbol, TokenAddress: addr}
}

func TestMatch(t *testing.T) {
	t.Parallel()

	already := seen.New(10)
	already.Add("A9")

	cases := []struct {
		name   string
		in     []discovery.Entity
		suffix string
		want   []discovery.Entity
	}{
		{
			name:   "suffix filter",
			in:     []discovery.Entity{ent("FOOBLV", "A1"), ent("BARXYZ", "A2")},
			suffix: "BLV",
			want:   []discovery.Entity{ent("FOOBLV", "A1")},
		},
		{
			name:   "case sensitive",
			in:     []discovery.Entity{ent("fooblv", "A1"), ent("FOOBlv", "A2")},
			suffix: "BLV",
		},
		{
			name:   "empty symbol never matches",
			in:     []discovery.Entity{ent("", "A1")},
			suffix: "BLV",
		},
		{
			name:   "symbol equal to suffix",
			in:     []discovery.Entity{ent("BLV", "A1")},
			suffix: "BLV",
			want:   []discovery.Entity{ent("BLV", "A1")},
		},
		{
			name:   "seen ids are dropped",
			in:     []discovery.Entity{ent("XBLV", "A9"), ent("YBLV", "A3")},
			suffix: "BLV",
			want:   []discovery.Entity{ent("YBLV", "A3")},
		},
		{
			name:   "order preserved",
			in:     []discovery.Entity{ent("CBLV", "C"), ent("ABLV", "A"), ent("NOPE", "N"), ent("BBLV", "B")},
			suffix: "BLV",
			want:   []discovery.Entity{ent("CBLV", "C"), ent("ABLV", "A"), ent("BBLV", "B")},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Match(tc.in, already, tc.suffix)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMatchIsPure(t *testing.T) {
	t.Parallel()

	set := seen.New(10)
	set.Add("A1")
	in := []discovery.Entity{ent("FOOBLV", "A1"), ent("BARBLV", "A2")}

	for i := 0; i < 3; i++ {
		assert.Equal(t, []discovery.Entity{ent("BARBLV", "A2")}, Match(in, set, "BLV"))
	}
	assert.Equal(t, 1, set.Len())
	assert.Len(t, in, 2)
	assert.False(t, set.Has("A2"))
}
