package backend

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/ovirt/hosted-engine-ha/pkg/backend/model"
)

// TestCreateInfoBlocks_MatchesModel is testable property #2 (spec §8):
// for any service map M, parse(create_info_blocks(M)) yields exactly M's
// services, each with one piece sized ceil(size_bytes/512), in ascending
// chain order. The model package predicts this independently of the
// bit-exact codec; this test checks the two agree across many random
// service maps.
func TestCreateInfoBlocks_MatchesModel(t *testing.T) {
	r := rand.New(rand.NewSource(1))

	for trial := 0; trial < 200; trial++ {
		services := randomServiceMap(r)

		modelLayout := model.Layout(toInt64Map(services))
		blocks := createInfoBlocks(services)

		if len(blocks) != len(modelLayout) {
			t.Fatalf("trial %d: len(blocks)=%d, want %d", trial, len(blocks), len(modelLayout))
		}

		got := map[string]infoBlock{}
		for _, b := range blocks {
			d := decodeInfoBlock(b)
			if !d.Valid {
				t.Fatalf("trial %d: block for %q invalid", trial, d.Name)
			}

			got[d.Name] = d
		}

		for _, want := range modelLayout {
			g, ok := got[want.Name]
			if !ok {
				t.Fatalf("trial %d: service %q missing", trial, want.Name)
			}

			if len(g.Pieces) != 1 {
				t.Fatalf("trial %d: service %q has %d pieces, want 1", trial, want.Name, len(g.Pieces))
			}

			if g.Pieces[0].Start != want.Pieces[0].Start || g.Pieces[0].Size != want.Pieces[0].Size {
				t.Fatalf("trial %d: service %q piece=%+v, want %+v", trial, want.Name, g.Pieces[0], want.Pieces[0])
			}

			if g.Next != want.ChainNext {
				t.Fatalf("trial %d: service %q next=%d, want %d", trial, want.Name, g.Next, want.ChainNext)
			}
		}
	}
}

func randomServiceMap(r *rand.Rand) ServiceMap {
	n := 1 + r.Intn(6)
	services := make(ServiceMap, n)

	for i := 0; i < n; i++ {
		name := fmt.Sprintf("svc%d", i)
		services[name] = int64(1 + r.Intn(1<<20))
	}

	return services
}

func toInt64Map(s ServiceMap) map[string]int64 {
	out := make(map[string]int64, len(s))
	for k, v := range s {
		out[k] = v
	}

	return out
}
