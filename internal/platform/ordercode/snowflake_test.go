package ordercode

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNext_UniqueAndJSONSafe(t *testing.T) {
	gen, err := New(3)
	require.NoError(t, err)

	const workers, perWorker = 8, 500
	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, gen.Next())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, code := range local {
				seen[code] = struct{}{}
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, workers*perWorker)
	for code := range seen {
		require.Positive(t, code)
		require.Less(t, code, int64(1)<<53)
	}
}

func TestNext_NodesDoNotCollide(t *testing.T) {
	a, err := New(1)
	require.NoError(t, err)
	b, err := New(2)
	require.NoError(t, err)

	codes := map[int64]struct{}{}
	for i := 0; i < 1000; i++ {
		codes[a.Next()] = struct{}{}
		codes[b.Next()] = struct{}{}
	}
	require.Len(t, codes, 2000)
}

func TestNew_RejectsNodeOutOfRange(t *testing.T) {
	_, err := New(MaxNode + 1)
	require.Error(t, err)
	_, err = New(-1)
	require.Error(t, err)
}
