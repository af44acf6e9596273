package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nf/intcode/intcode"
)

var (
	// Each stage reads its seed and a signal and outputs 10*signal + seed.
	series  = []int64{3, 15, 3, 16, 1002, 16, 10, 16, 1, 16, 15, 15, 4, 15, 99, 0, 0}
	series2 = []int64{3, 23, 3, 24, 1002, 24, 10, 24, 1002, 23, -1, 23,
		101, 5, 23, 23, 1, 24, 23, 23, 4, 23, 99, 0, 0}

	// Loops reading a signal and emitting a transformed one, five times.
	loop = []int64{3, 26, 1001, 26, -4, 26, 3, 27, 1002, 27, 2, 27, 1, 27, 26,
		27, 4, 27, 1001, 28, -1, 28, 1005, 28, 6, 99, 0, 0, 5}
)

type runFunc func(p *Pipeline, input ...int64) ([]int64, error)

func runners() map[string]runFunc {
	return map[string]runFunc{
		"sequential": (*Pipeline).Run,
		"concurrent": func(p *Pipeline, input ...int64) ([]int64, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return p.RunConcurrent(ctx, input...)
		},
	}
}

func TestPipeline(t *testing.T) {
	tests := []struct {
		name     string
		image    []int64
		seeds    []int64
		feedback bool
		want     int64
		count    int
	}{
		{name: "series", image: series, seeds: []int64{4, 3, 2, 1, 0}, want: 43210, count: 1},
		{name: "series negated", image: series2, seeds: []int64{0, 1, 2, 3, 4}, want: 54321, count: 1},
		// Every value the last stage emits is returned, fed back or not.
		{name: "feedback", image: loop, seeds: []int64{9, 8, 7, 6, 5}, feedback: true, want: 139629729, count: 5},
	}
	for name, run := range runners() {
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				p, err := New(tt.image, tt.seeds,
					Feedback(tt.feedback),
					Logger(zaptest.NewLogger(t)))
				require.NoError(t, err)
				require.Equal(t, len(tt.seeds), p.Len())

				out, err := run(p, 0)
				require.NoError(t, err)
				require.Len(t, out, tt.count)
				assert.Equal(t, tt.want, out[len(out)-1])
				for i := 0; i < p.Len(); i++ {
					assert.Equal(t, intcode.Halted, p.Stage(i).Status(), "stage %d", i)
				}
			})
		}
	}
}

func TestPipelineErrors(t *testing.T) {
	for name, run := range runners() {
		t.Run(name+"/fault", func(t *testing.T) {
			p, err := New([]int64{3, 0, 1, -1, 0, 0, 99}, []int64{1})
			require.NoError(t, err)

			_, err = run(p)
			var se *StageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, 0, se.Stage)
			assert.ErrorIs(t, err, intcode.ErrAddress)
		})
		t.Run(name+"/starved", func(t *testing.T) {
			starved := []struct {
				name     string
				image    []int64
				seeds    []int64
				feedback bool
			}{
				// Each stage wants two values but only the seed arrives.
				{name: "series", image: []int64{3, 0, 3, 0, 4, 0, 99}, seeds: []int64{1, 2}},
				{name: "feedback", image: []int64{3, 0, 3, 0, 4, 0, 99}, seeds: []int64{1, 2}, feedback: true},
				// A single stage waiting for input from itself.
				{name: "self loop", image: []int64{3, 5, 1105, 1, 0, 0}, seeds: []int64{1}, feedback: true},
			}
			for _, tt := range starved {
				t.Run(tt.name, func(t *testing.T) {
					p, err := New(tt.image, tt.seeds, Feedback(tt.feedback))
					require.NoError(t, err)

					_, err = run(p)
					assert.ErrorIs(t, err, ErrDeadlock)
				})
			}
		})
	}
}

func TestRunConcurrentCanceled(t *testing.T) {
	// A single stage that jumps to itself forever.
	p, err := New([]int64{1105, 1, 0}, []int64{1})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = p.RunConcurrent(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestNew(t *testing.T) {
	_, err := New(series, nil)
	assert.Error(t, err)

	_, err = New(nil, []int64{1})
	assert.ErrorIs(t, err, intcode.ErrEmptyProgram)
}
