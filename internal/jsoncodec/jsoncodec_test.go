package jsoncodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name   string  `json:"name"`
	Docs   []int   `json:"docs"`
	Values []int64 `json:"values,omitempty"`
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, c.Name())
	}
	_, ok := ByName("msgpack")
	assert.False(t, ok)
}

func TestCodecsInterchangeable(t *testing.T) {
	in := sample{Name: "price", Docs: []int{0, 3}, Values: []int64{-1, 1 << 40}}
	for _, enc := range []Codec{GoJSON{}, Std{}} {
		for _, dec := range []Codec{GoJSON{}, Std{}} {
			data, err := enc.Marshal(in)
			require.NoError(t, err)
			var out sample
			require.NoError(t, dec.Unmarshal(data, &out))
			assert.Equal(t, in, out, "%s -> %s", enc.Name(), dec.Name())
		}
	}
}

func BenchmarkMarshal(b *testing.B) {
	v := sample{Name: "f", Docs: make([]int, 1024), Values: make([]int64, 1024)}
	for _, c := range []Codec{GoJSON{}, Std{}} {
		b.Run(c.Name(), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if _, err := c.Marshal(v); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
