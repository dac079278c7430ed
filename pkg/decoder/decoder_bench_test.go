package decoder

import (
	"testing"

	"github.com/dshills/tabparse/pkg/pattern"
)

func BenchmarkDecode(b *testing.B) {
	benchmarks := []struct {
		name    string
		pattern string
		line    string
	}{
		{"three fields", "$val:float|$val2:int|$val3:str", "1.5\t42\thello\n"},
		{"internal separators", "$host:str':$port:int|$latency:float|$ok:bool", "example.org:8080\t12.75\ttrue\n"},
		{"wide", "$a:int|$b:int|$c:int|$d:int|$e:int|$f:int|$g:int|$h:int", "1\t2\t3\t4\t5\t6\t7\t8\n"},
	}

	for _, bm := range benchmarks {
		c := pattern.MustCompile(bm.pattern, '\t', nil)
		b.Run(bm.name, func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				if _, err := Decode(c, bm.line); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
