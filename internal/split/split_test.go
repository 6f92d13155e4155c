package split

import "testing"

func TestShare_RoundHalfUp(t *testing.T) {
	cases := []struct {
		total int64
		n     int
		want  int64
	}{
		{4090, 4, 1023}, // 10.225 -> 10.23
		{4090, 2, 2045},
		{1000, 3, 333}, // 3.333...
		{500, 2, 250},
		{101, 2, 51}, // 0.505 -> 0.51
		{999, 10, 100},
	}
	for _, c := range cases {
		if got := Share(c.total, c.n); got != c.want {
			t.Fatalf("Share(%d, %d) = %d want %d", c.total, c.n, got, c.want)
		}
	}
}

func TestShares_CreatorAbsorbsRemainder(t *testing.T) {
	got, err := Shares(4090, 4)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	// creator 10.21, three invitees 10.23 each, total 40.90
	want := []int64{1021, 1023, 1023, 1023}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Shares(4090, 4)[%d] = %d want %d", i, got[i], want[i])
		}
	}
}

func TestShares_SumEqualsTotal(t *testing.T) {
	for n := 2; n <= 10; n++ {
		for total := int64(100); total <= 5000; total += 7 {
			shares, err := Shares(total, n)
			if err != nil {
				t.Fatalf("Shares(%d, %d): %v", total, n, err)
			}
			var sum int64
			for _, s := range shares {
				sum += s
			}
			if sum != total {
				t.Fatalf("Shares(%d, %d) sums to %d", total, n, sum)
			}
		}
	}
}

func TestShares_Bounds(t *testing.T) {
	if _, err := Shares(0, 4); err == nil {
		t.Fatal("expected error for zero total")
	}
	if _, err := Shares(-100, 4); err == nil {
		t.Fatal("expected error for negative total")
	}
	if _, err := Shares(1000, 1); err == nil {
		t.Fatal("expected error for n=1")
	}
	if _, err := Shares(1000, 11); err == nil {
		t.Fatal("expected error for n=11")
	}
}
