package chanmap

import "testing"

func TestSelectStaysInMap(t *testing.T) {
	cases := []struct {
		use     uint8
		hop     uint8
		latency uint16
		m       Map
	}{
		{use: 0, hop: 5, latency: 0, m: AllChannels()},
		{use: 36, hop: 17, latency: 3, m: AllChannels()},
		{use: 10, hop: 9, latency: 0, m: Map{0x01, 0x00, 0x00, 0x00, 0x00}},
		{use: 20, hop: 13, latency: 5, m: Map{0xAA, 0x55, 0xAA, 0x55, 0x0A}},
	}
	for _, tt := range cases {
		count := uint8(tt.m.Count())
		got := Select(tt.use, tt.hop, tt.latency, tt.m, count)
		if !tt.m.Test(got) {
			t.Errorf("Select(%d,%d,%d,%v) = %d, not set in map", tt.use, tt.hop, tt.latency, tt.m, got)
		}
		if got >= NumDataChannels {
			t.Errorf("Select returned out-of-range channel %d", got)
		}
	}
}

func TestSelectSingleChannel(t *testing.T) {
	m := Map{0x01, 0x00, 0x00, 0x00, 0x00} // only channel 0 usable
	for use := uint8(0); use < 37; use++ {
		got := Select(use, 7, 0, m, 1)
		if got != 0 {
			t.Errorf("Select with single-channel map: got %d want 0", got)
		}
	}
}

func TestMapCountIgnoresReservedBits(t *testing.T) {
	m := Map{0xFF, 0xFF, 0xFF, 0xFF, 0xFF} // top 3 bits of last byte reserved
	if got := m.Count(); got != 37 {
		t.Errorf("Count() = %d, want 37", got)
	}
}

func TestRFChannel(t *testing.T) {
	cases := []struct {
		in   uint8
		want uint8
	}{
		{0, 4}, {1, 6}, {10, 24}, {11, 28}, {36, 78}, {37, 2}, {38, 26}, {39, 80},
	}
	for _, tt := range cases {
		got, err := RFChannel(tt.in)
		if err != nil {
			t.Fatalf("RFChannel(%d): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("RFChannel(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
	if _, err := RFChannel(40); err == nil {
		t.Errorf("RFChannel(40): want error for out-of-range channel")
	}
}

func TestGenerateAccessAddress(t *testing.T) {
	for i := 0; i < 200; i++ {
		aa, err := GenerateAccessAddress()
		if err != nil {
			t.Fatalf("GenerateAccessAddress: %v", err)
		}
		if aa == advertisingAA {
			t.Fatalf("GenerateAccessAddress collided with advertising AA")
		}
		if hammingDistance32(aa, advertisingAA) == 1 {
			t.Fatalf("GenerateAccessAddress is a single-bit neighbour of advertising AA")
		}
		if countTransitions(aa) > 24 {
			t.Errorf("AA 0x%08X has too many transitions", aa)
		}
		if maxRun(aa) > 6 {
			t.Errorf("AA 0x%08X has a run longer than 6", aa)
		}
	}
}

func countTransitions(aa uint32) int {
	n := 0
	prev := (aa >> 31) & 1
	for i := 30; i >= 0; i-- {
		b := (aa >> uint(i)) & 1
		if b != prev {
			n++
		}
		prev = b
	}
	return n
}

func maxRun(aa uint32) int {
	best := 1
	run := 1
	prev := (aa >> 31) & 1
	for i := 30; i >= 0; i-- {
		b := (aa >> uint(i)) & 1
		if b == prev {
			run++
			if run > best {
				best = run
			}
		} else {
			run = 1
			prev = b
		}
	}
	return best
}
