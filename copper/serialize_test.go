package copper

import "testing"

func TestSerializeRoundTrip(t *testing.T) {
	c := &Copper{}
	c.pc = 0x1000
	c.cop1lc = 0x2000
	c.cop2lc = 0x3000
	c.copcon = 0x0002
	c.phase = 1
	c.word1 = 0xABCD
	c.waiting = true
	c.waitV, c.waitH, c.maskV, c.maskH = 100, 50, 0xFF, 0x7F
	c.skipNext = true

	buf := make([]byte, c.SerializeSize())
	if err := c.Serialize(buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	c2 := &Copper{}
	if err := c2.Deserialize(buf); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if *c2 != *c {
		t.Errorf("round trip mismatch: got %+v, want %+v", *c2, *c)
	}
}
