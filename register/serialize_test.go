package register

import "testing"

func TestSerializeRoundTrip(t *testing.T) {
	f := NewFile()
	f.ApplyImmediate(RegDMACON, 0x8200, AccessorAgnus)
	f.ApplyImmediate(RegCOP1LCH, 0x00C0, AccessorAgnus)

	buf := make([]byte, f.SerializeSize())
	if err := f.Serialize(buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	f2 := NewFile()
	if err := f2.Deserialize(buf); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if f2.Read(RegDMACON) != 0x8200 {
		t.Errorf("DMACON = %#x, want 0x8200", f2.Read(RegDMACON))
	}
	if f2.Read(RegCOP1LCH) != 0x00C0 {
		t.Errorf("COP1LCH = %#x, want 0x00C0", f2.Read(RegCOP1LCH))
	}
}
