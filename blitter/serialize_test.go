package blitter

import "testing"

func TestSerializeRoundTrip(t *testing.T) {
	b := New(nil)
	b.SetChannelA(0x1000, 2, true)
	b.SetChannelB(0x2000, 0, true)
	b.SetChannelD(0x3000, 0)
	b.SetLogicFunction(0xFC)
	b.SetFillMode(true, false)
	b.busy = true
	b.width, b.height = 5, 3
	b.col, b.row = 2, 1
	b.cellIndex, b.cellsTotal = 4, 15
	b.cyclesPerCell, b.subCycle = 2, 1
	b.pendingDAddr, b.pendingDValue, b.pendingDValid = 0x3002, 0xBEEF, true
	b.lineMode = true
	b.lineX, b.lineY = 10, 20
	b.lineDx, b.lineDy = 5, -5
	b.lineSx, b.lineSy = 1, -1
	b.lineErr = 3
	b.linePitchWords = 40

	buf := make([]byte, b.SerializeSize())
	if err := b.Serialize(buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	b2 := New(nil)
	if err := b2.Deserialize(buf); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if b2.a != b.a || b2.b != b.b || b2.c != b.c || b2.d != b.d {
		t.Errorf("channel mismatch: got a=%+v b=%+v c=%+v d=%+v", b2.a, b2.b, b2.c, b2.d)
	}
	if b2.lf != b.lf || b2.fillEnable != b.fillEnable || b2.fillExcl != b.fillExcl {
		t.Error("logic/fill flags mismatch")
	}
	if b2.busy != b.busy || b2.pendingDAddr != b.pendingDAddr || b2.pendingDValue != b.pendingDValue || b2.pendingDValid != b.pendingDValid {
		t.Error("pipeline state mismatch")
	}
	if b2.lineMode != b.lineMode || b2.lineX != b.lineX || b2.lineErr != b.lineErr || b2.linePitchWords != b.linePitchWords {
		t.Error("line-mode state mismatch")
	}
}
