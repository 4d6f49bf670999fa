package memwindow

import "testing"

func TestFixturePreinitialized(t *testing.T) {
	p := NewFixture(0xAA)
	v, err := p.Window(0xC800, 16)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 16; i++ {
		if got := v.ReadByte(i); got != 0xAA {
			t.Fatalf("offset %d: got %02x, want 0xAA", i, got)
		}
	}
}

func TestFixtureReadWriteByte(t *testing.T) {
	p := NewFixture(0xAA)
	v, err := p.Window(0xC800, 16)
	if err != nil {
		t.Fatal(err)
	}

	v.WriteByte(5, 0x42)
	if got := v.ReadByte(5); got != 0x42 {
		t.Fatalf("got %02x, want 0x42", got)
	}
	if got := v.ReadByte(4); got != 0xAA {
		t.Fatalf("adjacent byte clobbered: got %02x", got)
	}
}

func TestFixtureBaseOffset(t *testing.T) {
	p := NewFixture(0x00)
	v, _ := p.Window(0xC800, 4)
	v.WriteByte(0, 0x55)

	raw := p.Raw()
	want := int(SegToAddr(0xC800))
	if raw[want] != 0x55 {
		t.Fatalf("write did not land at absolute offset %#x", want)
	}
}

func TestFixtureHook(t *testing.T) {
	p := NewFixture(0xFF)
	var writes []int
	p.SetHook(func(write bool, absOffset int, value byte) {
		if write {
			writes = append(writes, absOffset)
		}
	})

	v, _ := p.Window(0xC800, 4)
	v.WriteByte(0, 1)
	v.WriteByte(2, 2)

	if len(writes) != 2 || writes[0] != int(SegToAddr(0xC800)) || writes[1] != int(SegToAddr(0xC800))+2 {
		t.Fatalf("unexpected hook trace: %v", writes)
	}
}

func TestBlockReadWrite(t *testing.T) {
	p := NewFixture(0x00)
	v, _ := p.Window(0xC800, 8)

	v.WriteBlock(0, []byte{1, 2, 3, 4})
	out := make([]byte, 4)
	v.ReadBlock(0, out)

	for i, b := range out {
		if b != byte(i+1) {
			t.Fatalf("offset %d: got %d", i, b)
		}
	}
}

func TestWindowOutOfRange(t *testing.T) {
	p := NewFixture(0x00)
	if _, err := p.Window(0xFFF0, 0x10000); err == nil {
		t.Fatal("expected error for out-of-range window")
	}
}
