package bitfield

import "testing"

type flags struct {
	ReadWrite bool   `bitfield:",1"`
	DeviceMem bool   `bitfield:",1"`
	Kind      uint32 `bitfield:",4"`
	Ignored   string
}

func TestPackUnpackRoundTrip(t *testing.T) {
	in := flags{ReadWrite: true, DeviceMem: false, Kind: 9}
	packed, err := Pack(&in, &Config{NumBits: 6})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}

	var out flags
	if err := Unpack(packed, &out); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if out.ReadWrite != in.ReadWrite || out.DeviceMem != in.DeviceMem || out.Kind != in.Kind {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestPackFieldOrderIsLeastSignificantFirst(t *testing.T) {
	packed, err := Pack(&flags{ReadWrite: true}, &Config{NumBits: 6})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if packed != 0b1 {
		t.Fatalf("packed = %#b, want bit 0 set only", packed)
	}

	packed, err = Pack(&flags{DeviceMem: true}, &Config{NumBits: 6})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if packed != 0b10 {
		t.Fatalf("packed = %#b, want bit 1 set only", packed)
	}
}

func TestPackValueExceedingFieldWidthErrors(t *testing.T) {
	_, err := Pack(&flags{Kind: 16}, &Config{NumBits: 6}) // Kind is 4 bits, max 15
	if err == nil {
		t.Fatalf("expected error for a value exceeding its field width")
	}
}

func TestPackIgnoresUntaggedFields(t *testing.T) {
	packed, err := Pack(&flags{Ignored: "unused"}, &Config{NumBits: 6})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if packed != 0 {
		t.Fatalf("packed = %#b, want 0 (untagged field must not contribute bits)", packed)
	}
}
