package aion

import "testing"

func TestResolveDriversNoDriversIsZ(t *testing.T) {
	v := resolveDrivers(nil, 4)
	for i := 0; i < 4; i++ {
		if v.Get(i) != Z {
			t.Fatalf("bit %d = %s, want Z with no drivers", i, v.Get(i))
		}
	}
}

func TestResolveDriversHighestStrengthWins(t *testing.T) {
	drivers := []Driver{
		{Value: FromUint64(0b01, 2), Strength: Weak},
		{Value: FromUint64(0b10, 2), Strength: Strong},
	}
	v := resolveDrivers(drivers, 2)
	got, ok := v.Uint64()
	if !ok || got != 0b10 {
		t.Fatalf("resolved = %v, want 0b10 (strong driver wins over weak)", v)
	}
}

func TestResolveDriversSameStrengthDisagreeIsX(t *testing.T) {
	drivers := []Driver{
		{Value: FromUint64(0b01, 2), Strength: Strong},
		{Value: FromUint64(0b10, 2), Strength: Strong},
	}
	v := resolveDrivers(drivers, 2)
	if v.Get(0) != X || v.Get(1) != X {
		t.Fatalf("conflicting same-strength drivers = %s, want xx", v)
	}
}

func TestResolveDriversSameStrengthAgreeResolves(t *testing.T) {
	drivers := []Driver{
		{Value: FromUint64(0b11, 2), Strength: Strong},
		{Value: FromUint64(0b11, 2), Strength: Strong},
	}
	v := resolveDrivers(drivers, 2)
	got, ok := v.Uint64()
	if !ok || got != 0b11 {
		t.Fatalf("agreeing same-strength drivers = %v, want 0b11", v)
	}
}

func TestResolveDriversAllHighImpedanceIsZ(t *testing.T) {
	drivers := []Driver{
		{Value: FromUint64(0, 2), Strength: HighImpedance},
		{Value: FromUint64(1, 2), Strength: HighImpedance},
	}
	v := resolveDrivers(drivers, 2)
	if v.Get(0) != Z || v.Get(1) != Z {
		t.Fatalf("all-highz drivers = %s, want zz (Z bits)", v)
	}
}

func TestOverlaySlicePreservesUntouchedBits(t *testing.T) {
	base := FromUint64(0b1111, 4)
	out := overlaySlice(base, 2, 1, FromUint64(0b00, 2))
	got, ok := out.Uint64()
	if !ok || got != 0b1001 {
		t.Fatalf("overlay result = %v, want 0b1001", got)
	}
}
