package aion

import "testing"

func TestSimTimeOrdering(t *testing.T) {
	a := SimTime{Fs: 10, Delta: 0}
	b := SimTime{Fs: 10, Delta: 1}
	c := SimTime{Fs: 11, Delta: 0}

	if !a.Before(b) {
		t.Fatal("a should be before b (same fs, earlier delta)")
	}
	if !b.Before(c) {
		t.Fatal("b should be before c (earlier fs)")
	}
	if !c.After(a) {
		t.Fatal("c should be after a")
	}
	if !a.Equal(SimTime{Fs: 10, Delta: 0}) {
		t.Fatal("identical SimTimes should be equal")
	}
}

func TestSimTimeCompare(t *testing.T) {
	a := AtFs(5)
	b := AtFs(5).NextDelta()
	if a.Compare(b) != -1 {
		t.Fatalf("Compare(a,b) = %d, want -1", a.Compare(b))
	}
	if b.Compare(a) != 1 {
		t.Fatalf("Compare(b,a) = %d, want 1", b.Compare(a))
	}
	if a.Compare(a) != 0 {
		t.Fatalf("Compare(a,a) = %d, want 0", a.Compare(a))
	}
}

func TestSimTimeString(t *testing.T) {
	if got := AtFs(100).String(); got != "100fs" {
		t.Fatalf("String() = %q, want %q", got, "100fs")
	}
	if got := AtFs(100).NextDelta().String(); got != "100fs+1" {
		t.Fatalf("String() = %q, want %q", got, "100fs+1")
	}
}

func TestFemtosecondConversionConstants(t *testing.T) {
	if FsPerNs != 1_000_000 {
		t.Fatalf("FsPerNs = %d, want 1_000_000", FsPerNs)
	}
	if FsPerUs != 1000*FsPerNs {
		t.Fatalf("FsPerUs should be 1000x FsPerNs")
	}
	if FsPerMs != 1000*FsPerUs {
		t.Fatalf("FsPerMs should be 1000x FsPerUs")
	}
}
