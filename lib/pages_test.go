package lib

import "testing"

func TestNpages(t *testing.T) {
	if x := Npages(0, 4096); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	}
	if x := Npages(1, 4096); x != 1 {
		t.Errorf("expected %v, got %v", 1, x)
	}
	if x := Npages(4096, 4096); x != 1 {
		t.Errorf("expected %v, got %v", 1, x)
	}
	if x := Npages(4097, 4096); x != 2 {
		t.Errorf("expected %v, got %v", 2, x)
	}
	if x := Npages(10000, 4096); x != 3 {
		t.Errorf("expected %v, got %v", 3, x)
	}
}

func TestGetorder(t *testing.T) {
	if x := Getorder(0, 4096); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	}
	if x := Getorder(4096, 4096); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	}
	if x := Getorder(4097, 4096); x != 1 {
		t.Errorf("expected %v, got %v", 1, x)
	}
	if x := Getorder(16384, 4096); x != 2 {
		t.Errorf("expected %v, got %v", 2, x)
	}
	if x := Getorder(16385, 4096); x != 3 {
		t.Errorf("expected %v, got %v", 3, x)
	}
	if x := Getorder(64*4096, 4096); x != 6 {
		t.Errorf("expected %v, got %v", 6, x)
	}
}

func TestResidue(t *testing.T) {
	if x := Residue(10000, 4096); x != 2288 {
		t.Errorf("expected %v, got %v", 2288, x)
	}
	if x := Residue(8192, 4096); x != 0 {
		t.Errorf("expected %v, got %v", 0, x)
	}
}
